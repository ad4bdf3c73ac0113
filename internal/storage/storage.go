package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/skalibog/mprofile/internal/config"
	"github.com/skalibog/mprofile/pkg/models"
)

// HistoryFilter параметры выборки истории анализов
type HistoryFilter struct {
	Symbol   string
	Interval string
	From     time.Time
	To       time.Time
	Limit    int
}

// Storage интерфейс для работы с хранилищем данных
type Storage interface {
	// Методы для свечей
	SaveCandles(ctx context.Context, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error)

	// Методы для результатов анализа
	SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
	GetAnalysisHistory(ctx context.Context, filter HistoryFilter) ([]models.AnalysisRecord, error)

	// Вспомогательные методы
	GetSymbols(ctx context.Context) ([]string, error)
	Close() error
}

// New создает хранилище по типу из конфигурации
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "influxdb":
		return NewInfluxDBStorage(cfg)
	case "sqlite":
		return NewSQLiteStorage(cfg.SQLitePath)
	case "none", "":
		return NewNoopStorage(), nil
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %s", cfg.Type)
	}
}

// CandleReader отдает сохраненные свечи как источник данных для офлайн анализа
type CandleReader struct {
	Store Storage
}

// FetchCandles читает свечи из хранилища
func (r CandleReader) FetchCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	candles, err := r.Store.GetCandles(ctx, symbol, interval, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения свечей из хранилища: %w", err)
	}
	return candles, nil
}

// intervalDuration длительность интервала свечи
func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "6h":
		return 6 * time.Hour
	case "12h":
		return 12 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
