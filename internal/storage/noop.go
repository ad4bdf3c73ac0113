package storage

import (
	"context"
	"time"

	"github.com/skalibog/mprofile/pkg/models"
)

// NoopStorage используется, когда хранилище не настроено
type NoopStorage struct{}

func NewNoopStorage() *NoopStorage { return &NoopStorage{} }

func (n *NoopStorage) SaveCandles(_ context.Context, _ []models.Candle) error { return nil }
func (n *NoopStorage) GetCandles(_ context.Context, _, _ string, _, _ time.Time) ([]models.Candle, error) {
	return nil, nil
}
func (n *NoopStorage) SaveAnalysis(_ context.Context, _ *models.AnalysisRecord) error { return nil }
func (n *NoopStorage) GetAnalysisHistory(_ context.Context, _ HistoryFilter) ([]models.AnalysisRecord, error) {
	return nil, nil
}
func (n *NoopStorage) GetSymbols(_ context.Context) ([]string, error) { return nil, nil }
func (n *NoopStorage) Close() error                                   { return nil }
