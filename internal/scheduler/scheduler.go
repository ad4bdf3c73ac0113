package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/skalibog/mprofile/internal/analysis/control"
	"github.com/skalibog/mprofile/internal/metrics"
	"github.com/skalibog/mprofile/pkg/logger"
	"github.com/skalibog/mprofile/pkg/models"
	"go.uber.org/zap"
)

// ProfileRunner полный анализ списка символов
type ProfileRunner interface {
	AnalyzeSymbols(ctx context.Context, symbols []string) map[string]*models.AnalysisResult
}

// DailyRunner дневной анализ символа
type DailyRunner interface {
	Analyze(ctx context.Context, symbol string, target time.Time) (*models.DailyReport, error)
}

// ControlRunner скан контроля рынка
type ControlRunner interface {
	Scan(ctx context.Context, symbol string) ([]models.ControlResult, error)
}

// Scheduler управляет задачами по расписанию
type Scheduler struct {
	Cron    *cron.Cron
	Profile ProfileRunner
	Daily   DailyRunner
	Control ControlRunner
	Symbols []string
	Ctx     context.Context

	// OnResults вызывается после каждого полного анализа (может быть nil)
	OnResults func(map[string]*models.AnalysisResult)
}

// NewScheduler создает планировщик
func NewScheduler(ctx context.Context, symbols []string, p ProfileRunner, d DailyRunner, c ControlRunner) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Profile: p,
		Daily:   d,
		Control: c,
		Symbols: symbols,
		Ctx:     ctx,
	}
}

// RegisterAll регистрирует анализ профиля и дневной отчет
func (s *Scheduler) RegisterAll(analysisCron, dailyCron string) error {
	if _, err := s.Cron.AddFunc(analysisCron, s.RunAnalysisNow); err != nil {
		return fmt.Errorf("регистрация задачи анализа: %w", err)
	}
	if _, err := s.Cron.AddFunc(dailyCron, s.RunDailyNow); err != nil {
		return fmt.Errorf("регистрация дневной задачи: %w", err)
	}
	return nil
}

// Start запускает планировщик
func (s *Scheduler) Start() {
	s.Cron.Start()
	logger.Info("Планировщик запущен", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop останавливает планировщик и ждет завершения задач
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	logger.Info("Планировщик остановлен")
}

// RunAnalysisNow анализирует все символы
func (s *Scheduler) RunAnalysisNow() {
	if s.Ctx.Err() != nil {
		return
	}
	logger.Info("Запуск анализа профиля", zap.Strings("symbols", s.Symbols))

	results := s.Profile.AnalyzeSymbols(s.Ctx, s.Symbols)
	if s.OnResults != nil {
		s.OnResults(results)
	}
}

// RunDailyNow дневной отчет и скан контроля по всем символам
func (s *Scheduler) RunDailyNow() {
	for _, symbol := range s.Symbols {
		if s.Ctx.Err() != nil {
			return
		}
		s.daily(symbol)
		s.control(symbol)
	}
}

func (s *Scheduler) daily(symbol string) {
	started := time.Now()
	report, err := s.Daily.Analyze(s.Ctx, symbol, time.Time{})
	metrics.Observe("daily", started, err)
	if err != nil {
		logger.Error("Ошибка дневного анализа", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	for _, tf := range report.Timeframes {
		if tf.Err != "" {
			continue
		}
		logger.Info("Дневной анализ",
			zap.String("symbol", symbol),
			zap.String("timeframe", tf.Timeframe),
			zap.Int("rotation_today", tf.Today.Rotation),
			zap.Int("rotation_yesterday", tf.Yesterday.Rotation),
			zap.String("control", string(tf.Control)),
			zap.String("trend", tf.Trend),
			zap.String("va", tf.VAPlacement),
			zap.String("volume", tf.VolumeVsAverage))
	}
}

func (s *Scheduler) control(symbol string) {
	started := time.Now()
	results, err := s.Control.Scan(s.Ctx, symbol)
	metrics.Observe("control", started, err)
	if err != nil {
		logger.Error("Ошибка скана контроля", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	for _, summary := range control.Summarize(results) {
		logger.Info("Контроль рынка",
			zap.String("symbol", symbol),
			zap.Int("days", summary.Days),
			zap.String("overall", summary.Overall),
			zap.Int("score", summary.CombinedScore))
	}
}
