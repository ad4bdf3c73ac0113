package control

import (
	"context"
	"fmt"
	"time"

	"github.com/skalibog/mprofile/internal/analysis/rotation"
	"github.com/skalibog/mprofile/internal/config"
	"github.com/skalibog/mprofile/internal/exchange"
	"github.com/skalibog/mprofile/pkg/logger"
	"github.com/skalibog/mprofile/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scanner определяет, кто контролирует рынок, на нескольких таймфреймах и периодах
type Scanner struct {
	cfg    *config.Config
	source exchange.CandleSource
	now    func() time.Time
}

// NewScanner создает сканер контроля рынка
func NewScanner(cfg *config.Config, source exchange.CandleSource) *Scanner {
	return &Scanner{cfg: cfg, source: source, now: time.Now}
}

type combination struct {
	timeframe string
	days      int
}

// Scan считает контроль для каждой пары таймфрейм x период.
// Ошибка одной пары не прерывает скан: пара получает строку ERROR.
func (s *Scanner) Scan(ctx context.Context, symbol string) ([]models.ControlResult, error) {
	var combos []combination
	for _, days := range s.cfg.Control.DateRanges {
		for _, tf := range s.cfg.Control.Timeframes {
			combos = append(combos, combination{timeframe: tf, days: days})
		}
	}

	results := make([]models.ControlResult, len(combos))

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Control.Parallelism > 0 {
		g.SetLimit(s.cfg.Control.Parallelism)
	}
	for i, c := range combos {
		g.Go(func() error {
			results[i] = s.scanOne(gctx, symbol, c)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Scanner) scanOne(ctx context.Context, symbol string, c combination) models.ControlResult {
	res := models.ControlResult{Timeframe: c.timeframe, Days: c.days}

	control, err := s.control(ctx, symbol, c)
	if err != nil {
		logger.Warn("Ошибка анализа контроля",
			zap.String("symbol", symbol),
			zap.String("timeframe", c.timeframe),
			zap.Int("days", c.days),
			zap.Error(err))
		res.Control = models.Control{Side: models.ControlError}
		res.Err = err.Error()
		return res
	}

	res.Control = control
	logger.Debug("Контроль рассчитан",
		zap.String("symbol", symbol),
		zap.String("timeframe", c.timeframe),
		zap.Int("days", c.days),
		zap.String("control", string(control.Side)),
		zap.Int("total", control.Total))
	return res
}

func (s *Scanner) control(ctx context.Context, symbol string, c combination) (models.Control, error) {
	builder, err := s.cfg.NewBuilder(symbol, c.timeframe)
	if err != nil {
		return models.Control{}, err
	}

	from, to := exchange.LastDays(s.now(), c.days)
	candles, err := s.source.FetchCandles(ctx, symbol, c.timeframe, from, to)
	if err != nil {
		return models.Control{}, fmt.Errorf("ошибка загрузки свечей: %w", err)
	}
	if len(candles) == 0 {
		return models.Control{}, fmt.Errorf("нет свечей за %d дней", c.days)
	}

	rotations := rotation.ScoreSessions(builder.Build(candles))
	return rotation.Aggregate(rotations, s.cfg.Control.Factor()), nil
}
