package daily

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/mprofile/internal/analysis/rotation"
	"github.com/skalibog/mprofile/internal/config"
	"github.com/skalibog/mprofile/internal/exchange"
	"github.com/skalibog/mprofile/internal/profile"
	"github.com/skalibog/mprofile/pkg/logger"
	"github.com/skalibog/mprofile/pkg/models"
	"go.uber.org/zap"
)

// Метки тренда ротации за три дня
const (
	TrendStrongUp   = "Strengthening ↑↑"
	TrendUp         = "Strengthening ↑"
	TrendStrongDown = "Weakening ↓↓"
	TrendDown       = "Weakening ↓"
	TrendStable     = "Stable →"
)

// Положение и ширина зоны стоимости относительно вчерашней
const (
	PlacementHigher  = "HIGHER"
	PlacementLower   = "LOWER"
	PlacementOverlap = "OVERLAP"
	WidthWider       = "WIDER"
	WidthNarrower    = "NARROWER"
	WidthEqual       = "EQUAL"
	VolumeAbove      = "ABOVE"
	VolumeBelow      = "BELOW"
	NotAvailable     = "N/A"
)

// minDays сегодня, вчера и позавчера
const minDays = 2

// Analyzer дневной анализ: ротация, объем и зона стоимости за последние три дня
type Analyzer struct {
	cfg    *config.Config
	source exchange.CandleSource
	now    func() time.Time
}

// NewAnalyzer создает дневной анализатор
func NewAnalyzer(cfg *config.Config, source exchange.CandleSource) *Analyzer {
	return &Analyzer{cfg: cfg, source: source, now: time.Now}
}

// Analyze строит дневной отчет для даты target (нулевое время означает сегодня)
func (a *Analyzer) Analyze(ctx context.Context, symbol string, target time.Time) (*models.DailyReport, error) {
	if target.IsZero() {
		target = a.now()
	}
	target = profile.SessionDate(target)

	report := &models.DailyReport{
		Symbol:      symbol,
		Coin:        config.Coin(symbol),
		TargetDate:  target,
		GeneratedAt: a.now().UTC(),
	}

	for _, tf := range a.cfg.Daily.Timeframes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := a.analyzeTimeframe(ctx, symbol, tf, target)
		if err != nil {
			logger.Warn("Ошибка дневного анализа",
				zap.String("symbol", symbol),
				zap.String("timeframe", tf),
				zap.Error(err))
			res = models.DailyTimeframe{Timeframe: tf, Err: err.Error()}
		}
		report.Timeframes = append(report.Timeframes, res)
	}

	return report, nil
}

func (a *Analyzer) analyzeTimeframe(ctx context.Context, symbol, tf string, target time.Time) (models.DailyTimeframe, error) {
	res := models.DailyTimeframe{Timeframe: tf}

	builder, err := a.cfg.NewBuilder(symbol, tf)
	if err != nil {
		return res, err
	}

	lookback := a.cfg.Daily.VolumeLookback
	if lookback < minDays {
		lookback = minDays
	}
	from, to := exchange.DateRange(target.AddDate(0, 0, -lookback), target)

	candles, err := a.source.FetchCandles(ctx, symbol, tf, from, to)
	if err != nil {
		return res, fmt.Errorf("ошибка загрузки свечей: %w", err)
	}

	sessions := make(map[time.Time]profile.Session)
	for _, s := range profile.SplitSessions(candles) {
		sessions[s.Date] = s
	}

	metrics := func(date time.Time) models.DayMetrics {
		s := sessions[date]
		return dayMetrics(builder, date, s.Candles)
	}
	res.Today = metrics(target)
	res.Yesterday = metrics(target.AddDate(0, 0, -1))
	res.DayBefore = metrics(target.AddDate(0, 0, -2))

	res.Control = controlSide(res.Today.Rotation)
	res.Trend = Trend(res.Today.Rotation, res.Yesterday.Rotation, res.DayBefore.Rotation)
	res.VAPlacement, res.VAWidth = CompareValueAreas(res.Today.ValueArea, res.Yesterday.ValueArea)

	var volumes []float64
	for i := a.cfg.Daily.VolumeLookback; i >= 1; i-- {
		s, ok := sessions[target.AddDate(0, 0, -i)]
		if !ok {
			continue
		}
		volumes = append(volumes, sessionVolume(s.Candles))
	}
	res.VolumeAverage, res.VolumeVsAverage = VolumeVsAverage(res.Today.Volume, volumes)

	logger.Debug("Дневной анализ таймфрейма завершен",
		zap.String("symbol", symbol),
		zap.String("timeframe", tf),
		zap.Int("rotation_today", res.Today.Rotation),
		zap.String("trend", res.Trend))
	return res, nil
}

// dayMetrics метрики одного дня. Пустой день дает нулевые метрики.
func dayMetrics(builder *profile.Builder, date time.Time, candles []models.Candle) models.DayMetrics {
	m := models.DayMetrics{Date: date}
	if len(candles) == 0 {
		return m
	}

	blocks, ranges, summary := builder.BuildSession(date, candles)
	table := rotation.Score(ranges)

	m.Rotation = table.Total.Net
	m.HighScore = table.Total.High
	m.LowScore = table.Total.Low
	m.Brackets = len(ranges)
	m.Volume = summary.Volume
	m.ValueArea = profile.ValueArea(blocks, builder.Fraction())

	if m.ValueArea.Valid {
		m.VAVolume = valueAreaVolume(candles, m.ValueArea)
		if m.Volume > 0 {
			m.VAPercentage = m.VAVolume / m.Volume * 100
		}
	}
	return m
}

// valueAreaVolume объем свечей, задевающих зону стоимости
func valueAreaVolume(candles []models.Candle, va models.ValueArea) float64 {
	vah := va.High.InexactFloat64()
	val := va.Low.InexactFloat64()

	var volume float64
	for _, c := range candles {
		if !isFinite(c.Low, c.High, c.Volume) {
			continue
		}
		if c.Low <= vah && c.High >= val {
			volume += c.Volume
		}
	}
	return volume
}

func sessionVolume(candles []models.Candle) float64 {
	var volume float64
	for _, c := range candles {
		if isFinite(c.Volume) {
			volume += c.Volume
		}
	}
	return volume
}

func isFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func controlSide(rotation int) models.ControlSide {
	switch {
	case rotation > 0:
		return models.ControlBuyer
	case rotation < 0:
		return models.ControlSeller
	}
	return models.ControlNeutral
}

// Trend сравнивает ротацию сегодня, вчера и позавчера
func Trend(today, yesterday, dayBefore int) string {
	switch {
	case today > yesterday && yesterday > dayBefore:
		return TrendStrongUp
	case today > yesterday:
		return TrendUp
	case today < yesterday && yesterday < dayBefore:
		return TrendStrongDown
	case today < yesterday:
		return TrendDown
	}
	return TrendStable
}

// CompareValueAreas положение и ширина сегодняшней зоны стоимости относительно вчерашней
func CompareValueAreas(today, yesterday models.ValueArea) (string, string) {
	if !today.Valid || !yesterday.Valid {
		return NotAvailable, NotAvailable
	}

	placement := PlacementOverlap
	switch {
	case today.Low.GreaterThan(yesterday.High):
		placement = PlacementHigher
	case today.High.LessThan(yesterday.Low):
		placement = PlacementLower
	}

	width := WidthEqual
	switch today.High.Sub(today.Low).Cmp(yesterday.High.Sub(yesterday.Low)) {
	case 1:
		width = WidthWider
	case -1:
		width = WidthNarrower
	}
	return placement, width
}

// VolumeVsAverage сравнивает объем дня со средним (SMA) объемом предыдущих сессий.
// Нужно минимум две предыдущие сессии.
func VolumeVsAverage(volume float64, previous []float64) (float64, string) {
	if len(previous) < 2 {
		return 0, NotAvailable
	}

	sma := talib.Sma(previous, len(previous))
	avg := sma[len(sma)-1]

	if volume >= avg {
		return avg, VolumeAbove
	}
	return avg, VolumeBelow
}
