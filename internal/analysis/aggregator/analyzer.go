package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skalibog/mprofile/internal/analysis/poc"
	"github.com/skalibog/mprofile/internal/analysis/rotation"
	"github.com/skalibog/mprofile/internal/config"
	"github.com/skalibog/mprofile/internal/exchange"
	"github.com/skalibog/mprofile/internal/metrics"
	"github.com/skalibog/mprofile/internal/profile"
	"github.com/skalibog/mprofile/internal/storage"
	"github.com/skalibog/mprofile/pkg/logger"
	"github.com/skalibog/mprofile/pkg/models"
	"go.uber.org/zap"
)

// Request параметры анализа одного символа. Пустые поля берутся из конфигурации.
type Request struct {
	Symbol   string
	Interval string
	Bracket  string
	Days     int
	POCMode  models.POCMode
}

// Analyzer объединяет построение профиля, ротацию, контроль и движение POC
type Analyzer struct {
	cfg     *config.Config
	source  exchange.CandleSource
	storage storage.Storage
	now     func() time.Time
}

// NewAnalyzer создает новый анализатор. store может быть nil.
func NewAnalyzer(cfg *config.Config, source exchange.CandleSource, store storage.Storage) *Analyzer {
	if store == nil {
		store = storage.NewNoopStorage()
	}
	return &Analyzer{
		cfg:     cfg,
		source:  source,
		storage: store,
		now:     time.Now,
	}
}

func (a *Analyzer) withDefaults(req Request) Request {
	if req.Interval == "" {
		req.Interval = a.cfg.Trading.Interval
	}
	if req.Bracket == "" {
		req.Bracket = a.cfg.Trading.BracketPeriod
	}
	if req.Days <= 0 {
		req.Days = a.cfg.Trading.Days
	}
	if req.POCMode == "" {
		req.POCMode = models.POCMode(a.cfg.POC.Mode)
	}
	return req
}

// Analyze выполняет полный анализ символа и сохраняет результат
func (a *Analyzer) Analyze(ctx context.Context, req Request) (res *models.AnalysisResult, err error) {
	started := time.Now()
	defer func() { metrics.Observe("profile", started, err) }()

	req = a.withDefaults(req)

	builder, err := a.cfg.NewBuilder(req.Symbol, req.Bracket)
	if err != nil {
		return nil, fmt.Errorf("ошибка настройки профиля: %w", err)
	}

	from, to := exchange.LastDays(a.now(), req.Days)
	candles, err := a.source.FetchCandles(ctx, req.Symbol, req.Interval, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки свечей %s: %w", req.Symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("нет свечей для %s %s за %d дней", req.Symbol, req.Interval, req.Days)
	}
	metrics.CandlesFetched.WithLabelValues(req.Symbol, req.Interval).Add(float64(len(candles)))

	p := builder.Build(candles)
	rotations := rotation.ScoreSessions(p)

	res = &models.AnalysisResult{
		Symbol:         req.Symbol,
		Coin:           config.Coin(req.Symbol),
		Interval:       req.Interval,
		BracketMinutes: builder.BracketMinutes(),
		Days:           req.Days,
		From:           from,
		To:             to,
		Profile:        p,
		Rotations:      rotations,
		Control:        rotation.Aggregate(rotations, a.cfg.Control.Factor()),
		POC:            trackPOC(builder, candles, req.POCMode),
		Density:        profile.Density(p.Blocks),
		GeneratedAt:    a.now().UTC(),
	}

	metrics.NetRotation.WithLabelValues(req.Symbol, req.Interval).Set(float64(res.Control.Total))
	metrics.POCScore.WithLabelValues(req.Symbol, string(res.POC.Mode)).Set(float64(res.POC.Score))

	logger.Info("Анализ завершен",
		zap.String("symbol", req.Symbol),
		zap.String("interval", req.Interval),
		zap.Int("sessions", len(p.Sessions)),
		zap.String("control", string(res.Control.Side)),
		zap.Int("rotation", res.Control.Total),
		zap.String("poc_bias", string(res.POC.Bias)))

	a.persist(ctx, candles, res)
	return res, nil
}

// trackPOC движение POC в выбранном режиме
func trackPOC(builder *profile.Builder, candles []models.Candle, mode models.POCMode) models.POCMovement {
	tracker := poc.NewTracker(builder)
	if mode != models.POCModeToday {
		return tracker.Sessions(candles)
	}

	sessions := profile.SplitSessions(candles)
	if len(sessions) == 0 {
		return tracker.Incremental(nil, nil)
	}
	last := sessions[len(sessions)-1]

	var prior []models.Candle
	for _, s := range sessions[:len(sessions)-1] {
		prior = append(prior, s.Candles...)
	}
	return tracker.Incremental(prior, last.Candles)
}

// persist сохраняет свечи и результат. Ошибки хранилища не прерывают анализ.
func (a *Analyzer) persist(ctx context.Context, candles []models.Candle, res *models.AnalysisResult) {
	if err := a.storage.SaveCandles(ctx, candles); err != nil {
		logger.Warn("Не удалось сохранить свечи", zap.String("symbol", res.Symbol), zap.Error(err))
	}

	rec, err := NewRecord(res)
	if err != nil {
		logger.Warn("Не удалось подготовить запись анализа", zap.String("symbol", res.Symbol), zap.Error(err))
		return
	}
	if err := a.storage.SaveAnalysis(ctx, rec); err != nil {
		logger.Warn("Не удалось сохранить результат анализа", zap.String("symbol", res.Symbol), zap.Error(err))
	}
}

// NewRecord строка хранилища для результата анализа
func NewRecord(res *models.AnalysisResult) (*models.AnalysisRecord, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации результата: %w", err)
	}

	return &models.AnalysisRecord{
		ID:             uuid.NewString(),
		Symbol:         res.Symbol,
		Coin:           res.Coin,
		AnalysisDate:   profile.SessionDate(res.GeneratedAt),
		Interval:       res.Interval,
		BracketMinutes: res.BracketMinutes,
		DaysAnalyzed:   res.Control.Sessions,
		RotationScore:  res.Control.Total,
		Control:        res.Control.Side,
		Strength:       res.Control.Strength,
		POCScore:       res.POC.Score,
		POCBias:        res.POC.Bias,
		CreatedAt:      res.GeneratedAt,
		Payload:        payload,
	}, nil
}

// AnalyzeSymbols анализирует все символы параллельно.
// Ошибка по одному символу логируется, остальные продолжаются.
func (a *Analyzer) AnalyzeSymbols(ctx context.Context, symbols []string) map[string]*models.AnalysisResult {
	results := make(map[string]*models.AnalysisResult)
	var wg sync.WaitGroup
	var mutex sync.Mutex

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()

			res, err := a.Analyze(ctx, Request{Symbol: sym})
			if err != nil {
				logger.Error("Ошибка анализа символа", zap.String("symbol", sym), zap.Error(err))
				return
			}

			mutex.Lock()
			results[sym] = res
			mutex.Unlock()
		}(symbol)
	}

	wg.Wait()
	return results
}

// History возвращает сохраненные результаты анализа
func (a *Analyzer) History(ctx context.Context, filter storage.HistoryFilter) ([]models.AnalysisRecord, error) {
	return a.storage.GetAnalysisHistory(ctx, filter)
}
