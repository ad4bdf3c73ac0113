package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
	"github.com/skalibog/mprofile/internal/config"
	"github.com/skalibog/mprofile/pkg/logger"
	"github.com/skalibog/mprofile/pkg/models"
	"go.uber.org/zap"
)

// CandleSource источник исторических свечей
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error)
}

// kline свеча в том виде, в каком ее отдает биржа
type kline struct {
	OpenTime  int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
	CloseTime int64
}

// pageFetcher загружает одну страницу свечей [start, end] в миллисекундах
type pageFetcher func(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]kline, error)

// BinanceClient клиент для загрузки свечей с Binance
type BinanceClient struct {
	fetch      pageFetcher
	market     string
	pageLimit  int
	maxRetries int
	retryMin   time.Duration
	retryMax   time.Duration
	pause      time.Duration
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	c := newClient(cfg)

	switch cfg.Market {
	case "futures":
		futures.UseTestnet = cfg.Testnet
		fc := futures.NewClient(cfg.APIKey, cfg.APISecret)
		c.fetch = futuresFetcher(fc)
	case "spot", "":
		binance.UseTestnet = cfg.Testnet
		sc := binance.NewClient(cfg.APIKey, cfg.APISecret)
		c.fetch = spotFetcher(sc)
	default:
		return nil, fmt.Errorf("неизвестный рынок %q", cfg.Market)
	}

	logger.Debug("Создан клиент Binance",
		zap.String("market", c.market),
		zap.Bool("testnet", cfg.Testnet),
		zap.Int("max_retries", c.maxRetries))
	return c, nil
}

func newClient(cfg config.BinanceConfig) *BinanceClient {
	c := &BinanceClient{
		market:     cfg.Market,
		pageLimit:  cfg.PageLimit,
		maxRetries: cfg.Retries(),
		retryMin:   time.Duration(cfg.RetryMinMS) * time.Millisecond,
		retryMax:   time.Duration(cfg.RetryMaxMS) * time.Millisecond,
		pause:      100 * time.Millisecond,
	}
	if c.market == "" {
		c.market = "spot"
	}
	if c.pageLimit <= 0 || c.pageLimit > 1000 {
		c.pageLimit = 1000
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	return c
}

func spotFetcher(client *binance.Client) pageFetcher {
	return func(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]kline, error) {
		klines, err := client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(start).
			EndTime(end).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]kline, len(klines))
		for i, k := range klines {
			out[i] = kline{k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume, k.CloseTime}
		}
		return out, nil
	}
}

func futuresFetcher(client *futures.Client) pageFetcher {
	return func(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]kline, error) {
		klines, err := client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(start).
			EndTime(end).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]kline, len(klines))
		for i, k := range klines {
			out[i] = kline{k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume, k.CloseTime}
		}
		return out, nil
	}
}

// FetchCandles загружает свечи за [from, to] постранично.
// Если повторы исчерпаны, возвращается уже загруженная часть.
func (c *BinanceClient) FetchCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	start := from.UnixMilli()
	end := to.UnixMilli()

	var candles []models.Candle
	for start < end {
		page, err := c.fetchPage(ctx, symbol, interval, start, end)
		if err != nil {
			if len(candles) == 0 {
				return nil, fmt.Errorf("ошибка получения свечей %s %s: %w", symbol, interval, err)
			}
			logger.Warn("Загрузка свечей прервана, используются частичные данные",
				zap.String("symbol", symbol),
				zap.String("interval", interval),
				zap.Int("candles", len(candles)),
				zap.Error(err))
			return candles, nil
		}
		if len(page) == 0 {
			break
		}

		for _, k := range page {
			candle, err := toCandle(symbol, interval, k)
			if err != nil {
				return nil, err
			}
			candles = append(candles, candle)
		}

		logger.Debug("Получена страница свечей",
			zap.String("symbol", symbol),
			zap.String("interval", interval),
			zap.Int("page", len(page)),
			zap.Int("total", len(candles)))

		start = page[len(page)-1].CloseTime + 1
		if len(page) < c.pageLimit {
			break
		}
		if err := sleep(ctx, c.pause); err != nil {
			return candles, err
		}
	}

	return candles, nil
}

// fetchPage загружает страницу с повторами и экспоненциальной задержкой
func (c *BinanceClient) fetchPage(ctx context.Context, symbol, interval string, start, end int64) ([]kline, error) {
	b := &backoff.Backoff{
		Min:    c.retryMin,
		Max:    c.retryMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		page, err := c.fetch(ctx, symbol, interval, start, end, c.pageLimit)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.maxRetries {
			break
		}

		delay := b.Duration()
		logger.Warn("Ошибка запроса свечей, повтор",
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func toCandle(symbol, interval string, k kline) (models.Candle, error) {
	values := make([]float64, 5)
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("ошибка разбора свечи %s %d: %w", symbol, k.OpenTime, err)
		}
		values[i] = v
	}

	return models.Candle{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		CloseTime: time.UnixMilli(k.CloseTime).UTC(),
	}, nil
}
