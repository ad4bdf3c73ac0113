package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/skalibog/mprofile/internal/config"
	"github.com/skalibog/mprofile/pkg/logger"
	"github.com/skalibog/mprofile/pkg/models"
	"go.uber.org/zap"
)

const (
	measurementCandles  = "candles"
	measurementAnalysis = "tpo_analysis"
)

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Проверка соединения
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	logger.Info("Подключено хранилище InfluxDB", zap.String("url", cfg.URL), zap.String("bucket", cfg.Bucket))

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() error {
	s.client.Close()
	return nil
}

func candlePoint(c models.Candle) *write.Point {
	return influxdb2.NewPoint(
		measurementCandles,
		map[string]string{
			"symbol":   c.Symbol,
			"interval": c.Interval,
		},
		map[string]interface{}{
			"open":       c.Open,
			"high":       c.High,
			"low":        c.Low,
			"close":      c.Close,
			"volume":     c.Volume,
			"close_time": c.CloseTime.UnixMilli(),
		},
		c.OpenTime,
	)
}

// SaveCandles сохраняет множество свечей
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(candles))
	for _, c := range candles {
		points = append(points, candlePoint(c))
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи свечей: %w", err)
	}
	return nil
}

// GetCandles получает исторические свечи за период
func (s *InfluxDBStorage) GetCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	// Формируем Flux-запрос
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.symbol == "%s")
			|> filter(fn: (r) => r.interval == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"])
	`, s.bucket, fluxTime(from), fluxTime(to.Add(time.Millisecond)), measurementCandles, symbol, interval)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}
	defer result.Close()

	var candles []models.Candle
	for result.Next() {
		record := result.Record()

		openTime := record.Time().UTC()
		open, _ := record.ValueByKey("open").(float64)
		high, _ := record.ValueByKey("high").(float64)
		low, _ := record.ValueByKey("low").(float64)
		closePrice, _ := record.ValueByKey("close").(float64)
		volume, _ := record.ValueByKey("volume").(float64)

		closeTime := openTime.Add(intervalDuration(interval) - time.Millisecond)
		if ms, ok := record.ValueByKey("close_time").(int64); ok {
			closeTime = time.UnixMilli(ms).UTC()
		}

		candles = append(candles, models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  openTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: closeTime,
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}
	return candles, nil
}

// SaveAnalysis сохраняет результат анализа. Повторная запись с тем же
// ключом (symbol, coin, interval, bracket, analysis_date) заменяет прежнюю.
func (s *InfluxDBStorage) SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	point := influxdb2.NewPoint(
		measurementAnalysis,
		map[string]string{
			"symbol":   rec.Symbol,
			"coin":     rec.Coin,
			"interval": rec.Interval,
			"bracket":  fmt.Sprintf("%d", rec.BracketMinutes),
		},
		map[string]interface{}{
			"id":             rec.ID,
			"days_analyzed":  int64(rec.DaysAnalyzed),
			"rotation_score": int64(rec.RotationScore),
			"control":        string(rec.Control),
			"strength":       string(rec.Strength),
			"poc_score":      int64(rec.POCScore),
			"poc_bias":       string(rec.POCBias),
			"created_at":     rec.CreatedAt.UnixMilli(),
			"payload":        string(rec.Payload),
		},
		rec.AnalysisDate,
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("ошибка записи результата анализа: %w", err)
	}
	return nil
}

// GetAnalysisHistory получает историю анализов
func (s *InfluxDBStorage) GetAnalysisHistory(ctx context.Context, f HistoryFilter) ([]models.AnalysisRecord, error) {
	start := "-365d"
	if !f.From.IsZero() {
		start = fluxTime(f.From)
	}
	stop := "now()"
	if !f.To.IsZero() {
		stop = fluxTime(f.To.Add(time.Millisecond))
	}

	var filters strings.Builder
	if f.Symbol != "" {
		fmt.Fprintf(&filters, "\n\t\t\t|> filter(fn: (r) => r.symbol == %q)", f.Symbol)
	}
	if f.Interval != "" {
		fmt.Fprintf(&filters, "\n\t\t\t|> filter(fn: (r) => r.interval == %q)", f.Interval)
	}
	limit := ""
	if f.Limit > 0 {
		limit = fmt.Sprintf("\n\t\t\t|> limit(n: %d)", f.Limit)
	}

	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r._measurement == "%s")%s
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> group()
			|> sort(columns: ["_time"], desc: true)%s
	`, s.bucket, start, stop, measurementAnalysis, filters.String(), limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории анализов: %w", err)
	}
	defer result.Close()

	var records []models.AnalysisRecord
	for result.Next() {
		r := result.Record()

		rec := models.AnalysisRecord{AnalysisDate: r.Time().UTC()}
		rec.ID, _ = r.ValueByKey("id").(string)
		rec.Symbol, _ = r.ValueByKey("symbol").(string)
		rec.Coin, _ = r.ValueByKey("coin").(string)
		rec.Interval, _ = r.ValueByKey("interval").(string)
		if bracket, ok := r.ValueByKey("bracket").(string); ok {
			fmt.Sscanf(bracket, "%d", &rec.BracketMinutes)
		}
		if v, ok := r.ValueByKey("days_analyzed").(int64); ok {
			rec.DaysAnalyzed = int(v)
		}
		if v, ok := r.ValueByKey("rotation_score").(int64); ok {
			rec.RotationScore = int(v)
		}
		if v, ok := r.ValueByKey("poc_score").(int64); ok {
			rec.POCScore = int(v)
		}
		control, _ := r.ValueByKey("control").(string)
		rec.Control = models.ControlSide(control)
		strength, _ := r.ValueByKey("strength").(string)
		rec.Strength = models.Strength(strength)
		bias, _ := r.ValueByKey("poc_bias").(string)
		rec.POCBias = models.Bias(bias)
		if v, ok := r.ValueByKey("created_at").(int64); ok {
			rec.CreatedAt = time.UnixMilli(v).UTC()
		}
		if payload, ok := r.ValueByKey("payload").(string); ok {
			rec.Payload = []byte(payload)
		}

		records = append(records, rec)
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}
	return records, nil
}

// GetSymbols возвращает список символов с сохраненными свечами
func (s *InfluxDBStorage) GetSymbols(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -30d)
			|> filter(fn: (r) => r._measurement == "%s")
			|> keep(columns: ["symbol"])
			|> group()
			|> distinct(column: "symbol")
	`, s.bucket, measurementCandles)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса символов: %w", err)
	}
	defer result.Close()

	var symbols []string
	for result.Next() {
		if symbol, ok := result.Record().Value().(string); ok {
			symbols = append(symbols, symbol)
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}
	return symbols, nil
}

func fluxTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
