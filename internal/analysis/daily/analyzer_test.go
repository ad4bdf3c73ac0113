package daily

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skalibog/mprofile/internal/config"
	"github.com/skalibog/mprofile/pkg/models"
)

var target = time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

// session свечи 30m одного дня: по одной на брекет, high = low + 2.5
func session(date time.Time, volume float64, lows ...float64) []models.Candle {
	out := make([]models.Candle, 0, len(lows))
	for i, low := range lows {
		open := date.Add(time.Duration(i) * 30 * time.Minute)
		out = append(out, models.Candle{
			Symbol:    "TESTUSDT",
			Interval:  "30m",
			OpenTime:  open,
			Open:      low + 1,
			High:      low + 2.5,
			Low:       low,
			Close:     low + 1,
			Volume:    volume,
			CloseTime: open.Add(30*time.Minute - time.Millisecond),
		})
	}
	return out
}

type fakeSource struct {
	candles []models.Candle
	fail    map[string]error
}

func (f *fakeSource) FetchCandles(_ context.Context, _, interval string, from, to time.Time) ([]models.Candle, error) {
	if err, ok := f.fail[interval]; ok {
		return nil, err
	}
	var out []models.Candle
	for _, c := range f.candles {
		if !c.OpenTime.Before(from) && !c.OpenTime.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestAnalyzer_Analyze(t *testing.T) {
	var candles []models.Candle
	candles = append(candles, session(target.AddDate(0, 0, -3), 10, 10, 10, 10)...)
	candles = append(candles, session(target.AddDate(0, 0, -2), 30, 12, 11)...)
	candles = append(candles, session(target.AddDate(0, 0, -1), 45, 11, 11)...)
	candles = append(candles, session(target, 50, 10, 10, 10, 20)...)

	cfg := config.Default()
	cfg.Daily.Timeframes = []string{"30m", "1h"}
	cfg.Daily.VolumeLookback = 3

	a := NewAnalyzer(cfg, &fakeSource{
		candles: candles,
		fail:    map[string]error{"1h": errors.New("таймаут")},
	})

	report, err := a.Analyze(context.Background(), "TESTUSDT", target.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !report.TargetDate.Equal(target) || report.Coin != "TEST" {
		t.Errorf("report header = %s %s", report.TargetDate, report.Coin)
	}
	if len(report.Timeframes) != 2 {
		t.Fatalf("expected 2 timeframes, got %d", len(report.Timeframes))
	}

	tf := report.Timeframes[0]
	if tf.Err != "" {
		t.Fatalf("unexpected error: %s", tf.Err)
	}

	days := []struct {
		name     string
		got      models.DayMetrics
		rotation int
		brackets int
		volume   float64
	}{
		{"today", tf.Today, 2, 4, 200},
		{"yesterday", tf.Yesterday, 0, 2, 90},
		{"day before", tf.DayBefore, -2, 2, 60},
	}
	for _, d := range days {
		if d.got.Rotation != d.rotation || d.got.Brackets != d.brackets || d.got.Volume != d.volume {
			t.Errorf("%s = rotation %d brackets %d volume %v, want %d %d %v",
				d.name, d.got.Rotation, d.got.Brackets, d.got.Volume, d.rotation, d.brackets, d.volume)
		}
	}

	va := tf.Today.ValueArea
	if !va.Valid || !va.POC.Equal(decimal.NewFromInt(10)) || !va.Low.Equal(decimal.NewFromInt(10)) || !va.High.Equal(decimal.NewFromInt(12)) {
		t.Errorf("today value area = %+v", va)
	}
	if tf.Today.VAVolume != 150 || tf.Today.VAPercentage != 75 {
		t.Errorf("today va volume = %v (%v%%), want 150 (75%%)", tf.Today.VAVolume, tf.Today.VAPercentage)
	}

	if tf.Control != models.ControlBuyer || tf.Trend != TrendStrongUp {
		t.Errorf("control/trend = %s/%s", tf.Control, tf.Trend)
	}
	if tf.VAPlacement != PlacementOverlap || tf.VAWidth != WidthEqual {
		t.Errorf("placement/width = %s/%s", tf.VAPlacement, tf.VAWidth)
	}
	if tf.VolumeAverage != 60 || tf.VolumeVsAverage != VolumeAbove {
		t.Errorf("volume average = %v %s, want 60 ABOVE", tf.VolumeAverage, tf.VolumeVsAverage)
	}

	if report.Timeframes[1].Err == "" {
		t.Error("expected error for failed timeframe")
	}
}

func TestAnalyzer_EmptyDays(t *testing.T) {
	cfg := config.Default()
	cfg.Daily.Timeframes = []string{"30m"}

	report, err := NewAnalyzer(cfg, &fakeSource{}).Analyze(context.Background(), "TESTUSDT", target)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	tf := report.Timeframes[0]
	if tf.Err != "" || tf.Today.Brackets != 0 || tf.Today.ValueArea.Valid {
		t.Errorf("expected empty metrics, got %+v", tf.Today)
	}
	if tf.Control != models.ControlNeutral || tf.Trend != TrendStable || tf.VAPlacement != NotAvailable || tf.VolumeVsAverage != NotAvailable {
		t.Errorf("unexpected labels %+v", tf)
	}
}

func TestTrend(t *testing.T) {
	tests := []struct {
		today, yesterday, dayBefore int
		want                        string
	}{
		{3, 2, 1, TrendStrongUp},
		{3, 2, 5, TrendUp},
		{-1, 0, 1, TrendStrongDown},
		{-1, 0, -3, TrendDown},
		{2, 2, 0, TrendStable},
	}
	for _, tt := range tests {
		if got := Trend(tt.today, tt.yesterday, tt.dayBefore); got != tt.want {
			t.Errorf("Trend(%d, %d, %d) = %q, want %q", tt.today, tt.yesterday, tt.dayBefore, got, tt.want)
		}
	}
}

func TestCompareValueAreas(t *testing.T) {
	area := func(low, high int64) models.ValueArea {
		return models.ValueArea{Low: decimal.NewFromInt(low), High: decimal.NewFromInt(high), Valid: true}
	}

	tests := []struct {
		name             string
		today, yesterday models.ValueArea
		placement, width string
	}{
		{"higher", area(14, 16), area(10, 13), PlacementHigher, WidthNarrower},
		{"lower", area(5, 9), area(10, 13), PlacementLower, WidthWider},
		{"overlap", area(12, 15), area(10, 13), PlacementOverlap, WidthEqual},
		{"invalid", models.ValueArea{}, area(10, 13), NotAvailable, NotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			placement, width := CompareValueAreas(tt.today, tt.yesterday)
			if placement != tt.placement || width != tt.width {
				t.Errorf("got %s/%s, want %s/%s", placement, width, tt.placement, tt.width)
			}
		})
	}
}

func TestVolumeVsAverage(t *testing.T) {
	if _, label := VolumeVsAverage(5, []float64{1}); label != NotAvailable {
		t.Errorf("single session must be N/A, got %s", label)
	}
	if avg, label := VolumeVsAverage(5, []float64{4, 6}); avg != 5 || label != VolumeAbove {
		t.Errorf("got %v %s, want 5 ABOVE", avg, label)
	}
	if _, label := VolumeVsAverage(4, []float64{4, 6}); label != VolumeBelow {
		t.Errorf("got %s, want BELOW", label)
	}
}
