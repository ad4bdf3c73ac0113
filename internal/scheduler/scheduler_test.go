package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skalibog/mprofile/pkg/models"
)

type fakeRunner struct {
	mu       sync.Mutex
	analyzed [][]string
	daily    []string
	scanned  []string
	failScan bool
}

func (f *fakeRunner) AnalyzeSymbols(_ context.Context, symbols []string) map[string]*models.AnalysisResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzed = append(f.analyzed, symbols)

	out := make(map[string]*models.AnalysisResult)
	for _, s := range symbols {
		out[s] = &models.AnalysisResult{Symbol: s}
	}
	return out
}

func (f *fakeRunner) Analyze(_ context.Context, symbol string, _ time.Time) (*models.DailyReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.daily = append(f.daily, symbol)
	return &models.DailyReport{Symbol: symbol, Timeframes: []models.DailyTimeframe{{Timeframe: "30m"}, {Timeframe: "1h", Err: "x"}}}, nil
}

func (f *fakeRunner) Scan(_ context.Context, symbol string) ([]models.ControlResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanned = append(f.scanned, symbol)
	if f.failScan {
		return nil, errors.New("scan failed")
	}
	return []models.ControlResult{{Timeframe: "30m", Days: 7, Control: models.Control{Side: models.ControlBuyer, Total: 3}}}, nil
}

func TestScheduler_RegisterAll(t *testing.T) {
	f := &fakeRunner{}
	s := NewScheduler(context.Background(), []string{"BTCUSDT"}, f, f, f)

	if err := s.RegisterAll("0 5 * * * *", "0 10 0 * * *"); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if n := len(s.Cron.Entries()); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}

	bad := NewScheduler(context.Background(), nil, f, f, f)
	if err := bad.RegisterAll("not a cron", "0 10 0 * * *"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	f := &fakeRunner{failScan: true}
	s := NewScheduler(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, f, f, f)

	var delivered map[string]*models.AnalysisResult
	s.OnResults = func(r map[string]*models.AnalysisResult) { delivered = r }

	s.RunAnalysisNow()
	if len(f.analyzed) != 1 || len(delivered) != 2 {
		t.Errorf("analysis runs %d, delivered %d", len(f.analyzed), len(delivered))
	}

	s.RunDailyNow()
	if len(f.daily) != 2 || len(f.scanned) != 2 {
		t.Errorf("daily %v scanned %v", f.daily, f.scanned)
	}
}

func TestScheduler_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeRunner{}
	s := NewScheduler(ctx, []string{"BTCUSDT"}, f, f, f)
	s.RunAnalysisNow()
	s.RunDailyNow()

	if len(f.analyzed) != 0 || len(f.daily) != 0 {
		t.Errorf("cancelled scheduler must not run tasks: %v %v", f.analyzed, f.daily)
	}
}
