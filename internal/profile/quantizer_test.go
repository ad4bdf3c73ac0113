package profile

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func mustGrid(t *testing.T, tick string) TickGrid {
	t.Helper()
	g, err := NewTickGrid(decimal.RequireFromString(tick))
	if err != nil {
		t.Fatalf("NewTickGrid(%s): %v", tick, err)
	}
	return g
}

func TestNewTickGrid_RejectsNonPositive(t *testing.T) {
	for _, tick := range []string{"0", "-1", "-0.005"} {
		if _, err := NewTickGrid(decimal.RequireFromString(tick)); !errors.Is(err, ErrInvalidTickSize) {
			t.Errorf("tick %s: expected ErrInvalidTickSize, got %v", tick, err)
		}
	}
}

func TestTickGrid_Indexes(t *testing.T) {
	tests := []struct {
		tick  string
		price float64
		low   int64
		high  int64
	}{
		{"1", 10.5, 10, 10},
		{"1", 12, 12, 11},
		{"1", 0, 0, -1},
		{"1", -0.5, -1, -1},
		{"100", 65432.1, 654, 654},
		{"100", 65400, 654, 653},
		{"3", 3001.5, 1000, 1000},
		{"0.005", 0.615, 123, 122},
		{"0.005", 0.6151, 123, 123},
		{"0.15", 3.0, 20, 19},
		{"0.15", 3.1, 20, 20},
		{"0.1", 0.3, 3, 2},
	}

	for _, tt := range tests {
		g := mustGrid(t, tt.tick)
		if got := g.LowIndex(tt.price); got != tt.low {
			t.Errorf("tick %s LowIndex(%v) = %d, want %d", tt.tick, tt.price, got, tt.low)
		}
		if got := g.HighIndex(tt.price); got != tt.high {
			t.Errorf("tick %s HighIndex(%v) = %d, want %d", tt.tick, tt.price, got, tt.high)
		}
	}
}

func TestTickGrid_BoundaryExclusion(t *testing.T) {
	g := mustGrid(t, "0.15")
	for k := int64(-5); k <= 50; k++ {
		price, _ := g.Price(k).Float64()
		if got := g.HighIndex(price); got != k-1 {
			t.Errorf("HighIndex(%v) = %d, want %d", price, got, k-1)
		}
	}
}

func TestTickGrid_LowIndexIdempotence(t *testing.T) {
	prices := []float64{0.01, 0.6149, 1.23456, 99.99, 100, 101.5, 2567.89, 65432.123, 104999.99}
	for _, tick := range []string{"0.005", "0.15", "1", "3", "100"} {
		g := mustGrid(t, tick)
		for _, p := range prices {
			floor := g.Price(g.LowIndex(p))
			dp := decimal.NewFromFloat(p)
			if floor.GreaterThan(dp) {
				t.Errorf("tick %s: Price(LowIndex(%v)) = %s is above price", tick, p, floor)
			}
			if dp.Sub(floor).GreaterThanOrEqual(g.Tick()) {
				t.Errorf("tick %s: Price(LowIndex(%v)) = %s is more than one tick below", tick, p, floor)
			}
		}
	}
}

func TestTickGrid_RangeClamp(t *testing.T) {
	g := mustGrid(t, "1")

	lo, hi := g.Range(12, 12)
	if lo != 12 || hi != 12 {
		t.Errorf("Range(12, 12) = [%d, %d], want [12, 12]", lo, hi)
	}

	lo, hi = g.Range(10, 12)
	if lo != 10 || hi != 11 {
		t.Errorf("Range(10, 12) = [%d, %d], want [10, 11]", lo, hi)
	}

	lo, hi = g.Range(10.2, 10.7)
	if lo != 10 || hi != 10 {
		t.Errorf("Range(10.2, 10.7) = [%d, %d], want [10, 10]", lo, hi)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"30m", 30, false},
		{"1h", 60, false},
		{"4h", 240, false},
		{"1d", 1440, false},
		{"15m", 15, false},
		{"0m", 0, true},
		{"-5m", 0, true},
		{"h", 0, true},
		{"30", 0, true},
		{"1w", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPeriod) {
				t.Errorf("ParsePeriod(%q): expected ErrInvalidPeriod, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePeriod(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePeriod(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
