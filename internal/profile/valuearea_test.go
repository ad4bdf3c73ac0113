package profile

import (
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/skalibog/mprofile/pkg/models"
)

// blocksFromCounts строит блоки одной сессии с тиком 1
func blocksFromCounts(counts map[int64]int) []models.TPOBlock {
	ticks := make([]int64, 0, len(counts))
	for tick := range counts {
		ticks = append(ticks, tick)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] > ticks[j] })

	var blocks []models.TPOBlock
	for _, tick := range ticks {
		for i := 0; i < counts[tick]; i++ {
			blocks = append(blocks, models.TPOBlock{
				Date:   day,
				Tick:   tick,
				Price:  decimal.NewFromInt(tick),
				Letter: Letter(i),
			})
		}
	}
	return blocks
}

func TestValueArea_Expansion(t *testing.T) {
	tests := []struct {
		name     string
		counts   map[int64]int
		fraction string
		poc      int64
		low      int64
		high     int64
		included int
	}{
		{"poc tie lowest price", map[int64]int{100: 3, 101: 3, 102: 1}, "0.7", 100, 100, 101, 6},
		{"tie extends upward", map[int64]int{9: 2, 10: 5, 11: 2}, "0.7", 10, 10, 11, 7},
		{"larger lower side", map[int64]int{9: 3, 10: 5, 11: 1}, "0.7", 10, 9, 10, 8},
		{"exact target not floored", map[int64]int{10: 1, 11: 1, 12: 1}, "0.7", 10, 10, 12, 3},
		{"one sided down", map[int64]int{1: 1, 2: 1, 3: 1, 4: 4}, "0.7", 4, 3, 4, 5},
		{"full fraction", map[int64]int{5: 1, 6: 2, 7: 4, 8: 2, 9: 1}, "1", 7, 5, 9, 10},
		{"poc alone enough", map[int64]int{5: 1, 6: 8, 7: 1}, "0.7", 6, 6, 6, 8},
		{"gap between levels", map[int64]int{10: 4, 20: 2, 30: 1}, "0.7", 10, 10, 20, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			va := ValueArea(blocksFromCounts(tt.counts), decimal.RequireFromString(tt.fraction))
			if !va.Valid {
				t.Fatal("expected valid value area")
			}
			if !va.POC.Equal(decimal.NewFromInt(tt.poc)) {
				t.Errorf("POC = %s, want %d", va.POC, tt.poc)
			}
			if !va.Low.Equal(decimal.NewFromInt(tt.low)) || !va.High.Equal(decimal.NewFromInt(tt.high)) {
				t.Errorf("value area = %s..%s, want %d..%d", va.Low, va.High, tt.low, tt.high)
			}
			if va.Included != tt.included {
				t.Errorf("included = %d, want %d", va.Included, tt.included)
			}
		})
	}
}

func TestValueArea_Containment(t *testing.T) {
	tables := []map[int64]int{
		{1: 1, 2: 3, 3: 7, 4: 2, 5: 5, 6: 1},
		{10: 2, 11: 2, 12: 2, 13: 2},
		{100: 9, 101: 1, 102: 1, 103: 9},
		{50: 1},
		{-3: 2, -2: 4, -1: 4, 0: 1},
	}
	fraction := decimal.RequireFromString("0.7")

	for _, counts := range tables {
		va := ValueArea(blocksFromCounts(counts), fraction)

		total := 0
		inside := 0
		for tick, n := range counts {
			total += n
			p := decimal.NewFromInt(tick)
			if p.GreaterThanOrEqual(va.Low) && p.LessThanOrEqual(va.High) {
				inside += n
			}
		}

		if va.Total != total {
			t.Errorf("%v: total = %d, want %d", counts, va.Total, total)
		}
		if inside != va.Included {
			t.Errorf("%v: window holds %d TPO, included reports %d", counts, inside, va.Included)
		}
		target := fraction.Mul(decimal.NewFromInt(int64(total)))
		if decimal.NewFromInt(int64(va.Included)).LessThan(target) {
			t.Errorf("%v: included %d below target %s", counts, va.Included, target)
		}
		if va.POC.LessThan(va.Low) || va.POC.GreaterThan(va.High) {
			t.Errorf("%v: POC %s outside %s..%s", counts, va.POC, va.Low, va.High)
		}
	}
}

func TestValueArea_Empty(t *testing.T) {
	if va := ValueArea(nil, DefaultValueAreaFraction); va.Valid {
		t.Errorf("expected invalid value area, got %+v", va)
	}
	if _, ok := POC(nil); ok {
		t.Error("expected no POC for empty blocks")
	}
}

func TestPOC_TieBreak(t *testing.T) {
	poc, ok := POC(blocksFromCounts(map[int64]int{100: 3, 101: 3, 102: 1}))
	if !ok || !poc.Equal(decimal.NewFromInt(100)) {
		t.Errorf("POC = %s, want 100", poc)
	}
}
