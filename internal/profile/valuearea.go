package profile

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/skalibog/mprofile/pkg/models"
)

// DefaultValueAreaFraction доля TPO в зоне стоимости по умолчанию
var DefaultValueAreaFraction = decimal.NewFromFloat(0.70)

type level struct {
	tick  int64
	price decimal.Decimal
	count int
}

// countLevels считает TPO на каждом уровне, уровни по возрастанию цены
func countLevels(blocks []models.TPOBlock) []level {
	byTick := make(map[int64]int)
	var levels []level
	for _, b := range blocks {
		i, ok := byTick[b.Tick]
		if !ok {
			i = len(levels)
			byTick[b.Tick] = i
			levels = append(levels, level{tick: b.Tick, price: b.Price})
		}
		levels[i].count++
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].tick < levels[j].tick })
	return levels
}

// ValueArea находит POC и расширяет зону от него, пока не наберется
// fraction от всех TPO сессии. При равенстве соседних уровней зона растет вверх.
func ValueArea(blocks []models.TPOBlock, fraction decimal.Decimal) models.ValueArea {
	levels := countLevels(blocks)
	if len(levels) == 0 {
		return models.ValueArea{}
	}

	total := 0
	for _, l := range levels {
		total += l.count
	}
	poc := pocIndex(levels)

	target := fraction.Mul(decimal.NewFromInt(int64(total)))
	lower, upper := poc, poc
	included := levels[poc].count

expand:
	for decimal.NewFromInt(int64(included)).LessThan(target) {
		canUp := upper < len(levels)-1
		canDown := lower > 0

		switch {
		case canUp && canDown:
			if levels[upper+1].count >= levels[lower-1].count {
				upper++
				included += levels[upper].count
			} else {
				lower--
				included += levels[lower].count
			}
		case canUp:
			upper++
			included += levels[upper].count
		case canDown:
			lower--
			included += levels[lower].count
		default:
			break expand
		}
	}

	return models.ValueArea{
		POC:      levels[poc].price,
		High:     levels[upper].price,
		Low:      levels[lower].price,
		Included: included,
		Total:    total,
		Valid:    true,
	}
}

// POC уровень с максимальным числом TPO (самый низкий при равенстве)
func POC(blocks []models.TPOBlock) (decimal.Decimal, bool) {
	levels := countLevels(blocks)
	if len(levels) == 0 {
		return decimal.Decimal{}, false
	}
	return levels[pocIndex(levels)].price, true
}

func pocIndex(levels []level) int {
	poc := 0
	for i, l := range levels {
		// строгое сравнение: при равенстве остается самая низкая цена
		if l.count > levels[poc].count {
			poc = i
		}
	}
	return poc
}
