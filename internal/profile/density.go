package profile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skalibog/mprofile/pkg/models"
)

// Density совокупный профиль за все дни: сколько дней цена посещалась
// и сколько TPO на ней набрано. Уровни по убыванию цены.
func Density(blocks []models.TPOBlock) []models.DensityLevel {
	type acc struct {
		price decimal.Decimal
		days  map[time.Time]struct{}
		tpos  int
	}

	byTick := make(map[int64]*acc)
	ticks := make([]int64, 0)
	for _, b := range blocks {
		a, ok := byTick[b.Tick]
		if !ok {
			a = &acc{price: b.Price, days: make(map[time.Time]struct{})}
			byTick[b.Tick] = a
			ticks = append(ticks, b.Tick)
		}
		a.days[b.Date] = struct{}{}
		a.tpos++
	}

	sort.Slice(ticks, func(i, j int) bool { return ticks[i] > ticks[j] })

	levels := make([]models.DensityLevel, 0, len(ticks))
	for _, t := range ticks {
		a := byTick[t]
		levels = append(levels, models.DensityLevel{
			Price: a.price,
			Days:  len(a.days),
			TPOs:  a.tpos,
		})
	}
	return levels
}

// Matrix строки профиля: для каждой цены буквы брекетов по датам (дата в формате 2006-01-02)
func Matrix(blocks []models.TPOBlock) []models.ProfileRow {
	byTick := make(map[int64]*models.ProfileRow)
	ticks := make([]int64, 0)
	for _, b := range blocks {
		row, ok := byTick[b.Tick]
		if !ok {
			row = &models.ProfileRow{Price: b.Price, Letters: make(map[string]string)}
			byTick[b.Tick] = row
			ticks = append(ticks, b.Tick)
		}
		key := b.Date.Format(models.DateLayout)
		row.Letters[key] += b.Letter
	}

	sort.Slice(ticks, func(i, j int) bool { return ticks[i] > ticks[j] })

	rows := make([]models.ProfileRow, 0, len(ticks))
	for _, t := range ticks {
		rows = append(rows, *byTick[t])
	}
	return rows
}
