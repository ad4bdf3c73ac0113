package control

import (
	"fmt"

	"github.com/skalibog/mprofile/pkg/models"
)

// Summarize группирует результаты скана по периодам в порядке их появления
func Summarize(results []models.ControlResult) []models.ControlSummary {
	var (
		order   []int
		grouped = make(map[int][]models.ControlResult)
	)
	for _, r := range results {
		if _, ok := grouped[r.Days]; !ok {
			order = append(order, r.Days)
		}
		grouped[r.Days] = append(grouped[r.Days], r)
	}

	summaries := make([]models.ControlSummary, 0, len(order))
	for _, days := range order {
		summaries = append(summaries, summarize(days, grouped[days]))
	}
	return summaries
}

func summarize(days int, results []models.ControlResult) models.ControlSummary {
	s := models.ControlSummary{Days: days, Results: results}

	for _, r := range results {
		switch r.Control.Side {
		case models.ControlBuyer:
			s.Buyers++
		case models.ControlSeller:
			s.Sellers++
		case models.ControlNeutral:
			s.Neutral++
		}
		s.CombinedScore += r.Control.Total
	}

	switch {
	case s.Buyers > s.Sellers:
		s.Overall = fmt.Sprintf("ПОКУПАТЕЛИ контролируют рынок (%d/%d таймфреймов)", s.Buyers, len(results))
	case s.Sellers > s.Buyers:
		s.Overall = fmt.Sprintf("ПРОДАВЦЫ контролируют рынок (%d/%d таймфреймов)", s.Sellers, len(results))
	default:
		s.Overall = fmt.Sprintf("РЫНОК В БАЛАНСЕ (покупатели %d, продавцы %d)", s.Buyers, s.Sellers)
	}

	switch {
	case s.CombinedScore > 0:
		s.Interpretation = fmt.Sprintf("Бычий импульс за %d дней", days)
	case s.CombinedScore < 0:
		s.Interpretation = fmt.Sprintf("Медвежий импульс за %d дней", days)
	default:
		s.Interpretation = fmt.Sprintf("Нейтрально/баланс за %d дней", days)
	}
	return s
}
