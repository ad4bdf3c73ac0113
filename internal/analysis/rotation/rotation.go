package rotation

import (
	"fmt"

	"github.com/skalibog/mprofile/pkg/models"
)

// DefaultStrongFactor порог сильного контроля на одну сессию
const DefaultStrongFactor = 2

// TotalLabel подпись итоговой строки
const TotalLabel = "Sum"

func sign(curr, prev int64) int {
	switch {
	case curr > prev:
		return 1
	case curr < prev:
		return -1
	}
	return 0
}

// Score считает фактор ротации для соседних брекетов сессии.
// Меньше двух брекетов дает пустую таблицу с Sufficient=false.
func Score(ranges []models.BracketRange) models.RotationTable {
	table := models.RotationTable{Total: models.RotationRow{Label: TotalLabel}}
	if len(ranges) < 2 {
		return table
	}

	table.Rows = make([]models.RotationRow, 0, len(ranges)-1)
	for i := 1; i < len(ranges); i++ {
		prev, curr := ranges[i-1], ranges[i]
		row := models.RotationRow{
			Label: fmt.Sprintf("%s vs %s", curr.Letter, prev.Letter),
			High:  sign(curr.HighTick, prev.HighTick),
			Low:   sign(curr.LowTick, prev.LowTick),
		}
		row.Net = row.High + row.Low
		table.Rows = append(table.Rows, row)

		table.Total.High += row.High
		table.Total.Low += row.Low
		table.Total.Net += row.Net
	}
	table.Sufficient = true
	return table
}

// ScoreSessions таблица ротации для каждой сессии профиля
func ScoreSessions(p *models.Profile) []models.SessionRotation {
	if p == nil {
		return nil
	}
	rotations := make([]models.SessionRotation, 0, len(p.Sessions))
	for _, s := range p.Sessions {
		ranges := p.SessionBrackets(s.Date)
		rotations = append(rotations, models.SessionRotation{
			Date:     s.Date,
			Brackets: len(ranges),
			Table:    Score(ranges),
		})
	}
	return rotations
}

// Classify определяет сторону контроля по суммарной ротации.
// Сильный контроль, когда |total| больше sessions*strongFactor.
func Classify(total, sessions, strongFactor int) models.Control {
	c := models.Control{Total: total, Sessions: sessions}
	threshold := sessions * strongFactor

	switch {
	case total > 0:
		c.Side = models.ControlBuyer
		c.Strength = models.StrengthModerate
		if total > threshold {
			c.Strength = models.StrengthStrong
		}
	case total < 0:
		c.Side = models.ControlSeller
		c.Strength = models.StrengthModerate
		if total < -threshold {
			c.Strength = models.StrengthStrong
		}
	default:
		c.Side = models.ControlNeutral
		c.Strength = models.StrengthBalanced
	}
	return c
}

// Aggregate суммирует итоговую ротацию сессий с достаточными данными
func Aggregate(rotations []models.SessionRotation, strongFactor int) models.Control {
	total, sessions := 0, 0
	for _, r := range rotations {
		if !r.Table.Sufficient {
			continue
		}
		total += r.Table.Total.Net
		sessions++
	}
	return Classify(total, sessions, strongFactor)
}
