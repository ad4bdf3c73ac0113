package poc

import (
	"github.com/shopspring/decimal"
	"github.com/skalibog/mprofile/internal/profile"
	"github.com/skalibog/mprofile/pkg/models"
)

// Movement оценивает смещение POC между соседними записями серии
func Movement(series []models.POCRecord) models.POCMovement {
	m := models.POCMovement{Records: series}
	if len(series) < 2 {
		m.Bias = models.BiasInsufficient
		return m
	}

	m.Steps = make([]models.POCStep, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev, curr := series[i-1], series[i]
		step := models.POCStep{
			Time:      curr.Time,
			POC:       curr.POC,
			Previous:  prev.POC,
			Change:    curr.POC.Sub(prev.POC),
			Direction: models.DirectionFlat,
		}
		switch curr.POC.Cmp(prev.POC) {
		case 1:
			step.Score = 1
			step.Direction = models.DirectionUp
		case -1:
			step.Score = -1
			step.Direction = models.DirectionDown
		}
		m.Steps = append(m.Steps, step)
		m.Score += step.Score
	}

	switch {
	case m.Score > 0:
		m.Bias = models.BiasBullish
	case m.Score < 0:
		m.Bias = models.BiasBearish
	default:
		m.Bias = models.BiasNeutral
	}
	return m
}

// Tracker отслеживает POC по сессиям или внутри текущей сессии
type Tracker struct {
	builder *profile.Builder
}

// NewTracker создает трекер POC
func NewTracker(b *profile.Builder) *Tracker {
	return &Tracker{builder: b}
}

// EndOfSession POC каждой сессии. Сессии без POC пропускаются.
func (t *Tracker) EndOfSession(candles []models.Candle) []models.POCRecord {
	p := t.builder.Build(candles)

	records := make([]models.POCRecord, 0, len(p.Sessions))
	for _, s := range p.Sessions {
		if !s.POC.Valid {
			continue
		}
		records = append(records, models.POCRecord{Time: s.Date, POC: s.POC.Decimal})
	}
	return records
}

// Sessions движение POC от сессии к сессии
func (t *Tracker) Sessions(candles []models.Candle) models.POCMovement {
	m := Movement(t.EndOfSession(candles))
	m.Mode = models.POCModeSessions
	return m
}

// Incremental пересчитывает POC текущей сессии после каждого брекета.
// Первой точкой серии служит итоговый POC предыдущей сессии.
func (t *Tracker) Incremental(prior, today []models.Candle) models.POCMovement {
	var series []models.POCRecord
	var seed decimal.NullDecimal

	if records := t.EndOfSession(prior); len(records) > 0 {
		last := records[len(records)-1]
		seed = decimal.NewNullDecimal(last.POC)
		series = append(series, last)
	}

	sessions := profile.SplitSessions(today)
	if len(sessions) > 0 {
		current := sessions[len(sessions)-1]
		var seen []models.Candle
		for _, br := range profile.SplitBrackets(current, t.builder.BracketMinutes()) {
			seen = append(seen, br.Candles...)
			blocks, _, _ := t.builder.BuildSession(current.Date, seen)
			poc, ok := profile.POC(blocks)
			if !ok {
				continue
			}
			series = append(series, models.POCRecord{Time: br.Start, POC: poc})
		}
	}

	m := Movement(series)
	m.Mode = models.POCModeToday
	m.Seed = seed
	return m
}
