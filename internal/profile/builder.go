package profile

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skalibog/mprofile/pkg/models"
)

var (
	// ErrInvalidBracket длина брекета должна быть положительной
	ErrInvalidBracket = errors.New("длина брекета должна быть положительной")
	// ErrInvalidFraction доля зоны стоимости вне (0, 1]
	ErrInvalidFraction = errors.New("доля зоны стоимости должна быть в (0, 1]")
)

// Builder строит TPO профиль по свечам
type Builder struct {
	grid           TickGrid
	bracketMinutes int
	fraction       decimal.Decimal
}

// NewBuilder создает построитель профиля
func NewBuilder(grid TickGrid, bracketMinutes int, fraction decimal.Decimal) (*Builder, error) {
	if !grid.valid() {
		return nil, ErrInvalidTickSize
	}
	if bracketMinutes <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBracket, bracketMinutes)
	}
	if !fraction.IsPositive() || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFraction, fraction)
	}
	return &Builder{grid: grid, bracketMinutes: bracketMinutes, fraction: fraction}, nil
}

// BracketMinutes длина брекета в минутах
func (b *Builder) BracketMinutes() int {
	return b.bracketMinutes
}

// Fraction доля зоны стоимости
func (b *Builder) Fraction() decimal.Decimal {
	return b.fraction
}

// Build строит профиль по упорядоченным свечам одного символа и интервала
func (b *Builder) Build(candles []models.Candle) *models.Profile {
	p := &models.Profile{
		BracketMinutes: b.bracketMinutes,
		TickSize:       b.grid.Tick(),
	}
	if len(candles) > 0 {
		p.Symbol = candles[0].Symbol
		p.Interval = candles[0].Interval
	}

	for _, s := range SplitSessions(candles) {
		blocks, ranges, summary := b.BuildSession(s.Date, s.Candles)
		p.Blocks = append(p.Blocks, blocks...)
		p.Brackets = append(p.Brackets, ranges...)
		p.Sessions = append(p.Sessions, summary)
	}
	return p
}

// BuildSession строит профиль одной сессии. Пустая сессия дает сводку без POC и зоны стоимости.
func (b *Builder) BuildSession(date time.Time, candles []models.Candle) ([]models.TPOBlock, []models.BracketRange, models.SessionSummary) {
	summary := models.SessionSummary{Date: date}

	var valid []models.Candle
	for _, c := range candles {
		if finite(c) {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return nil, nil, summary
	}

	summary.Open = valid[0].Open
	summary.Close = valid[len(valid)-1].Close
	summary.High = valid[0].High
	summary.Low = valid[0].Low
	for _, c := range valid {
		summary.High = math.Max(summary.High, c.High)
		summary.Low = math.Min(summary.Low, c.Low)
		summary.Volume += c.Volume
	}
	summary.Range = summary.High - summary.Low
	summary.Candles = len(valid)

	brackets := SplitBrackets(Session{Date: date, Candles: valid}, b.bracketMinutes)
	summary.Brackets = len(brackets)

	var blocks []models.TPOBlock
	ranges := make([]models.BracketRange, 0, len(brackets))
	for _, br := range brackets {
		lo, hi := b.grid.Range(br.Low, br.High)
		for idx := lo; idx <= hi; idx++ {
			blocks = append(blocks, models.TPOBlock{
				Date:   date,
				Tick:   idx,
				Price:  b.grid.Price(idx),
				Letter: br.Letter,
			})
		}
		ranges = append(ranges, models.BracketRange{
			Date:     date,
			Letter:   br.Letter,
			Index:    br.Index,
			Ordinal:  br.Ordinal,
			Start:    br.Start,
			LowTick:  lo,
			HighTick: hi,
			Low:      b.grid.Price(lo),
			High:     b.grid.Price(hi),
			Open:     br.Open,
			Close:    br.Close,
			Volume:   br.Volume,
		})
	}

	va := ValueArea(blocks, b.fraction)
	if va.Valid {
		summary.POC = decimal.NewNullDecimal(va.POC)
		summary.ValueAreaHigh = decimal.NewNullDecimal(va.High)
		summary.ValueAreaLow = decimal.NewNullDecimal(va.Low)
	}
	return blocks, ranges, summary
}
