package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout формат календарной даты сессии
const DateLayout = "2006-01-02"

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// TPOBlock одна клетка профиля: уровень цены, посещенный в брекете
type TPOBlock struct {
	Date   time.Time       `json:"date"`
	Tick   int64           `json:"tick"`
	Price  decimal.Decimal `json:"price"`
	Letter string          `json:"letter"`
}

// BracketRange квантованный диапазон брекета
type BracketRange struct {
	Date     time.Time       `json:"date"`
	Letter   string          `json:"letter"`
	Index    int             `json:"bracket_index"`
	Ordinal  int             `json:"ordinal"`
	Start    time.Time       `json:"start"`
	LowTick  int64           `json:"low_tick"`
	HighTick int64           `json:"high_tick"`
	Low      decimal.Decimal `json:"low"`
	High     decimal.Decimal `json:"high"`
	Open     float64         `json:"candle_open"`
	Close    float64         `json:"candle_close"`
	Volume   float64         `json:"volume"`
}

// SessionSummary сводка по торговой сессии (календарному дню UTC)
type SessionSummary struct {
	Date          time.Time           `json:"date"`
	High          float64             `json:"session_high"`
	Low           float64             `json:"session_low"`
	Open          float64             `json:"session_open"`
	Close         float64             `json:"session_close"`
	POC           decimal.NullDecimal `json:"poc"`
	ValueAreaHigh decimal.NullDecimal `json:"value_area_high"`
	ValueAreaLow  decimal.NullDecimal `json:"value_area_low"`
	Range         float64             `json:"range"`
	Brackets      int                 `json:"brackets"`
	Candles       int                 `json:"candles"`
	Volume        float64             `json:"volume"`
}

// Profile результат построения TPO профиля
type Profile struct {
	Symbol         string           `json:"symbol"`
	Interval       string           `json:"interval"`
	BracketMinutes int              `json:"bracket_minutes"`
	TickSize       decimal.Decimal  `json:"tick_size"`
	Blocks         []TPOBlock       `json:"tpo_blocks"`
	Brackets       []BracketRange   `json:"bracket_ranges"`
	Sessions       []SessionSummary `json:"sessions"`
}

// SessionBlocks возвращает TPO блоки одной сессии
func (p *Profile) SessionBlocks(date time.Time) []TPOBlock {
	var blocks []TPOBlock
	for _, b := range p.Blocks {
		if b.Date.Equal(date) {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// SessionBrackets возвращает брекеты одной сессии в порядке времени
func (p *Profile) SessionBrackets(date time.Time) []BracketRange {
	var brackets []BracketRange
	for _, b := range p.Brackets {
		if b.Date.Equal(date) {
			brackets = append(brackets, b)
		}
	}
	return brackets
}

// LastSession возвращает сводку последней сессии
func (p *Profile) LastSession() (SessionSummary, bool) {
	if len(p.Sessions) == 0 {
		return SessionSummary{}, false
	}
	return p.Sessions[len(p.Sessions)-1], true
}

// ValueArea зона стоимости сессии
type ValueArea struct {
	POC      decimal.Decimal `json:"poc"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Included int             `json:"included_tpos"`
	Total    int             `json:"total_tpos"`
	Valid    bool            `json:"valid"`
}

// DensityLevel уровень совокупного профиля за все дни
type DensityLevel struct {
	Price decimal.Decimal `json:"price"`
	Days  int             `json:"days_visited"`
	TPOs  int             `json:"tpo_count"`
}

// ProfileRow строка профиля: цена и буквы по датам
type ProfileRow struct {
	Price   decimal.Decimal   `json:"price"`
	Letters map[string]string `json:"letters"`
}
