package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RotationRow сравнение двух соседних брекетов (или итоговая строка)
type RotationRow struct {
	Label string `json:"label"`
	High  int    `json:"high"`
	Low   int    `json:"low"`
	Net   int    `json:"net"`
}

// RotationTable таблица фактора ротации сессии
type RotationTable struct {
	Rows       []RotationRow `json:"rows"`
	Total      RotationRow   `json:"total"`
	Sufficient bool          `json:"sufficient"`
}

// SessionRotation таблица ротации, привязанная к дате
type SessionRotation struct {
	Date     time.Time     `json:"date"`
	Brackets int           `json:"brackets"`
	Table    RotationTable `json:"table"`
}

// ControlSide сторона, контролирующая аукцион
type ControlSide string

const (
	ControlBuyer   ControlSide = "BUYER"
	ControlSeller  ControlSide = "SELLER"
	ControlNeutral ControlSide = "NEUTRAL"
	ControlError   ControlSide = "ERROR"
)

// Strength сила контроля
type Strength string

const (
	StrengthStrong   Strength = "Strong"
	StrengthModerate Strength = "Moderate"
	StrengthBalanced Strength = "Balanced"
)

// Control классификация суммарной ротации
type Control struct {
	Side     ControlSide `json:"control"`
	Strength Strength    `json:"strength"`
	Total    int         `json:"total_net_rotation"`
	Sessions int         `json:"sessions_analyzed"`
}

// POCRecord POC сессии (или POC на момент закрытия брекета)
type POCRecord struct {
	Time time.Time       `json:"time"`
	POC  decimal.Decimal `json:"poc"`
}

// Direction направление смещения POC
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionFlat Direction = "FLAT"
)

// Bias итоговый уклон движения POC
type Bias string

const (
	BiasBullish      Bias = "BULLISH"
	BiasBearish      Bias = "BEARISH"
	BiasNeutral      Bias = "NEUTRAL"
	BiasInsufficient Bias = "INSUFFICIENT DATA"
)

// POCStep один шаг серии POC
type POCStep struct {
	Time      time.Time       `json:"time"`
	POC       decimal.Decimal `json:"poc"`
	Previous  decimal.Decimal `json:"prev_poc"`
	Change    decimal.Decimal `json:"change"`
	Score     int             `json:"score"`
	Direction Direction       `json:"direction"`
}

// POCMode режим отслеживания POC
type POCMode string

const (
	POCModeSessions POCMode = "days"
	POCModeToday    POCMode = "today"
)

// POCMovement результат отслеживания POC
type POCMovement struct {
	Mode    POCMode             `json:"mode"`
	Seed    decimal.NullDecimal `json:"seed_poc"`
	Records []POCRecord         `json:"records"`
	Steps   []POCStep           `json:"movements"`
	Score   int                 `json:"total_score"`
	Bias    Bias                `json:"bias"`
}

// ControlResult результат одной комбинации таймфрейм x период
type ControlResult struct {
	Timeframe string  `json:"timeframe"`
	Days      int     `json:"days"`
	Control   Control `json:"control"`
	Err       string  `json:"error,omitempty"`
}

// ControlSummary сводка по одному периоду для всех таймфреймов
type ControlSummary struct {
	Days           int             `json:"days"`
	Buyers         int             `json:"buyers"`
	Sellers        int             `json:"sellers"`
	Neutral        int             `json:"neutral"`
	Overall        string          `json:"overall"`
	CombinedScore  int             `json:"combined_score"`
	Interpretation string          `json:"interpretation"`
	Results        []ControlResult `json:"results"`
}

// DayMetrics метрики одного дня дневного анализа
type DayMetrics struct {
	Date         time.Time `json:"date"`
	Rotation     int       `json:"rotation"`
	HighScore    int       `json:"high_score"`
	LowScore     int       `json:"low_score"`
	Brackets     int       `json:"brackets"`
	Volume       float64   `json:"total_volume"`
	ValueArea    ValueArea `json:"value_area"`
	VAVolume     float64   `json:"va_volume"`
	VAPercentage float64   `json:"va_percentage"`
}

// DailyTimeframe дневной анализ по одному таймфрейму
type DailyTimeframe struct {
	Timeframe       string      `json:"timeframe"`
	Today           DayMetrics  `json:"today"`
	Yesterday       DayMetrics  `json:"yesterday"`
	DayBefore       DayMetrics  `json:"day_before_yesterday"`
	Control         ControlSide `json:"control"`
	Trend           string      `json:"trend"`
	VAPlacement     string      `json:"va_placement"`
	VAWidth         string      `json:"va_width"`
	VolumeAverage   float64     `json:"volume_average"`
	VolumeVsAverage string      `json:"volume_vs_average"`
	Err             string      `json:"error,omitempty"`
}

// DailyReport дневной анализ по символу
type DailyReport struct {
	Symbol      string           `json:"symbol"`
	Coin        string           `json:"coin"`
	TargetDate  time.Time        `json:"target_date"`
	GeneratedAt time.Time        `json:"generated_at"`
	Timeframes  []DailyTimeframe `json:"timeframes"`
}

// AnalysisResult полный результат анализа символа
type AnalysisResult struct {
	Symbol         string            `json:"symbol"`
	Coin           string            `json:"coin"`
	Interval       string            `json:"interval"`
	BracketMinutes int               `json:"bracket_minutes"`
	Days           int               `json:"days"`
	From           time.Time         `json:"from"`
	To             time.Time         `json:"to"`
	Profile        *Profile          `json:"profile"`
	Rotations      []SessionRotation `json:"rotations"`
	Control        Control           `json:"control"`
	POC            POCMovement       `json:"poc"`
	Density        []DensityLevel    `json:"density"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// AnalysisRecord строка хранилища результатов
type AnalysisRecord struct {
	ID             string
	Symbol         string
	Coin           string
	AnalysisDate   time.Time
	Interval       string
	BracketMinutes int
	DaysAnalyzed   int
	RotationScore  int
	Control        ControlSide
	Strength       Strength
	POCScore       int
	POCBias        Bias
	CreatedAt      time.Time
	Payload        []byte
}
