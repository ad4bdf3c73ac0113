package profile

import (
	"math"
	"sort"
	"time"

	"github.com/skalibog/mprofile/pkg/models"
)

// Alphabet буквы брекетов: сначала заглавные, затем строчные
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Letter буква для порядкового номера брекета, после 52-го алфавит повторяется
func Letter(ordinal int) string {
	n := len(Alphabet)
	return string(Alphabet[((ordinal%n)+n)%n])
}

// Session свечи одного календарного дня UTC
type Session struct {
	Date    time.Time
	Candles []models.Candle
}

// Bracket группа свечей одного временного окна внутри сессии
type Bracket struct {
	Index   int // floor(minute_of_day / bracket_minutes)
	Ordinal int // номер среди присутствующих брекетов сессии
	Letter  string
	Start   time.Time
	Low     float64
	High    float64
	Open    float64
	Close   float64
	Volume  float64
	Candles []models.Candle
}

// SessionDate начало календарного дня UTC
func SessionDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func finite(c models.Candle) bool {
	for _, v := range []float64{c.Low, c.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SplitSessions группирует свечи по дате UTC с сохранением порядка.
// Свечи с нечисловыми экстремумами отбрасываются.
func SplitSessions(candles []models.Candle) []Session {
	var sessions []Session
	index := make(map[time.Time]int)

	for _, c := range candles {
		if !finite(c) {
			continue
		}
		date := SessionDate(c.OpenTime)
		i, ok := index[date]
		if !ok {
			i = len(sessions)
			index[date] = i
			sessions = append(sessions, Session{Date: date})
		}
		sessions[i].Candles = append(sessions[i].Candles, c)
	}
	return sessions
}

// SplitBrackets делит сессию на брекеты по bracketMinutes минут
func SplitBrackets(s Session, bracketMinutes int) []Bracket {
	if bracketMinutes <= 0 || len(s.Candles) == 0 {
		return nil
	}

	var brackets []Bracket
	bySlot := make(map[int]int)

	for _, c := range s.Candles {
		t := c.OpenTime.UTC()
		slot := (t.Hour()*60 + t.Minute()) / bracketMinutes

		i, ok := bySlot[slot]
		if !ok {
			i = len(brackets)
			bySlot[slot] = i
			brackets = append(brackets, Bracket{
				Index: slot,
				Start: c.OpenTime,
				Low:   c.Low,
				High:  c.High,
				Open:  c.Open,
			})
		}

		b := &brackets[i]
		b.Low = math.Min(b.Low, c.Low)
		b.High = math.Max(b.High, c.High)
		b.Close = c.Close
		b.Volume += c.Volume
		b.Candles = append(b.Candles, c)
	}

	sort.SliceStable(brackets, func(i, j int) bool {
		return brackets[i].Index < brackets[j].Index
	})
	for i := range brackets {
		brackets[i].Ordinal = i
		brackets[i].Letter = Letter(i)
	}
	return brackets
}
