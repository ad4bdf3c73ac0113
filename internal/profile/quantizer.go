package profile

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidTickSize размер тика должен быть положительным
var ErrInvalidTickSize = errors.New("размер тика должен быть положительным")

// TickGrid сетка цен с шагом tick. Вся арифметика ведется в decimal,
// чтобы деление на тик не зависело от двоичного представления float.
type TickGrid struct {
	tick decimal.Decimal
}

// NewTickGrid создает сетку с заданным размером тика
func NewTickGrid(tick decimal.Decimal) (TickGrid, error) {
	if !tick.IsPositive() {
		return TickGrid{}, ErrInvalidTickSize
	}
	return TickGrid{tick: tick}, nil
}

// Tick возвращает размер тика
func (g TickGrid) Tick() decimal.Decimal {
	return g.tick
}

// valid сетка создана через NewTickGrid
func (g TickGrid) valid() bool {
	return g.tick.IsPositive()
}

// floorDiv возвращает floor(price / tick) и признак того, что цена лежит ровно на линии сетки
func (g TickGrid) floorDiv(price float64) (int64, bool) {
	q, r := decimal.NewFromFloat(price).QuoRem(g.tick, 0)
	idx := q.IntPart()
	if r.IsNegative() {
		idx--
	}
	return idx, r.IsZero()
}

// LowIndex индекс тика для нижней границы: floor(price / tick)
func (g TickGrid) LowIndex(price float64) int64 {
	idx, _ := g.floorDiv(price)
	return idx
}

// HighIndex индекс тика для верхней границы. Цена, которая касается линии
// сетки, но не проходит сквозь нее, этот уровень не занимает.
func (g TickGrid) HighIndex(price float64) int64 {
	idx, exact := g.floorDiv(price)
	if exact {
		idx--
	}
	return idx
}

// Price цена уровня: idx * tick
func (g TickGrid) Price(idx int64) decimal.Decimal {
	return g.tick.Mul(decimal.NewFromInt(idx))
}

// Range квантует диапазон [low, high]. Верхний индекс не бывает ниже нижнего.
func (g TickGrid) Range(low, high float64) (int64, int64) {
	lo := g.LowIndex(low)
	hi := g.HighIndex(high)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
