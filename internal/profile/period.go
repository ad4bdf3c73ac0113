package profile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPeriod период не распознан
var ErrInvalidPeriod = errors.New("некорректный период")

// ParsePeriod переводит период вида 30m, 1h, 4h, 1d в минуты
func ParsePeriod(period string) (int, error) {
	p := strings.TrimSpace(period)
	if len(p) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	var unit int
	switch p[len(p)-1] {
	case 'm':
		unit = 1
	case 'h':
		unit = 60
	case 'd':
		unit = 24 * 60
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	n, err := strconv.Atoi(p[:len(p)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	return n * unit, nil
}
