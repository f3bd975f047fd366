// Package dates trabaja con fechas civiles (sin hora) representadas como time.Time a medianoche UTC.
package dates

import (
	"strings"
	"time"
)

const Layout = "2006-01-02"

// Day trunca t a su fecha civil (en la zona de t) y la expresa a medianoche UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween devuelve to - from en días completos.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)) / (24 * time.Hour))
}

func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// Parse acepta YYYY-MM-DD.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ParsePtr devuelve nil para string vacío.
func ParsePtr(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Date es una fecha civil que se serializa como "YYYY-MM-DD".
type Date time.Time

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(d).Format(Layout) + `"`), nil
}

func Ptr(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	d := Date(Day(*t))
	return &d
}
