package application

import (
	"fmt"
	"time"
)

// YearMonth identifies one calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// Start returns the first hour of the month in the given zone.
func (m YearMonth) Start(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// Next returns the following month.
func (m YearMonth) Next() YearMonth {
	if m.Month == time.December {
		return YearMonth{Year: m.Year + 1, Month: time.January}
	}
	return YearMonth{Year: m.Year, Month: m.Month + 1}
}

// Prev returns the preceding month.
func (m YearMonth) Prev() YearMonth {
	if m.Month == time.January {
		return YearMonth{Year: m.Year - 1, Month: time.December}
	}
	return YearMonth{Year: m.Year, Month: m.Month - 1}
}

// Index returns a monotonically increasing month ordinal for span math.
func (m YearMonth) Index() int {
	return m.Year*12 + int(m.Month) - 1
}

// Contains reports whether the instant falls inside this month.
func (m YearMonth) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

func (m YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
