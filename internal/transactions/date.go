package transactions

import (
	"strings"
	"time"
)

// DefaultDateLayouts перечисляет форматы дат в порядке приоритета.
// Месяц/день перед днем/месяцем, как у браузерного Date.
var DefaultDateLayouts = []string{
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006/1/2",
	"1/2/2006",
	"2/1/2006",
	"1-2-2006",
	"2-1-2006",
	"1.2.2006",
	"2.1.2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 Jan, 2006",
	"2 January 2006",
	"Mon Jan 2 2006",
	"Mon, 02 Jan 2006",
	"2006-01",
}

// ParseDate пытается разобрать календарную дату по списку форматов.
// Время суток отбрасывается, результат в UTC.
func ParseDate(value string, layouts []string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		parsed, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}
