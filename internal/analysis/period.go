package analysis

import (
	"fmt"
	"time"
)

// MonthLabels содержит сокращения месяцев для подписей периодов (es-ES).
var MonthLabels = [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

// Period задает календарный месяц, ключ помесячной группировки.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf возвращает месяц, в который попадает дата.
func PeriodOf(date time.Time) Period {
	return Period{Year: date.Year(), Month: date.Month()}
}

// Before сравнивает периоды по паре (год, месяц).
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Label возвращает подпись вида "ene 2023".
func (p Period) Label() string {
	return fmt.Sprintf("%s %04d", MonthLabels[p.Month-1], p.Year)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
