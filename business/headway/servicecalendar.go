package headway

import (
	"time"

	"github.com/rickar/cal/v2"
)

// ServiceCalendar holds the holidays observed by the transit agency.
// Scheduled headways assume a regular service day, so runs whose service
// date lands on a holiday are flagged for the analyst.
type ServiceCalendar struct {
	calendar *cal.BusinessCalendar
}

// NewServiceCalendar builds a ServiceCalendar with the Brazilian national
// holidays the agency observes.
// TODO: load the agency's holiday set from configuration instead of
// hardcoding the national ones.
func NewServiceCalendar() *ServiceCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		fixedHoliday("Ano Novo", time.January, 1),
		fixedHoliday("Tiradentes", time.April, 21),
		fixedHoliday("Dia do Trabalho", time.May, 1),
		fixedHoliday("Independência do Brasil", time.September, 7),
		fixedHoliday("Nossa Senhora Aparecida", time.October, 12),
		fixedHoliday("Finados", time.November, 2),
		fixedHoliday("Proclamação da República", time.November, 15),
		fixedHoliday("Natal", time.December, 25),
	)
	return &ServiceCalendar{calendar: calendar}
}

// IsHoliday returns true if at falls on an observed holiday.
func (s *ServiceCalendar) IsHoliday(at time.Time) bool {
	_, observed, _ := s.calendar.IsHoliday(at)
	return observed
}

func fixedHoliday(name string, month time.Month, day int) *cal.Holiday {
	return &cal.Holiday{
		Name:  name,
		Type:  cal.ObservancePublic,
		Month: month,
		Day:   day,
		Func:  cal.CalcDayOfMonth,
	}
}
