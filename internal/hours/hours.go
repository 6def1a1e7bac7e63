package hours

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// WorkingHours: рабочее окно [StartHour, EndHour) в заданные дни недели.
type WorkingHours struct {
	StartHour int
	EndHour   int
	Weekdays  []time.Weekday
	Location  *time.Location
}

// Default: 9:00–17:00, понедельник–пятница, UTC.
func Default() WorkingHours {
	return WorkingHours{
		StartHour: 9,
		EndHour:   17,
		Weekdays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Location:  time.UTC,
	}
}

func (w WorkingHours) Validate() error {
	if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return fmt.Errorf("hours: invalid window %d-%d", w.StartHour, w.EndHour)
	}
	if len(w.Weekdays) == 0 {
		return fmt.Errorf("hours: no working weekdays")
	}
	return nil
}

func (w WorkingHours) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

func (w WorkingHours) isWorkingDay(d time.Weekday) bool {
	for _, wd := range w.Weekdays {
		if wd == d {
			return true
		}
	}
	return false
}

// ElapsedBusinessHours считает часы между from и to, попадающие в рабочее окно.
// Инвертированный диапазон и невалидная конфигурация дают 0.
// Результат округляется до сотых часа.
func ElapsedBusinessHours(from, to time.Time, cfg WorkingHours) float64 {
	return Round(BusinessDuration(from, to, cfg).Hours())
}

// BusinessDuration: то же без округления; накопительные счетчики копят его.
func BusinessDuration(from, to time.Time, cfg WorkingHours) time.Duration {
	if !to.After(from) || cfg.Validate() != nil {
		return 0
	}

	loc := cfg.location()
	from = from.In(loc)
	to = to.In(loc)

	var total time.Duration
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	for day.Before(to) {
		if cfg.isWorkingDay(day.Weekday()) {
			// EndHour == 24 нормализуется в полночь следующего дня
			start := time.Date(day.Year(), day.Month(), day.Day(), cfg.StartHour, 0, 0, 0, loc)
			end := time.Date(day.Year(), day.Month(), day.Day(), cfg.EndHour, 0, 0, 0, loc)
			if from.After(start) {
				start = from
			}
			if to.Before(end) {
				end = to
			}
			if end.After(start) {
				total += end.Sub(start)
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return total
}

// Round приводит часы к сотым для отображения.
func Round(h float64) float64 {
	return math.Round(h*100) / 100
}

// Provider: источник конфигурации рабочего времени.
type Provider interface {
	WorkingHours(ctx context.Context) (WorkingHours, error)
}

// Static: провайдер с фиксированной конфигурацией.
type Static WorkingHours

func (s Static) WorkingHours(context.Context) (WorkingHours, error) {
	return WorkingHours(s), nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekdays разбирает имена дней ("mon", "Tuesday", ...).
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("hours: unknown weekday %q", n)
		}
		days = append(days, d)
	}
	return days, nil
}

// FromSettings собирает конфигурацию из "сырых" значений (конфиг, БД).
func FromSettings(startHour, endHour int, weekdays []string, timezone string) (WorkingHours, error) {
	days, err := ParseWeekdays(weekdays)
	if err != nil {
		return WorkingHours{}, err
	}

	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return WorkingHours{}, fmt.Errorf("hours: load timezone %q: %w", timezone, err)
		}
	}

	wh := WorkingHours{StartHour: startHour, EndHour: endHour, Weekdays: days, Location: loc}
	if err := wh.Validate(); err != nil {
		return WorkingHours{}, err
	}
	return wh, nil
}

// Settings: "сырое" представление рабочего окна, как оно хранится и приходит по API.
type Settings struct {
	StartHour   int      `json:"start_hour"`
	EndHour     int      `json:"end_hour"`
	WorkingDays []string `json:"working_days"`
	Timezone    string   `json:"timezone"`
}

func (s Settings) Parse() (WorkingHours, error) {
	return FromSettings(s.StartHour, s.EndHour, s.WorkingDays, s.Timezone)
}
