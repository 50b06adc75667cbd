// Package market handles market state awareness.
//
// Design rules:
//   - System must know if today is a trading day.
//   - System must know if the market is currently open.
//   - Do not rely only on time checks.
//   - Use exchange calendar data.
//   - One central Calendar module, configurable per venue.
package market

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Hours describes a venue's regular trading session in its local timezone,
// a config-driven schedule so the risk gate's session check isn't tied to
// one exchange.
type Hours struct {
	Location  *time.Location
	OpenHour  int
	OpenMin   int
	CloseHour int
	CloseMin  int
}

// DefaultHours returns NSE's 9:15-15:30 IST session, the zero-config
// default.
func DefaultHours() Hours {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.UTC
	}
	return Hours{Location: loc, OpenHour: 9, OpenMin: 15, CloseHour: 15, CloseMin: 30}
}

// Calendar provides exchange calendar and market state information.
type Calendar struct {
	hours Hours
	// holidays is a set of dates (YYYY-MM-DD) when the exchange is closed.
	holidays map[string]string // date -> reason
}

// HolidayEntry represents a single exchange holiday.
type HolidayEntry struct {
	Date   string `json:"date"`   // YYYY-MM-DD
	Reason string `json:"reason"` // e.g., "Republic Day", "Diwali"
}

// NewCalendar creates a Calendar from a JSON holiday file using the default
// (NSE) session hours.
func NewCalendar(holidayFilePath string) (*Calendar, error) {
	return NewCalendarWithHours(holidayFilePath, DefaultHours())
}

// NewCalendarWithHours creates a Calendar from a JSON holiday file with an
// explicit venue session schedule.
func NewCalendarWithHours(holidayFilePath string, hours Hours) (*Calendar, error) {
	data, err := os.ReadFile(holidayFilePath)
	if err != nil {
		return nil, fmt.Errorf("market calendar: read holidays file: %w", err)
	}

	var entries []HolidayEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("market calendar: parse holidays: %w", err)
	}

	holidays := make(map[string]string, len(entries))
	for _, e := range entries {
		holidays[e.Date] = e.Reason
	}

	return &Calendar{hours: hours, holidays: holidays}, nil
}

// NewCalendarFromHolidays creates a Calendar directly from a holiday map.
// Useful for testing.
func NewCalendarFromHolidays(holidays map[string]string) *Calendar {
	return &Calendar{hours: DefaultHours(), holidays: holidays}
}

// NewCalendarFromHolidaysWithHours is NewCalendarFromHolidays with an
// explicit session schedule, used by tests that exercise non-NSE hours.
func NewCalendarFromHolidaysWithHours(holidays map[string]string, hours Hours) *Calendar {
	return &Calendar{hours: hours, holidays: holidays}
}

func (c *Calendar) loc() *time.Location {
	if c.hours.Location != nil {
		return c.hours.Location
	}
	return time.UTC
}

// IsTradingDay returns true if the given date is a valid trading day.
// A trading day is a weekday that is not an exchange holiday.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	d := date.In(c.loc())

	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}

	dateStr := d.Format("2006-01-02")
	if _, isHoliday := c.holidays[dateStr]; isHoliday {
		return false
	}

	return true
}

// HolidayReason returns the reason for a holiday, or empty string if not a holiday.
func (c *Calendar) HolidayReason(date time.Time) string {
	dateStr := date.In(c.loc()).Format("2006-01-02")
	return c.holidays[dateStr]
}

// IsMarketOpen returns true if the venue is currently in its trading session.
func (c *Calendar) IsMarketOpen(now time.Time) bool {
	t := now.In(c.loc())

	if !c.IsTradingDay(t) {
		return false
	}

	currentMinutes := t.Hour()*60 + t.Minute()
	openMinutes := c.hours.OpenHour*60 + c.hours.OpenMin
	closeMinutes := c.hours.CloseHour*60 + c.hours.CloseMin

	return currentMinutes >= openMinutes && currentMinutes < closeMinutes
}

// TimeUntilNextSession returns the duration until the next market open.
// If the market is currently open, returns 0.
func (c *Calendar) TimeUntilNextSession(now time.Time) time.Duration {
	t := now.In(c.loc())

	if c.IsMarketOpen(t) {
		return 0
	}

	candidate := t
	for i := 0; i < 10; i++ { // Look ahead up to 10 days.
		if i == 0 && c.IsTradingDay(candidate) {
			todayOpen := time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
				c.hours.OpenHour, c.hours.OpenMin, 0, 0, c.loc())
			if t.Before(todayOpen) {
				return todayOpen.Sub(t)
			}
		}

		candidate = candidate.AddDate(0, 0, 1)
		if c.IsTradingDay(candidate) {
			nextOpen := time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
				c.hours.OpenHour, c.hours.OpenMin, 0, 0, c.loc())
			return nextOpen.Sub(t)
		}
	}

	// Fallback: this shouldn't happen with reasonable holiday data.
	return 24 * time.Hour
}

// NextTradingDay returns the next trading day after the given date.
func (c *Calendar) NextTradingDay(date time.Time) time.Time {
	candidate := date.In(c.loc()).AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if c.IsTradingDay(candidate) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// PreviousTradingDay returns the most recent trading day before the given date.
func (c *Calendar) PreviousTradingDay(date time.Time) time.Time {
	candidate := date.In(c.loc()).AddDate(0, 0, -1)
	for i := 0; i < 10; i++ {
		if c.IsTradingDay(candidate) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, -1)
	}
	return candidate
}
