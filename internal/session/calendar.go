// Package session provides the A-share trading calendar and per-symbol
// trading status tracking.
package session

import (
	"time"
)

// MarketPhase represents the phase of the trading day.
type MarketPhase string

const (
	PhasePreOpen      MarketPhase = "PRE_OPEN"       // before 9:15
	PhaseOpenAuction  MarketPhase = "OPEN_AUCTION"   // 9:15 - 9:25 call auction
	PhasePreMarket    MarketPhase = "PRE_MARKET"     // 9:25 - 9:30 gap
	PhaseMorning      MarketPhase = "MORNING"        // 9:30 - 11:30 continuous
	PhaseBreak        MarketPhase = "LUNCH_BREAK"    // 11:30 - 13:00
	PhaseAfternoon    MarketPhase = "AFTERNOON"      // 13:00 - 14:57 continuous
	PhaseCloseAuction MarketPhase = "CLOSE_AUCTION"  // 14:57 - 15:00 call auction
	PhaseClosed       MarketPhase = "CLOSED"
	PhaseHoliday      MarketPhase = "HOLIDAY"
)

// Session boundaries in minutes from midnight.
const (
	openAuctionStart = 9*60 + 15
	noCancelStart    = 9*60 + 20 // orders cannot be withdrawn from here to 9:25
	openAuctionEnd   = 9*60 + 25
	morningStart     = 9*60 + 30
	morningEnd       = 11*60 + 30
	afternoonStart   = 13 * 60
	closeAuctionAt   = 14*60 + 57
	marketClose      = 15 * 60
)

// Calendar answers trading-day and trading-time questions for the A-share
// market. Holidays are injected by the caller; without them weekdays count
// as trading days.
type Calendar struct {
	location *time.Location
	holidays map[string]bool
}

// NewCalendar creates a calendar in the exchange's local time zone.
func NewCalendar() *Calendar {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	return &Calendar{
		location: loc,
		holidays: make(map[string]bool),
	}
}

// AddHoliday marks a date as a market holiday.
func (c *Calendar) AddHoliday(date time.Time) {
	c.holidays[date.In(c.location).Format("2006-01-02")] = true
}

// IsHoliday checks whether a date was marked as a holiday.
func (c *Calendar) IsHoliday(date time.Time) bool {
	return c.holidays[date.In(c.location).Format("2006-01-02")]
}

// IsTradingDay reports whether the market opens on the given date: a
// weekday that was not marked as a holiday.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	date = date.In(c.location)
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return false
	}
	return !c.IsHoliday(date)
}

// IsTradingTime reports whether continuous trading is open at t: the
// morning session 9:30 - 11:30 or the afternoon session 13:00 - 15:00,
// boundaries inclusive.
func (c *Calendar) IsTradingTime(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	m := minuteOfDay(t.In(c.location))
	return (m >= morningStart && m <= morningEnd) || (m >= afternoonStart && m <= marketClose)
}

// IsCallAuctionTime reports whether t falls in the opening (9:15 - 9:25) or
// closing (14:57 - 15:00) call auction.
func (c *Calendar) IsCallAuctionTime(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	m := minuteOfDay(t.In(c.location))
	return (m >= openAuctionStart && m <= openAuctionEnd) || (m >= closeAuctionAt && m <= marketClose)
}

// CanCancelOrder reports whether an order may be withdrawn at t. The
// exchange refuses cancellations during the second half of the opening
// auction (9:20 - 9:25), during the closing auction (14:57 - 15:00), and
// once the market has closed.
func (c *Calendar) CanCancelOrder(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	m := minuteOfDay(t.In(c.location))
	if m >= marketClose {
		return false
	}
	if m >= noCancelStart && m < openAuctionEnd {
		return false
	}
	if m >= closeAuctionAt {
		return false
	}
	return true
}

// Phase returns the market phase at t.
func (c *Calendar) Phase(t time.Time) MarketPhase {
	t = t.In(c.location)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return PhaseClosed
	}
	if c.IsHoliday(t) {
		return PhaseHoliday
	}

	switch m := minuteOfDay(t); {
	case m < openAuctionStart:
		return PhasePreOpen
	case m < openAuctionEnd:
		return PhaseOpenAuction
	case m < morningStart:
		return PhasePreMarket
	case m <= morningEnd:
		return PhaseMorning
	case m < afternoonStart:
		return PhaseBreak
	case m < closeAuctionAt:
		return PhaseAfternoon
	case m <= marketClose:
		return PhaseCloseAuction
	default:
		return PhaseClosed
	}
}

// NextTradingDay returns the first trading day strictly after date,
// scanning at most 30 days ahead before giving up on date+1.
func (c *Calendar) NextTradingDay(date time.Time) time.Time {
	day := date.AddDate(0, 0, 1)
	for i := 0; i < 30; i++ {
		if c.IsTradingDay(day) {
			return day
		}
		day = day.AddDate(0, 0, 1)
	}
	return date.AddDate(0, 0, 1)
}

// PreviousTradingDay returns the last trading day strictly before date,
// scanning at most 30 days back before giving up on date-1.
func (c *Calendar) PreviousTradingDay(date time.Time) time.Time {
	day := date.AddDate(0, 0, -1)
	for i := 0; i < 30; i++ {
		if c.IsTradingDay(day) {
			return day
		}
		day = day.AddDate(0, 0, -1)
	}
	return date.AddDate(0, 0, -1)
}

// TradingDays returns every trading day in [start, end].
func (c *Calendar) TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if c.IsTradingDay(day) {
			days = append(days, day)
		}
	}
	return days
}

// MarketOpen returns the continuous-session open time (9:30) on date.
func (c *Calendar) MarketOpen(date time.Time) time.Time {
	d := date.In(c.location)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, c.location)
}

// MarketClose returns the close time (15:00) on date.
func (c *Calendar) MarketClose(date time.Time) time.Time {
	d := date.In(c.location)
	return time.Date(d.Year(), d.Month(), d.Day(), 15, 0, 0, 0, c.location)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
