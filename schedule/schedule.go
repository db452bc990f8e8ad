// Package schedule implements the Schedule object's periodic evaluation
// engine: Calendar-driven exception resolution over a weekly schedule,
// producing the effective present-value for "now" and writing it into the
// paired Schedule object's present-value / commandable outputs.
package schedule

import (
	"bytes"
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/primitive"
)

// TimeValuePair is one (time, value) entry of a daily schedule list.
type TimeValuePair struct {
	Time  bactypes.Time
	Value bactypes.Value
}

// Exception pairs a calendar entry's applicability (a specific date, a
// weekday-in-month pattern via Date's special values, a date range via
// DateRange, or a reference to a Calendar whose present-value is true)
// with the day's schedule to use instead of the weekly default.
type Exception struct {
	Dates    []bactypes.Date
	Ranges   []DateRange
	Calendar *Calendar // matches while the referenced Calendar is active
	Schedule []TimeValuePair
	Priority int // lower wins when more than one exception matches
}

// Calendar is one Calendar object's evaluation state: the engine checks
// today's date against its entries each cycle and mirrors the outcome
// into the Calendar object's Present_Value. Entries live either inline
// (Dates/Ranges) or in the target object's Date_List property; both are
// consulted.
type Calendar struct {
	Dates  []bactypes.Date
	Ranges []DateRange
	Target *object.Base // the Calendar object whose Present_Value this drives

	active bool
}

// Active reports the outcome of the most recent evaluation.
func (c *Calendar) Active() bool { return c.active }

// Evaluate reports whether any entry matches date: inline dates and
// ranges first, then every Date stored in the target object's Date_List.
func (c *Calendar) Evaluate(date bactypes.Date) bool {
	for _, d := range c.Dates {
		if dateMatches(d, date) {
			return true
		}
	}
	for _, r := range c.Ranges {
		if dateLessEqual(r.Start, date) && dateLessEqual(date, r.End) {
			return true
		}
	}
	for _, d := range c.targetDates() {
		if dateMatches(d, date) {
			return true
		}
	}
	return false
}

func (c *Calendar) targetDates() []bactypes.Date {
	if c.Target == nil {
		return nil
	}
	v, ok := c.Target.GetRaw(object.PropDateList)
	if !ok {
		return nil
	}
	list, ok := v.(object.ValueList)
	if !ok {
		return nil
	}
	var dates []bactypes.Date
	for _, e := range list {
		if d, ok := e.(bactypes.Date); ok {
			dates = append(dates, d)
		}
	}
	return dates
}

// DateRange is an inclusive start/end date pair, as Calendar's Date_List
// entries can carry.
type DateRange struct {
	Start, End bactypes.Date
}

// Weekly holds the default schedule for each of the seven BACnet weekdays
// (1=Monday..7=Sunday).
type Weekly [7][]TimeValuePair

// Schedule evaluates the effective value for a point in time by resolving,
// in order: the effective period, then exceptions (highest priority /
// first match), then the weekly default, then the object's configured
// Schedule_Default.
type Schedule struct {
	EffectiveStart, EffectiveEnd bactypes.Date
	Exceptions                   []Exception
	Weekly                       Weekly
	Default                      bactypes.Value

	Target  *object.Base // the Schedule object whose Present_Value this drives
	Outputs []scheduleOutput

	lastWritten bactypes.Value // last value commanded to the outputs
}

// scheduleOutput names one (object, priority) pair the schedule engine
// commands via List_Of_Object_Property_References.
type scheduleOutput struct {
	db       *object.Database
	objectID bactypes.ObjectID
	priority int
}

// AddOutput registers a commandable object this schedule drives at the
// given priority.
func (s *Schedule) AddOutput(db *object.Database, objectID bactypes.ObjectID, priority int) {
	s.Outputs = append(s.Outputs, scheduleOutput{db: db, objectID: objectID, priority: priority})
}

func inEffectivePeriod(s *Schedule, now bactypes.Date) bool {
	if s.EffectiveStart.Year == bactypes.WildcardByte && s.EffectiveEnd.Year == bactypes.WildcardByte {
		return true
	}
	return dateLessEqual(s.EffectiveStart, now) && dateLessEqual(now, s.EffectiveEnd)
}

func dateLessEqual(a, b bactypes.Date) bool {
	af := [3]uint8{a.Year, a.Month, a.Day}
	bf := [3]uint8{b.Year, b.Month, b.Day}
	for i := range af {
		if af[i] == bactypes.WildcardByte || bf[i] == bactypes.WildcardByte {
			continue
		}
		if af[i] != bf[i] {
			return af[i] < bf[i]
		}
	}
	return true
}

func dateMatches(pattern, now bactypes.Date) bool {
	match := func(p, n uint8) bool { return p == bactypes.WildcardByte || p == n }
	if !match(pattern.Year, now.Year) {
		return false
	}
	switch pattern.Month {
	case bactypes.MonthOdd:
		if now.Month%2 == 0 {
			return false
		}
	case bactypes.MonthEven:
		if now.Month%2 != 0 {
			return false
		}
	default:
		if !match(pattern.Month, now.Month) {
			return false
		}
	}
	switch pattern.Day {
	case bactypes.DayOdd:
		if now.Day%2 == 0 {
			return false
		}
	case bactypes.DayEven:
		if now.Day%2 != 0 {
			return false
		}
	case bactypes.DayLast:
		// Year is an offset from 1900; day 0 of the following month is
		// the last day of this one.
		last := time.Date(int(now.Year)+1900, time.Month(now.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if int(now.Day) != last {
			return false
		}
	default:
		if !match(pattern.Day, now.Day) {
			return false
		}
	}
	return match(pattern.DayOfWeek, now.DayOfWeek)
}

func (s *Schedule) resolveDay(date bactypes.Date) []TimeValuePair {
	best := -1
	var bestSchedule []TimeValuePair
	for _, exc := range s.Exceptions {
		matched := exc.Calendar != nil && exc.Calendar.Active()
		if !matched {
			for _, d := range exc.Dates {
				if dateMatches(d, date) {
					matched = true
					break
				}
			}
		}
		if !matched {
			for _, r := range exc.Ranges {
				if dateLessEqual(r.Start, date) && dateLessEqual(date, r.End) {
					matched = true
					break
				}
			}
		}
		if matched && (best == -1 || exc.Priority < best) {
			best = exc.Priority
			bestSchedule = exc.Schedule
		}
	}
	if bestSchedule != nil {
		return bestSchedule
	}
	if date.DayOfWeek >= 1 && date.DayOfWeek <= 7 {
		return s.Weekly[date.DayOfWeek-1]
	}
	return nil
}

// Evaluate returns the effective value at (date, now), applying the
// effective-period / exception / weekly-default / Schedule_Default
// resolution order.
func (s *Schedule) Evaluate(date bactypes.Date, now bactypes.Time) bactypes.Value {
	if !inEffectivePeriod(s, date) {
		return s.Default
	}
	day := s.resolveDay(date)
	var active bactypes.Value
	for _, tv := range day {
		if tv.Time.LessEqualNow(now) {
			active = tv.Value
		}
	}
	if active != nil {
		return active
	}
	return s.Default
}

// Engine periodically evaluates every registered Calendar (setting its
// Present_Value to whether today matches its date-list) and then every
// registered Schedule, writing the effective value into the schedule's
// own Present_Value — and, when it differs from the previously-written
// value, into every commandable output it drives at that output's
// configured priority.
type Engine struct {
	calendars []*Calendar
	schedules []*Schedule
	now       func() time.Time
	log       *logrus.Entry
}

// NewEngine builds an Engine. now defaults to time.Now; tests may override
// it to drive deterministic evaluation.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now, log: logrus.WithField("component", "schedule")}
}

// Register adds a schedule to be evaluated on every tick.
func (e *Engine) Register(s *Schedule) { e.schedules = append(e.schedules, s) }

// RegisterCalendar adds a calendar. Calendars are evaluated before the
// schedules each tick so exception entries referencing them see today's
// state.
func (e *Engine) RegisterCalendar(c *Calendar) { e.calendars = append(e.calendars, c) }

// Run evaluates every registered schedule every interval until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	e.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	now := e.now()
	date, clock := toBACnetDateTime(now)

	for _, c := range e.calendars {
		c.active = c.Evaluate(date)
		if c.Target != nil {
			c.Target.SetRaw(object.PropPresentValue, bactypes.Boolean(c.active))
		}
	}

	for _, s := range e.schedules {
		value := s.Evaluate(date, clock)
		if value == nil {
			continue
		}
		if s.Target != nil {
			s.Target.SetRaw(object.PropPresentValue, value)
		}
		if valuesEqual(value, s.lastWritten) {
			continue
		}
		s.lastWritten = value
		for _, out := range s.Outputs {
			priority := out.priority
			if err := out.db.Write(out.objectID, object.PropPresentValue, value, &priority, nil); err != nil {
				e.log.WithError(err).WithField("object", out.objectID).Warn("schedule output write failed")
			}
		}
	}
}

// valuesEqual compares two schedule values by their encoded form, since
// some primitive types are not comparable with ==.
func valuesEqual(a, b bactypes.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.ApplicationTag() != b.ApplicationTag() {
		return false
	}
	ea, errA := primitive.EncodeValue(a)
	eb, errB := primitive.EncodeValue(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

func toBACnetDateTime(t time.Time) (bactypes.Date, bactypes.Time) {
	year := uint8(t.Year() - 1900)
	dow := uint8(t.Weekday())
	if dow == 0 {
		dow = 7 // BACnet Monday=1..Sunday=7; time.Weekday Sunday=0
	}
	date := bactypes.Date{Year: year, Month: uint8(t.Month()), Day: uint8(t.Day()), DayOfWeek: dow}
	clock := bactypes.Time{Hour: uint8(t.Hour()), Minute: uint8(t.Minute()), Second: uint8(t.Second()), Hundredth: uint8(t.Nanosecond() / 10000000)}
	return date, clock
}
