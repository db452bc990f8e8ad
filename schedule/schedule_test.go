package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
)

func wildcardDate() bactypes.Date {
	return bactypes.Date{Year: bactypes.WildcardByte, Month: bactypes.WildcardByte, Day: bactypes.WildcardByte, DayOfWeek: bactypes.WildcardByte}
}

func alwaysInEffect() (bactypes.Date, bactypes.Date) {
	return wildcardDate(), wildcardDate()
}

func TestEvaluateOutsideEffectivePeriodReturnsDefault(t *testing.T) {
	start, end := bactypes.Date{Year: 124, Month: 1, Day: 1}, bactypes.Date{Year: 124, Month: 1, Day: 31}
	s := &Schedule{EffectiveStart: start, EffectiveEnd: end, Default: bactypes.Enumerated(9)}

	v := s.Evaluate(bactypes.Date{Year: 124, Month: 6, Day: 1, DayOfWeek: 6}, bactypes.Time{Hour: 8})
	assert.Equal(t, bactypes.Enumerated(9), v)
}

func TestEvaluateWeeklyDefaultPicksLatestActiveEntry(t *testing.T) {
	start, end := alwaysInEffect()
	s := &Schedule{EffectiveStart: start, EffectiveEnd: end, Default: bactypes.Enumerated(0)}
	s.Weekly[0] = []TimeValuePair{ // Monday
		{Time: bactypes.Time{Hour: 7}, Value: bactypes.Enumerated(1)},
		{Time: bactypes.Time{Hour: 9}, Value: bactypes.Enumerated(2)},
	}

	monday := bactypes.Date{Year: 124, Month: 1, Day: 1, DayOfWeek: 1}
	v := s.Evaluate(monday, bactypes.Time{Hour: 8, Minute: 5})
	assert.Equal(t, bactypes.Enumerated(1), v)

	v = s.Evaluate(monday, bactypes.Time{Hour: 9, Minute: 30})
	assert.Equal(t, bactypes.Enumerated(2), v)
}

func TestEvaluateBeforeFirstEntryUsesDefault(t *testing.T) {
	start, end := alwaysInEffect()
	s := &Schedule{EffectiveStart: start, EffectiveEnd: end, Default: bactypes.Enumerated(0)}
	s.Weekly[0] = []TimeValuePair{{Time: bactypes.Time{Hour: 9}, Value: bactypes.Enumerated(1)}}

	monday := bactypes.Date{Year: 124, Month: 1, Day: 1, DayOfWeek: 1}
	v := s.Evaluate(monday, bactypes.Time{Hour: 8})
	assert.Equal(t, bactypes.Enumerated(0), v)
}

func TestEvaluateExceptionOverridesWeekly(t *testing.T) {
	start, end := alwaysInEffect()
	s := &Schedule{EffectiveStart: start, EffectiveEnd: end, Default: bactypes.Enumerated(0)}
	holiday := bactypes.Date{Year: 124, Month: 12, Day: 25, DayOfWeek: bactypes.WildcardByte}
	s.Weekly[2] = []TimeValuePair{{Time: bactypes.Time{Hour: 7}, Value: bactypes.Enumerated(1)}}
	s.Exceptions = []Exception{{
		Dates:    []bactypes.Date{holiday},
		Schedule: []TimeValuePair{{Time: bactypes.Time{Hour: 0}, Value: bactypes.Enumerated(99)}},
		Priority: 1,
	}}

	xmas := bactypes.Date{Year: 124, Month: 12, Day: 25, DayOfWeek: 3} // a Wednesday
	v := s.Evaluate(xmas, bactypes.Time{Hour: 10})
	assert.Equal(t, bactypes.Enumerated(99), v)
}

func TestEvaluateExceptionPriorityPicksLowestNumber(t *testing.T) {
	start, end := alwaysInEffect()
	s := &Schedule{EffectiveStart: start, EffectiveEnd: end, Default: bactypes.Enumerated(0)}
	d := bactypes.Date{Year: 124, Month: 7, Day: 4, DayOfWeek: bactypes.WildcardByte}
	s.Exceptions = []Exception{
		{Dates: []bactypes.Date{d}, Schedule: []TimeValuePair{{Time: bactypes.Time{Hour: 0}, Value: bactypes.Enumerated(5)}}, Priority: 2},
		{Dates: []bactypes.Date{d}, Schedule: []TimeValuePair{{Time: bactypes.Time{Hour: 0}, Value: bactypes.Enumerated(7)}}, Priority: 1},
	}

	v := s.Evaluate(bactypes.Date{Year: 124, Month: 7, Day: 4, DayOfWeek: 4}, bactypes.Time{Hour: 12})
	assert.Equal(t, bactypes.Enumerated(7), v)
}

func TestEvaluateExceptionRangeMatches(t *testing.T) {
	start, end := alwaysInEffect()
	s := &Schedule{EffectiveStart: start, EffectiveEnd: end, Default: bactypes.Enumerated(0)}
	s.Exceptions = []Exception{{
		Ranges:   []DateRange{{Start: bactypes.Date{Year: 124, Month: 12, Day: 24}, End: bactypes.Date{Year: 124, Month: 12, Day: 26}}},
		Schedule: []TimeValuePair{{Time: bactypes.Time{Hour: 0}, Value: bactypes.Enumerated(42)}},
		Priority: 1,
	}}

	v := s.Evaluate(bactypes.Date{Year: 124, Month: 12, Day: 25, DayOfWeek: 3}, bactypes.Time{Hour: 1})
	assert.Equal(t, bactypes.Enumerated(42), v)

	v = s.Evaluate(bactypes.Date{Year: 124, Month: 12, Day: 27, DayOfWeek: 5}, bactypes.Time{Hour: 1})
	assert.Equal(t, bactypes.Enumerated(0), v, "outside the exception range, the weekly default (none) falls back to Schedule_Default")
}

func TestDateMatchesMonthOddEven(t *testing.T) {
	pattern := bactypes.Date{Year: bactypes.WildcardByte, Month: bactypes.MonthOdd, Day: bactypes.WildcardByte, DayOfWeek: bactypes.WildcardByte}
	assert.True(t, dateMatches(pattern, bactypes.Date{Year: 124, Month: 3, Day: 1, DayOfWeek: 1}))
	assert.False(t, dateMatches(pattern, bactypes.Date{Year: 124, Month: 4, Day: 1, DayOfWeek: 1}))

	pattern.Month = bactypes.MonthEven
	assert.True(t, dateMatches(pattern, bactypes.Date{Year: 124, Month: 4, Day: 1, DayOfWeek: 1}))
	assert.False(t, dateMatches(pattern, bactypes.Date{Year: 124, Month: 3, Day: 1, DayOfWeek: 1}))
}

func TestEngineTickWritesTargetAndOutputs(t *testing.T) {
	db := object.NewDatabase()
	outID := bactypes.ObjectID{Type: bactypes.ObjectAnalogOutput, Instance: 1}
	db.Add(object.NewAnalogOutput(outID, "AO-1", object.UnitsNoUnits, bactypes.Real(0)))

	targetID := bactypes.ObjectID{Type: bactypes.ObjectSchedule, Instance: 1}
	target := object.NewAnalogValue(targetID, "SCH-1", object.UnitsNoUnits)

	s := &Schedule{Target: target, Default: bactypes.Real(0)}
	s.EffectiveStart, s.EffectiveEnd = alwaysInEffect()
	s.Weekly[0] = []TimeValuePair{{Time: bactypes.Time{Hour: 7}, Value: bactypes.Real(72)}}
	s.AddOutput(db, outID, 8)

	fixed := time.Date(2024, time.January, 1, 8, 5, 0, 0, time.UTC) // a Monday
	e := NewEngine(func() time.Time { return fixed })
	e.Register(s)
	e.tick()

	tv, err := target.Read(object.PropPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Real(72), tv)

	ov, err := db.Read(outID, object.PropPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Real(72), ov)
}

func TestEngineTickOnlyWritesOutputsOnChange(t *testing.T) {
	db := object.NewDatabase()
	outID := bactypes.ObjectID{Type: bactypes.ObjectAnalogOutput, Instance: 1}
	db.Add(object.NewAnalogOutput(outID, "AO-1", object.UnitsNoUnits, bactypes.Real(0)))

	writes := 0
	db.OnChange(func(id bactypes.ObjectID, prop object.PropertyID) {
		if id == outID && prop == object.PropPresentValue {
			writes++
		}
	})

	s := &Schedule{Default: bactypes.Real(0)}
	s.EffectiveStart, s.EffectiveEnd = alwaysInEffect()
	s.Weekly[0] = []TimeValuePair{
		{Time: bactypes.Time{Hour: 7}, Value: bactypes.Real(72)},
		{Time: bactypes.Time{Hour: 9}, Value: bactypes.Real(68)},
	}
	s.AddOutput(db, outID, 8)

	now := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC) // a Monday
	e := NewEngine(func() time.Time { return now })
	e.Register(s)

	// Same resolved value across three cycles: exactly one output write.
	e.tick()
	now = now.Add(10 * time.Second)
	e.tick()
	now = now.Add(10 * time.Second)
	e.tick()
	assert.Equal(t, 1, writes)

	// Crossing 09:00 changes the resolved value: one more write.
	now = now.Add(2 * time.Hour)
	e.tick()
	assert.Equal(t, 2, writes)
}

func TestEngineEvaluatesCalendars(t *testing.T) {
	calID := bactypes.ObjectID{Type: bactypes.ObjectCalendar, Instance: 1}
	calObj := object.NewCalendar(calID, "holidays")
	calObj.SetRaw(object.PropDateList, object.ValueList{
		bactypes.Date{Year: 124, Month: 12, Day: 25, DayOfWeek: bactypes.WildcardByte},
	})

	cal := &Calendar{Target: calObj}

	xmas := time.Date(2024, time.December, 25, 10, 0, 0, 0, time.UTC)
	e := NewEngine(func() time.Time { return xmas })
	e.RegisterCalendar(cal)
	e.tick()

	assert.True(t, cal.Active())
	pv, err := calObj.Read(object.PropPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Boolean(true), pv)

	// On an ordinary day the calendar goes inactive again.
	ordinary := time.Date(2024, time.December, 26, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return ordinary }
	e.tick()
	assert.False(t, cal.Active())
	pv, err = calObj.Read(object.PropPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Boolean(false), pv)
}

func TestCalendarReferencedExceptionOverridesWeekly(t *testing.T) {
	calObj := object.NewCalendar(bactypes.ObjectID{Type: bactypes.ObjectCalendar, Instance: 2}, "maintenance-days")
	calObj.SetRaw(object.PropDateList, object.ValueList{
		bactypes.Date{Year: 124, Month: 6, Day: 3, DayOfWeek: bactypes.WildcardByte},
	})
	cal := &Calendar{Target: calObj}

	targetID := bactypes.ObjectID{Type: bactypes.ObjectSchedule, Instance: 2}
	target := object.NewAnalogValue(targetID, "SCH-2", object.UnitsNoUnits)

	s := &Schedule{Target: target, Default: bactypes.Real(0)}
	s.EffectiveStart, s.EffectiveEnd = alwaysInEffect()
	weekday := []TimeValuePair{{Time: bactypes.Time{Hour: 0}, Value: bactypes.Real(72)}}
	s.Weekly[0], s.Weekly[1] = weekday, weekday // Monday, Tuesday
	s.Exceptions = []Exception{{
		Calendar: cal,
		Schedule: []TimeValuePair{{Time: bactypes.Time{Hour: 0}, Value: bactypes.Real(55)}},
		Priority: 1,
	}}

	// June 3rd 2024 is a Monday: the weekly entry would say 72, but the
	// calendar-referenced exception wins once the calendar is active.
	day := time.Date(2024, time.June, 3, 10, 0, 0, 0, time.UTC)
	e := NewEngine(func() time.Time { return day })
	e.RegisterCalendar(cal)
	e.Register(s)
	e.tick()

	pv, err := target.Read(object.PropPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Real(55), pv)

	// The next day the calendar deactivates and the weekly entry rules.
	next := time.Date(2024, time.June, 4, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return next }
	e.tick()
	pv, err = target.Read(object.PropPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Real(72), pv)
}
