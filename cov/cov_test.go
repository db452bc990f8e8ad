package cov

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
)

func testDB() (*object.Database, bactypes.ObjectID) {
	db := object.NewDatabase()
	id := bactypes.ObjectID{Type: bactypes.ObjectAnalogValue, Instance: 1}
	av := object.NewAnalogValue(id, "AV-1", object.UnitsNoUnits)
	db.Add(av)
	return db, id
}

func subscriber() bactypes.Address { return bactypes.Address{Mac: []byte{4, 4}} }

func TestSubscribeCapturesInitialValue(t *testing.T) {
	db, id := testDB()
	m := NewManager(db, func(sub Subscription, values map[object.PropertyID]bactypes.Value) error { return nil })

	m.Subscribe(subscriber(), 1, id, false, 0)

	key := subKey{subscriber: subscriber().Key(), processID: 1, objectID: id}
	sub, ok := m.subs[key]
	require.True(t, ok)
	assert.Equal(t, bactypes.Real(0), sub.lastPresent)
	assert.NotNil(t, sub.lastFlags)
	assert.True(t, sub.ExpiresAt.IsZero())
}

func TestSubscribeSendsInitialNotification(t *testing.T) {
	db, id := testDB()
	var got []map[object.PropertyID]bactypes.Value
	m := NewManager(db, func(sub Subscription, values map[object.PropertyID]bactypes.Value) error {
		got = append(got, values)
		return nil
	})

	m.Subscribe(subscriber(), 1, id, false, 30)

	require.Len(t, got, 1)
	assert.Equal(t, bactypes.Real(0), got[0][object.PropPresentValue])
	assert.Contains(t, got[0], object.PropStatusFlags)
}

func TestSubscribeWithLifetimeSetsExpiry(t *testing.T) {
	db, id := testDB()
	m := NewManager(db, func(sub Subscription, values map[object.PropertyID]bactypes.Value) error { return nil })

	before := time.Now()
	m.Subscribe(subscriber(), 1, id, true, 60)

	key := subKey{subscriber: subscriber().Key(), processID: 1, objectID: id}
	sub := m.subs[key]
	require.NotNil(t, sub)
	assert.True(t, sub.ExpiresAt.After(before))
	assert.True(t, sub.Confirmed)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	db, id := testDB()
	m := NewManager(db, func(sub Subscription, values map[object.PropertyID]bactypes.Value) error { return nil })

	m.Subscribe(subscriber(), 1, id, false, 0)
	m.Unsubscribe(subscriber(), 1, id)
	assert.NotPanics(t, func() { m.Unsubscribe(subscriber(), 1, id) })

	key := subKey{subscriber: subscriber().Key(), processID: 1, objectID: id}
	_, ok := m.subs[key]
	assert.False(t, ok)
}

func TestOnChangeFiresWhenChangeExceedsIncrement(t *testing.T) {
	db, id := testDB()
	var notified []Subscription
	m := NewManager(db, func(sub Subscription, values map[object.PropertyID]bactypes.Value) error {
		notified = append(notified, sub)
		return nil
	})
	m.Subscribe(subscriber(), 1, id, false, 0)
	notified = nil // discard the initial notification

	require.NoError(t, db.Write(id, object.PropPresentValue, bactypes.Real(2), nil, nil))

	require.Len(t, notified, 1)
	v := notified[0]
	assert.Equal(t, id, v.ObjectID)
}

func TestOnChangeSkipsWhenBelowIncrement(t *testing.T) {
	db, id := testDB()
	// tighten the increment so a small write still doesn't cross it
	require.NoError(t, db.Write(id, object.PropCOVIncrement, bactypes.Real(5), nil, nil))

	calls := 0
	m := NewManager(db, func(sub Subscription, values map[object.PropertyID]bactypes.Value) error {
		calls++
		return nil
	})
	m.Subscribe(subscriber(), 1, id, false, 0)
	calls = 0 // discard the initial notification

	require.NoError(t, db.Write(id, object.PropPresentValue, bactypes.Real(1), nil, nil))
	assert.Zero(t, calls)
}

func TestOnChangeIgnoresNonPresentValueWrites(t *testing.T) {
	db, id := testDB()
	calls := 0
	m := NewManager(db, func(sub Subscription, values map[object.PropertyID]bactypes.Value) error {
		calls++
		return nil
	})
	m.Subscribe(subscriber(), 1, id, false, 0)
	calls = 0 // discard the initial notification

	require.NoError(t, db.Write(id, object.PropDescription, bactypes.CharacterString{Value: "x"}, nil, nil))
	assert.Zero(t, calls)
}

func TestStatusFlagsChangeNotifiesRegardlessOfIncrement(t *testing.T) {
	db, id := testDB()
	// A huge increment suppresses every present-value change.
	require.NoError(t, db.Write(id, object.PropCOVIncrement, bactypes.Real(1000), nil, nil))

	calls := 0
	m := NewManager(db, func(sub Subscription, values map[object.PropertyID]bactypes.Value) error {
		calls++
		return nil
	})
	m.Subscribe(subscriber(), 1, id, false, 0)
	calls = 0 // discard the initial notification

	// Present-value creeps by less than the increment: no notification.
	require.NoError(t, db.Write(id, object.PropPresentValue, bactypes.Real(0.5), nil, nil))
	assert.Zero(t, calls)

	// A status-flags flip notifies even though present-value is inside
	// the increment band.
	obj, err := db.Get(id)
	require.NoError(t, err)
	base := obj.(*object.Base)
	base.SetRaw(object.PropStatusFlags, object.StatusFlags{Fault: true}.ToBitString())
	m.onChange(id, object.PropStatusFlags)
	assert.Equal(t, 1, calls)
}

func TestSweepRemovesExpiredSubscription(t *testing.T) {
	db, id := testDB()
	m := NewManager(db, func(sub Subscription, values map[object.PropertyID]bactypes.Value) error { return nil })
	m.Subscribe(subscriber(), 1, id, false, 0)

	key := subKey{subscriber: subscriber().Key(), processID: 1, objectID: id}
	m.subs[key].ExpiresAt = time.Now().Add(-time.Second)

	m.sweep()
	_, ok := m.subs[key]
	assert.False(t, ok)
}

func TestSweepKeepsLiveSubscription(t *testing.T) {
	db, id := testDB()
	m := NewManager(db, func(sub Subscription, values map[object.PropertyID]bactypes.Value) error { return nil })
	m.Subscribe(subscriber(), 1, id, false, 60)

	m.sweep()
	key := subKey{subscriber: subscriber().Key(), processID: 1, objectID: id}
	_, ok := m.subs[key]
	assert.True(t, ok)
}

func TestChangedEnoughAnalogUsesIncrement(t *testing.T) {
	assert.False(t, changedEnough(bactypes.Real(10), bactypes.Real(10.5), 1))
	assert.True(t, changedEnough(bactypes.Real(10), bactypes.Real(11.5), 1))
}

func TestChangedEnoughAnalogZeroIncrementIsAnyChange(t *testing.T) {
	assert.True(t, changedEnough(bactypes.Real(10), bactypes.Real(10.01), 0))
	assert.False(t, changedEnough(bactypes.Real(10), bactypes.Real(10), 0))
}

func TestChangedEnoughNonAnalogAnyChange(t *testing.T) {
	assert.True(t, changedEnough(bactypes.Boolean(false), bactypes.Boolean(true), 1))
	assert.False(t, changedEnough(bactypes.Boolean(true), bactypes.Boolean(true), 1))
}

func TestChangedEnoughFirstReadingAlwaysFires(t *testing.T) {
	assert.True(t, changedEnough(nil, bactypes.Real(0), 1))
}
