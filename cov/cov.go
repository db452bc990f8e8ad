// Package cov implements the Change-of-Value subscription manager:
// subscribe/unsubscribe, lifetime expiry, and the present-value-changed-
// enough check that triggers a notification (COV increment comparison for
// analog objects, any-change for everything else). The subscribe loop's
// ctx/ticker shape mirrors an outbound SubscribeCOV request, turned inside
// out into the server-side manager that drives notifications out to every
// subscriber.
package cov

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/metrics"
	"github.com/bacgo/bacnet/object"
)

// Subscription is one active COV subscription.
type Subscription struct {
	Subscriber  bactypes.Address
	ProcessID   uint32
	ObjectID    bactypes.ObjectID
	Confirmed   bool
	ExpiresAt   time.Time // zero means "no expiry" (indefinite lifetime)
	lastPresent bactypes.Value
	lastFlags   bactypes.Value // last-reported Status_Flags bit string
}

func (s *Subscription) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type subKey struct {
	subscriber string
	processID  uint32
	objectID   bactypes.ObjectID
}

// Notifier sends one COV notification (confirmed or unconfirmed) to a
// subscriber; app wires this to the client/server TSM send paths.
type Notifier func(sub Subscription, values map[object.PropertyID]bactypes.Value) error

// Manager tracks every active subscription and decides, on each database
// write, whether the new value differs enough from the last-notified value
// to fire a notification.
type Manager struct {
	db       *object.Database
	notify   Notifier

	mu   sync.Mutex
	subs map[subKey]*Subscription

	log *logrus.Entry
}

// NewManager builds a Manager bound to db, registering itself as a change
// callback so every successful write is checked against active
// subscriptions.
func NewManager(db *object.Database, notify Notifier) *Manager {
	m := &Manager{
		db:     db,
		notify: notify,
		subs:   make(map[subKey]*Subscription),
		log:    logrus.WithField("component", "cov"),
	}
	db.OnChange(m.onChange)
	return m
}

// Subscribe installs or refreshes a subscription and sends the initial
// notification (Clause 13.1.2) carrying the current present-value and
// status-flags. lifetimeSeconds of 0 means indefinite.
func (m *Manager) Subscribe(subscriber bactypes.Address, processID uint32, objectID bactypes.ObjectID, confirmed bool, lifetimeSeconds uint32) {
	key := subKey{subscriber: subscriber.Key(), processID: processID, objectID: objectID}

	var expires time.Time
	if lifetimeSeconds > 0 {
		expires = time.Now().Add(time.Duration(lifetimeSeconds) * time.Second)
	}

	current, flags := m.snapshot(objectID)

	m.mu.Lock()
	sub, exists := m.subs[key]
	if !exists {
		sub = &Subscription{Subscriber: subscriber, ProcessID: processID, ObjectID: objectID}
		m.subs[key] = sub
		metrics.COVActiveSubscriptions.Inc()
	}
	sub.Confirmed = confirmed
	sub.ExpiresAt = expires
	sub.lastPresent = current
	sub.lastFlags = flags
	snapshot := *sub
	m.mu.Unlock()

	m.send(snapshot, current, flags)
}

// snapshot reads the monitored object's present-value and status-flags.
func (m *Manager) snapshot(objectID bactypes.ObjectID) (bactypes.Value, bactypes.Value) {
	obj, err := m.db.Get(objectID)
	if err != nil {
		return nil, nil
	}
	var current, flags bactypes.Value
	if v, err := obj.Read(object.PropPresentValue, nil); err == nil {
		current = v
	}
	if v, err := obj.Read(object.PropStatusFlags, nil); err == nil {
		flags = v
	}
	return current, flags
}

// send delivers one notification through the wired Notifier.
func (m *Manager) send(sub Subscription, current, flags bactypes.Value) {
	values := map[object.PropertyID]bactypes.Value{}
	if current != nil {
		values[object.PropPresentValue] = current
	}
	if flags != nil {
		values[object.PropStatusFlags] = flags
	}
	if len(values) == 0 {
		return
	}
	label := "unconfirmed"
	if sub.Confirmed {
		label = "confirmed"
	}
	if err := m.notify(sub, values); err != nil {
		m.log.WithError(err).WithField("subscriber", sub.Subscriber).Warn("cov notification failed")
		return
	}
	metrics.COVNotificationsSent.WithLabelValues(label).Inc()
}

// Unsubscribe removes a subscription. Missing subscriptions are a no-op,
// so repeated cancellation requests stay idempotent.
func (m *Manager) Unsubscribe(subscriber bactypes.Address, processID uint32, objectID bactypes.ObjectID) {
	key := subKey{subscriber: subscriber.Key(), processID: processID, objectID: objectID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[key]; ok {
		delete(m.subs, key)
		metrics.COVActiveSubscriptions.Dec()
	}
}

// RemoveObjectSubscriptions drops every subscription monitoring objectID.
// The DeleteObject handler calls this when an object is deleted so subscribers never
// receive notifications for an object that no longer exists.
func (m *Manager) RemoveObjectSubscriptions(objectID bactypes.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, sub := range m.subs {
		if sub.ObjectID == objectID {
			delete(m.subs, key)
			metrics.COVActiveSubscriptions.Dec()
		}
	}
}

// Run sweeps expired subscriptions until ctx is cancelled, mirroring the
// teacher's ticker-driven re-subscription loop turned inward into
// server-side expiry.
func (m *Manager) Run(ctx context.Context, sweepInterval time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, sub := range m.subs {
		if sub.expired(now) {
			delete(m.subs, key)
			metrics.COVActiveSubscriptions.Dec()
		}
	}
}

// onChange is registered with object.Database and fires whenever any
// property write succeeds; Present_Value and Status_Flags are the
// properties that drive COV. The check order follows Clause 13.1: a
// status-flags change always notifies, an unchanged present-value never
// does, and an analog present-value change is measured against the
// COV increment.
func (m *Manager) onChange(objectID bactypes.ObjectID, prop object.PropertyID) {
	if prop != object.PropPresentValue && prop != object.PropStatusFlags {
		return
	}

	obj, err := m.db.Get(objectID)
	if err != nil {
		return
	}
	current, flags := m.snapshot(objectID)
	if current == nil && flags == nil {
		return
	}

	var increment float64
	if v, err := obj.Read(object.PropCOVIncrement, nil); err == nil {
		if r, ok := v.(bactypes.Real); ok {
			increment = float64(r)
		}
	}

	m.mu.Lock()
	var toNotify []Subscription
	for _, sub := range m.subs {
		if sub.ObjectID != objectID {
			continue
		}
		flagsChanged := flags != nil && sub.lastFlags != nil && flags != sub.lastFlags
		valueChanged := current != nil && changedEnough(sub.lastPresent, current, increment)
		if !flagsChanged && !valueChanged {
			continue
		}
		sub.lastPresent = current
		sub.lastFlags = flags
		toNotify = append(toNotify, *sub)
	}
	m.mu.Unlock()

	for _, sub := range toNotify {
		m.send(sub, current, flags)
	}
}

// changedEnough compares present-values for a meaningful change: analog
// (Real) compare with the COV increment (any change of at least
// |increment| fires); every other value type fires on any change at all.
func changedEnough(last, current bactypes.Value, increment float64) bool {
	if last == nil {
		return true
	}
	lastReal, lastIsReal := last.(bactypes.Real)
	curReal, curIsReal := current.(bactypes.Real)
	if lastIsReal && curIsReal {
		if increment <= 0 {
			return lastReal != curReal
		}
		return math.Abs(float64(curReal-lastReal)) >= increment
	}
	return last != current
}
