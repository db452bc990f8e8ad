// Package trendlog implements the Trend Log object's logging engine: a
// fixed-size circular buffer that the Engine samples on a poll interval for
// polled logs (COV- and trigger-driven logs record only through direct
// Sample calls), with JSON and CSV export via github.com/gocarina/gocsv.
package trendlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
)

// LoggingType names how a Trend Log samples its monitored property.
type LoggingType int

const (
	LoggingPolled LoggingType = iota
	LoggingCOV
	LoggingTriggered
)

// Record is one logged sample, exported via JSON or CSV.
type Record struct {
	Timestamp string  `json:"timestamp" csv:"timestamp"`
	Value     string  `json:"value" csv:"value"`
	StatusFlags string `json:"status_flags" csv:"status_flags"`
}

// jsonEnvelope wraps exported records with a format tag so a consumer can
// identify the export schema.
type jsonEnvelope struct {
	Format  string   `json:"format"`
	Records []Record `json:"records"`
}

const jsonFormatTag = "bacnet-time-series-v1"

// TrendLog is one Trend Log object's circular buffer and sampling
// configuration.
type TrendLog struct {
	ID            bactypes.ObjectID
	Monitored     bactypes.ObjectID
	MonitoredProp object.PropertyID
	Type          LoggingType
	Interval      time.Duration // only meaningful for LoggingPolled
	BufferSize    int
	StopWhenFull  bool
	Enabled       bool

	mu      sync.Mutex
	buf     []Record
	next    int // next write index once the buffer has wrapped
	full    bool
	db      *object.Database
	now     func() time.Time
}

// New builds a Trend Log bound to db, logging db's Monitored/MonitoredProp
// into a buffer holding bufferSize records.
func New(id bactypes.ObjectID, db *object.Database, monitored bactypes.ObjectID, prop object.PropertyID, bufferSize int) *TrendLog {
	return &TrendLog{
		ID: id, Monitored: monitored, MonitoredProp: prop,
		BufferSize: bufferSize, Enabled: true,
		buf: make([]Record, 0, bufferSize),
		db:  db, now: time.Now,
	}
}

// Sample reads the monitored property and appends a record, wrapping the
// circular buffer once full unless StopWhenFull is set.
func (t *TrendLog) Sample() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Enabled {
		return
	}
	if t.full && t.StopWhenFull {
		return
	}

	value, err := t.db.Read(t.Monitored, t.MonitoredProp, nil)
	if err != nil {
		return
	}
	var statusText string
	if obj, gerr := t.db.Get(t.Monitored); gerr == nil {
		if sf, serr := obj.Read(object.PropStatusFlags, nil); serr == nil {
			if bs, ok := sf.(bactypes.BitString); ok {
				statusText = bitStringText(bs)
			}
		}
	}

	rec := Record{Timestamp: t.now().UTC().Format(time.RFC3339Nano), Value: valueText(value), StatusFlags: statusText}

	if len(t.buf) < t.BufferSize {
		t.buf = append(t.buf, rec)
		t.full = len(t.buf) == t.BufferSize
		return
	}
	t.buf[t.next] = rec
	t.next = (t.next + 1) % t.BufferSize
	t.full = true
}

func bitStringText(bs bactypes.BitString) string {
	var b strings.Builder
	for i := 0; i < bs.BitCount; i++ {
		if bs.Bit(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func valueText(v bactypes.Value) string {
	switch val := v.(type) {
	case bactypes.Real:
		return formatFloat(float64(val))
	case bactypes.Double:
		return formatFloat(float64(val))
	case bactypes.Unsigned:
		return formatUint(uint64(val))
	case bactypes.Signed:
		return formatInt(int64(val))
	case bactypes.Boolean:
		if val {
			return "true"
		}
		return "false"
	case bactypes.Enumerated:
		return formatUint(uint64(val))
	case bactypes.CharacterString:
		return val.Value
	default:
		return ""
	}
}

// RecordCount returns how many samples are currently stored.
func (t *TrendLog) RecordCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}

// Records returns a copy of the buffer in chronological order.
func (t *TrendLog) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		out := make([]Record, len(t.buf))
		copy(out, t.buf)
		return out
	}
	out := make([]Record, 0, len(t.buf))
	out = append(out, t.buf[t.next:]...)
	out = append(out, t.buf[:t.next]...)
	return out
}

// ExportJSON marshals the buffer into the "bacnet-time-series-v1" envelope.
func (t *TrendLog) ExportJSON() ([]byte, error) {
	return json.Marshal(jsonEnvelope{Format: jsonFormatTag, Records: t.Records()})
}

// ImportJSON replaces the buffer's contents from an ExportJSON envelope,
// rejecting exports with an unknown format tag.
func (t *TrendLog) ImportJSON(data []byte) error {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Format != jsonFormatTag {
		return fmt.Errorf("trendlog: unknown export format %q", env.Format)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	recs := env.Records
	if len(recs) > t.BufferSize {
		recs = recs[len(recs)-t.BufferSize:]
	}
	t.buf = recs
	t.next = 0
	t.full = len(recs) == t.BufferSize
	return nil
}

// ExportCSV marshals the buffer to CSV via gocsv, one row per sample.
func (t *TrendLog) ExportCSV() (string, error) {
	return gocsv.MarshalString(t.Records())
}

// ImportCSV replaces the buffer's contents by unmarshaling a CSV export
// produced by ExportCSV (round-trip support for offline analysis tooling).
func (t *TrendLog) ImportCSV(csv string) error {
	var recs []Record
	if err := gocsv.UnmarshalString(csv, &recs); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(recs) > t.BufferSize {
		recs = recs[len(recs)-t.BufferSize:]
	}
	t.buf = recs
	t.next = 0
	t.full = len(recs) == t.BufferSize
	return nil
}

// Engine drives polled Trend Logs on their configured interval. It does not
// sample COV- or trigger-driven logs: those record only when their Sample
// method is called directly, and neither the COV manager nor any other
// package in this module makes that call.
type Engine struct {
	logs []*TrendLog
	log  *logrus.Entry
}

// NewEngine builds a polling Engine.
func NewEngine() *Engine {
	return &Engine{log: logrus.WithField("component", "trendlog")}
}

// Register adds t to the engine. Only Polled logs are sampled by Run;
// COV- and trigger-driven logs are registered so Find can serve ReadRange
// against them.
func (e *Engine) Register(t *TrendLog) {
	e.logs = append(e.logs, t)
}

// Find returns the registered Trend Log with the given object identifier,
// or nil.
func (e *Engine) Find(id bactypes.ObjectID) *TrendLog {
	for _, t := range e.logs {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Run polls every registered log on its own interval until ctx is
// cancelled. Each log gets its own ticker since intervals differ per
// object.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range e.logs {
		if t.Type != LoggingPolled {
			continue
		}
		wg.Add(1)
		go func(t *TrendLog) {
			defer wg.Done()
			interval := t.Interval
			if interval <= 0 {
				interval = time.Minute
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					t.Sample()
				}
			}
		}(t)
	}
	wg.Wait()
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
func formatUint(u uint64) string   { return strconv.FormatUint(u, 10) }
func formatInt(i int64) string     { return strconv.FormatInt(i, 10) }
