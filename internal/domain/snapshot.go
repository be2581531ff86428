package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoSnapshot means no snapshot has been stored for a sensor yet.
var ErrNoSnapshot = errors.New("no snapshot for sensor")

// WindowReference selects the instant a history window is measured from.
type WindowReference string

const (
	// ReferenceLatest measures from the newest reading in the series.
	ReferenceLatest WindowReference = "latest"
	// ReferenceNow measures from the current time.
	ReferenceNow WindowReference = "now"
)

// ParseWindowReference validates a window reference name.
func ParseWindowReference(s string) (WindowReference, error) {
	switch ref := WindowReference(s); ref {
	case ReferenceLatest, ReferenceNow:
		return ref, nil
	default:
		return "", fmt.Errorf("unknown window reference %q (want %q or %q)", s, ReferenceLatest, ReferenceNow)
	}
}

// Snapshot is the derived state of one poll of a sensor.
type Snapshot struct {
	SensorID    string    `json:"sensor_id"`
	Series      Series    `json:"series"`
	RowsFetched int       `json:"rows_fetched"`
	RowsDropped int       `json:"rows_dropped"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewSnapshot derives a snapshot from the rows fetched for sensorID.
func NewSnapshot(sensorID string, rows []RawRow) Snapshot {
	series := Derive(rows)
	return Snapshot{
		SensorID:    sensorID,
		Series:      series,
		RowsFetched: len(rows),
		RowsDropped: len(rows) - len(series),
		GeneratedAt: clock.Now().UTC(),
	}
}

// Latest returns the newest reading, or false if the snapshot has no usable data.
func (s Snapshot) Latest() (Reading, bool) {
	if len(s.Series) == 0 {
		return Reading{}, false
	}
	return s.Series[0], true
}

// Window selects the readings less than maxAgeDays old, measured from the
// newest reading or from the current time.
func (s Snapshot) Window(ref WindowReference, maxAgeDays int) Series {
	if ref == ReferenceNow {
		return SelectWindow(s.Series, clock.Now(), maxAgeDays)
	}
	latest, ok := s.Latest()
	if !ok {
		return Series{}
	}
	return SelectWindow(s.Series, latest.ObservedAt, maxAgeDays)
}
