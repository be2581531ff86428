package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts lists the accepted timestamp formats in match order.
// Layouts without a zone are read as UTC. Fractional seconds are accepted
// after the seconds field for every layout.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05",
}

// parsedRow holds the numeric form of a well-formed RawRow.
type parsedRow struct {
	mv, mvMin, mvMax float64
	h, st, et        float64
	observedAt       time.Time
}

// ValidateRow reports whether every numeric field of row parses to a finite
// number and its timestamp parses to an instant.
func ValidateRow(row RawRow) bool {
	_, ok := parseRow(row)
	return ok
}

// FilterValid returns the well-formed rows of rows in their original order.
// The input is not modified and the result is never nil.
func FilterValid(rows []RawRow) []RawRow {
	out := make([]RawRow, 0, len(rows))
	for _, row := range rows {
		if ValidateRow(row) {
			out = append(out, row)
		}
	}
	return out
}

func parseRow(row RawRow) (parsedRow, bool) {
	var p parsedRow
	fields := []struct {
		raw RawValue
		dst *float64
	}{
		{row.MV, &p.mv},
		{row.MVMin, &p.mvMin},
		{row.MVMax, &p.mvMax},
		{row.H, &p.h},
		{row.ST, &p.st},
		{row.ET, &p.et},
	}
	for _, f := range fields {
		v, ok := parseNumber(f.raw)
		if !ok {
			return parsedRow{}, false
		}
		*f.dst = v
	}

	t, ok := parseTimestamp(row.Timestamp)
	if !ok {
		return parsedRow{}, false
	}
	p.observedAt = t
	return p, true
}

// parseNumber parses a finite float64. Empty input, trailing garbage, NaN,
// infinities and out-of-range values are rejected.
func parseNumber(v RawValue) (float64, bool) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseTimestamp(v RawValue) (time.Time, bool) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
