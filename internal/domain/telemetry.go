package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// RawValue is a row field exactly as the server sent it. JSON strings are
// unquoted, numbers keep their literal text, null decodes to "". Anything
// else (objects, arrays, booleans) keeps its raw text and fails validation.
type RawValue string

// UnmarshalJSON never returns an error: malformed values are a validation
// outcome, not a decoding failure.
func (v *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*v = RawValue(data)
			return nil
		}
		*v = RawValue(s)
	default:
		*v = RawValue(data)
	}
	return nil
}

// RawRow is one telemetry record as returned by the sensor server.
type RawRow struct {
	MV        RawValue `json:"mv"`
	MVMin     RawValue `json:"mvmin"`
	MVMax     RawValue `json:"mvmax"`
	H         RawValue `json:"h"`
	ST        RawValue `json:"st"`
	ET        RawValue `json:"et"`
	Timestamp RawValue `json:"timestamp"`
}

// ParseRawRows decodes each element of a sensor_data array on its own. An
// element that is not an object becomes the zero RawRow, which never
// validates, so one bad element cannot sink the batch.
func ParseRawRows(items []json.RawMessage) []RawRow {
	rows := make([]RawRow, len(items))
	for i, item := range items {
		var row RawRow
		if err := json.Unmarshal(item, &row); err != nil {
			continue
		}
		rows[i] = row
	}
	return rows
}

// Reading is a validated, converted telemetry record.
type Reading struct {
	MethanePPM      int       `json:"methane_ppm"`
	MethanePPMMin   int       `json:"methane_ppm_min"`
	MethanePPMMax   int       `json:"methane_ppm_max"`
	HumidityPercent float64   `json:"humidity_percent"`
	SensorTempC     float64   `json:"sensor_temp_c"`
	ExternalTempC   float64   `json:"external_temp_c"`
	ObservedAt      time.Time `json:"observed_at"`
}

// Series is a sequence of readings, newest first. Duplicate timestamps are
// allowed and kept.
type Series []Reading
