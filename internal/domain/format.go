package domain

import (
	"fmt"
	"time"
)

// Temperature gauges run from 0 to 100 degrees Celsius.
const (
	tempGaugeMin = 0.0
	tempGaugeMax = 100.0
)

// Display is the text and gauge geometry shown next to a reading.
type Display struct {
	Title            string  `json:"title"`
	ObservedAt       string  `json:"observed_at"`
	MethaneRange     string  `json:"methane_range"`
	SensorTempFill   float64 `json:"sensor_temp_fill"`
	ExternalTempFill float64 `json:"external_temp_fill"`
}

// NewDisplay renders the display block for r.
func NewDisplay(r Reading) Display {
	observed := FormatObservedAt(r.ObservedAt)
	return Display{
		Title:            fmt.Sprintf("Sensor data as of %s:", observed),
		ObservedAt:       observed,
		MethaneRange:     fmt.Sprintf("Range in last 30 minutes: %d ppm - %d ppm", r.MethanePPMMin, r.MethanePPMMax),
		SensorTempFill:   GaugeFill(r.SensorTempC, tempGaugeMin, tempGaugeMax),
		ExternalTempFill: GaugeFill(r.ExternalTempC, tempGaugeMin, tempGaugeMax),
	}
}

// FormatObservedAt formats t in UTC as "Monday, January 1st, 2024, 12:00:00 AM".
func FormatObservedAt(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s, %s %d%s, %d, %s",
		t.Weekday(), t.Month(), t.Day(), ordinalSuffix(t.Day()), t.Year(), t.Format("3:04:05 PM"))
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// GaugeFill returns how full a vertical gauge spanning [lo, hi] is for value,
// as a percentage clamped to 0..100. A degenerate span reads as empty.
func GaugeFill(value, lo, hi float64) float64 {
	switch {
	case hi <= lo:
		return 0
	case value >= hi:
		return 100
	case value <= lo:
		return 0
	}
	return 100 * (value - lo) / (hi - lo)
}
