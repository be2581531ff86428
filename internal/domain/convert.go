package domain

import (
	"errors"
	"fmt"
	"math"
)

// Methane sensor calibration: 2 V is zero concentration and each further
// 5 V spans 10000 ppm.
const (
	methaneZeroVolts = 2.0
	methaneSpanVolts = 5.0
	methaneSpanPPM   = 10000.0
)

// ErrInvalidRow is returned by Convert for a row that fails ValidateRow.
var ErrInvalidRow = errors.New("invalid telemetry row")

// PPM converts a methane sensor voltage to parts per million. Voltages below
// the 2 V zero point, and NaN, yield 0. Results beyond the int range
// saturate at math.MaxInt.
func PPM(voltage float64) int {
	if !(voltage >= methaneZeroVolts) {
		return 0
	}
	ppm := math.Round((voltage - methaneZeroVolts) / methaneSpanVolts * methaneSpanPPM)
	if ppm >= math.MaxInt {
		return math.MaxInt
	}
	return int(ppm)
}

// Convert derives a Reading from a well-formed row. Rows that fail
// ValidateRow return an error wrapping ErrInvalidRow; callers that filter
// first never see it.
func Convert(row RawRow) (Reading, error) {
	p, ok := parseRow(row)
	if !ok {
		return Reading{}, fmt.Errorf("convert row: %w", ErrInvalidRow)
	}
	return p.reading(), nil
}

// Derive drops malformed rows and converts the rest, preserving order.
// The result is never nil.
func Derive(rows []RawRow) Series {
	series := make(Series, 0, len(rows))
	for _, row := range rows {
		p, ok := parseRow(row)
		if !ok {
			continue
		}
		series = append(series, p.reading())
	}
	return series
}

func (p parsedRow) reading() Reading {
	return Reading{
		MethanePPM:      PPM(p.mv),
		MethanePPMMin:   PPM(p.mvMin),
		MethanePPMMax:   PPM(p.mvMax),
		HumidityPercent: p.h,
		SensorTempC:     p.st,
		ExternalTempC:   p.et,
		ObservedAt:      p.observedAt,
	}
}
