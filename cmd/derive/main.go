// Command derive runs a getSensorData dump through the derivation pipeline
// offline and reports, phase by phase, whether the data survives parsing,
// validation, conversion and windowing. It can also write the derived series.
//
// Usage:
//
//	go run ./cmd/derive \
//	  -in internal/pipeline/testdata/sensor_data.json \
//	  -days 2 -reference now -now 2024-04-27T06:00:00Z \
//	  -out derived.json
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for one derivation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	in        string
	out       string
	sensorID  string
	days      int
	reference domain.WindowReference
	now       time.Time
}

func main() {
	in := flag.String("in", "", "path to a getSensorData response or a bare sensor_data array")
	out := flag.String("out", "", "optional output path for the windowed series as JSON")
	sensorID := flag.String("sensor-id", "d444f210-9025-11eb-b5ca-d76ebde59f16", "sensor ID recorded in the output")
	days := flag.Int("days", 1, "history window in whole days")
	reference := flag.String("reference", string(domain.ReferenceLatest), "window reference: latest or now")
	now := flag.String("now", "", "RFC 3339 instant used as the current time (default: wall clock)")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts := options{in: *in, out: *out, sensorID: *sensorID, days: *days}
	var err error
	if opts.reference, err = domain.ParseWindowReference(*reference); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	if *now != "" {
		if opts.now, err = time.Parse(time.RFC3339, *now); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: parse -now: %v\n", err)
			os.Exit(1)
		}
	}

	os.Exit(run(opts))
}

func run(opts options) int {
	if !opts.now.IsZero() {
		domain.SetClock(clockwork.NewFakeClockAt(opts.now))
		defer domain.SetClock(nil)
	}

	fmt.Println("=== Sensor Telemetry Derivation ===")
	fmt.Println()

	data, err := os.ReadFile(opts.in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read input: %v\n", err)
		return 1
	}

	parse, rows := parsePhase(data)
	validate, valid := validatePhase(rows)
	convert, series := convertPhase(valid)
	snap := domain.NewSnapshot(opts.sensorID, rows)
	window, windowed := windowPhase(snap, series, opts.reference, opts.days)

	phases := []*phase{parse, validate, convert, window}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d fetched, %d valid, %d dropped, %d in %d-day window (reference %s)\n",
		len(rows), len(valid), len(rows)-len(valid), len(windowed), opts.days, opts.reference)
	if latest, ok := snap.Latest(); ok {
		d := domain.NewDisplay(latest)
		fmt.Println(d.Title)
		fmt.Printf("  methane %d ppm (%s)\n", latest.MethanePPM, d.MethaneRange)
		fmt.Printf("  humidity %.1f%%, sensor %.1f°C, external %.1f°C\n",
			latest.HumidityPercent, latest.SensorTempC, latest.ExternalTempC)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if opts.out != "" {
		if err := writeJSON(opts.out, windowed); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: write output: %v\n", err)
			return 1
		}
		fmt.Printf("\nWrote %d readings to %s\n", len(windowed), opts.out)
	}

	if allPassed {
		fmt.Println("\nAll phases passed.")
		return 0
	}
	fmt.Println("\nDerivation FAILED.")
	return 1
}

// ── Phase 1: Parse ──
// Accepts either the full {"sensor_data": [...]} response or a bare array.

func parsePhase(data []byte) (*phase, []domain.RawRow) {
	p := &phase{name: "Phase 1: Parse (sensor_data)"}

	var items []json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			p.errorf("decode array: %v", err)
			return p, nil
		}
	} else {
		var body struct {
			SensorData []json.RawMessage `json:"sensor_data"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			p.errorf("decode response: %v", err)
			return p, nil
		}
		items = body.SensorData
	}

	if len(items) == 0 {
		p.errorf("no rows in input")
	}
	return p, domain.ParseRawRows(items)
}

// ── Phase 2: Validate ──
// Malformed rows are dropped, not failures. The phase fails only if nothing
// usable remains or the filter misbehaves.

func validatePhase(rows []domain.RawRow) (*phase, []domain.RawRow) {
	p := &phase{name: "Phase 2: Validate (well-formed rows)"}

	valid := domain.FilterValid(rows)
	for i, row := range rows {
		if !domain.ValidateRow(row) {
			fmt.Printf("  dropped row %d: timestamp=%q mv=%q\n", i, row.Timestamp, row.MV)
		}
	}

	if len(rows) > 0 && len(valid) == 0 {
		p.errorf("all %d rows are malformed", len(rows))
	}
	if again := domain.FilterValid(valid); len(again) != len(valid) {
		p.errorf("filter is not idempotent: %d then %d rows", len(valid), len(again))
	}
	return p, valid
}

// ── Phase 3: Convert ──

func convertPhase(valid []domain.RawRow) (*phase, domain.Series) {
	p := &phase{name: "Phase 3: Convert (volts to ppm)"}

	series := make(domain.Series, 0, len(valid))
	for i, row := range valid {
		r, err := domain.Convert(row)
		if err != nil {
			p.errorf("row %d: %v", i, err)
			continue
		}
		if r.MethanePPM < 0 || r.MethanePPMMin < 0 || r.MethanePPMMax < 0 {
			p.errorf("row %d: negative ppm %d/%d/%d", i, r.MethanePPM, r.MethanePPMMin, r.MethanePPMMax)
		}
		series = append(series, r)
	}
	return p, series
}

// ── Phase 4: Window ──
// The window must be an order-preserving subsequence of the series.

func windowPhase(snap domain.Snapshot, series domain.Series, ref domain.WindowReference, days int) (*phase, domain.Series) {
	p := &phase{name: "Phase 4: Window (history selection)"}

	if len(snap.Series) != len(series) {
		p.errorf("snapshot has %d readings, converted series has %d", len(snap.Series), len(series))
	}

	windowed := snap.Window(ref, days)
	j := 0
	for _, r := range windowed {
		for j < len(snap.Series) && !snap.Series[j].ObservedAt.Equal(r.ObservedAt) {
			j++
		}
		if j == len(snap.Series) {
			p.errorf("reading at %s is not in series order", r.ObservedAt.Format(time.RFC3339))
			break
		}
		j++
	}
	return p, windowed
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
