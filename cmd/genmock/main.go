// Command genmock writes a deterministic getSensorData response for local
// runs and tests. Rows are newest first, spaced -interval apart, with a slow
// methane cycle and a malformed row every -invalid-every rows. The summary it
// prints comes from the real domain package so test assertions can be copied
// from it.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -rows 96 -interval 30m -start 2024-04-27T06:00:00Z \
//	  -invalid-every 10 \
//	  -out data/mock/sensor_data.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

const mockSensorID = "d444f210-9025-11eb-b5ca-d76ebde59f16"

// mockRow mirrors the server's row shape. Values are strings or numbers,
// alternating by row, because the server sends both.
type mockRow struct {
	MV        any    `json:"mv"`
	MVMin     any    `json:"mvmin"`
	MVMax     any    `json:"mvmax"`
	H         any    `json:"h"`
	ST        any    `json:"st"`
	ET        any    `json:"et"`
	Timestamp string `json:"timestamp"`
}

type response struct {
	SensorData []mockRow `json:"sensor_data"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rows := flag.Int("rows", 96, "number of rows to generate")
	interval := flag.Duration("interval", 30*time.Minute, "time between consecutive rows")
	start := flag.String("start", "2024-04-27T06:00:00Z", "RFC 3339 timestamp of the newest row")
	invalidEvery := flag.Int("invalid-every", 0, "make every k-th row malformed (0 disables)")
	out := flag.String("out", "", "output path for the mock response")
	flag.Parse()

	if *out == "" || *rows < 1 || *interval <= 0 {
		flag.Usage()
		return fmt.Errorf("missing or invalid flags: -out, -rows, -interval")
	}
	newest, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	// Fixed clock for a reproducible GeneratedAt in the summary.
	domain.SetClock(clockwork.NewFakeClockAt(newest.Add(5 * time.Minute)))
	defer domain.SetClock(nil)

	resp := response{SensorData: make([]mockRow, 0, *rows)}
	for i := range *rows {
		row := generateRow(i, newest.Add(-time.Duration(i)*(*interval)))
		if *invalidEvery > 0 && (i+1)%*invalidEvery == 0 {
			row = corruptRow(row, i)
		}
		resp.SensorData = append(resp.SensorData, row)
	}

	if err := writeJSON(*out, resp); err != nil {
		return fmt.Errorf("writing mock response: %w", err)
	}
	log.Printf("wrote %d rows: %s", len(resp.SensorData), *out)

	return printStats(resp)
}

// generateRow produces row i. Methane voltage cycles between roughly 1.5 V
// and 6.5 V over a day, so the series crosses the zero-ppm floor.
func generateRow(i int, at time.Time) mockRow {
	phase := 2 * math.Pi * float64(at.Unix()%86400) / 86400
	mv := 4 + 2.5*math.Sin(phase)
	h := 55 + 5*math.Cos(phase)
	st := 48 + 6*math.Sin(phase/2)
	et := 15 + 8*math.Sin(phase-math.Pi/2)

	values := []float64{mv, mv - 0.3, mv + 0.4, h, st, et}
	cells := make([]any, len(values))
	for j, v := range values {
		v = math.Round(v*1000) / 1000
		if i%2 == 0 {
			cells[j] = strconv.FormatFloat(v, 'f', 3, 64)
		} else {
			cells[j] = v
		}
	}

	return mockRow{
		MV: cells[0], MVMin: cells[1], MVMax: cells[2],
		H: cells[3], ST: cells[4], ET: cells[5],
		Timestamp: at.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// corruptRow breaks one field, cycling through the ways real rows go bad.
func corruptRow(row mockRow, i int) mockRow {
	switch i % 4 {
	case 0:
		row.MV = "n/a"
	case 1:
		row.Timestamp = ""
	case 2:
		row.H = nil
	default:
		row.Timestamp = "yesterday"
	}
	return row
}

func printStats(resp response) error {
	data, err := json.Marshal(resp.SensorData)
	if err != nil {
		return err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	snap := domain.NewSnapshot(mockSensorID, domain.ParseRawRows(items))

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: %d fetched, %d valid, %d dropped\n",
		snap.RowsFetched, snap.RowsFetched-snap.RowsDropped, snap.RowsDropped)
	for _, days := range []int{1, 2, 3} {
		fmt.Printf("%d-day window (latest): %d readings\n", days, len(snap.Window(domain.ReferenceLatest, days)))
	}

	var zeroPPM, peakPPM int
	for _, r := range snap.Series {
		if r.MethanePPM == 0 {
			zeroPPM++
		}
		peakPPM = max(peakPPM, r.MethanePPM)
	}
	fmt.Printf("Readings at 0 ppm: %d\n", zeroPPM)
	fmt.Printf("Peak methane: %d ppm\n", peakPPM)

	if latest, ok := snap.Latest(); ok {
		fmt.Println(domain.NewDisplay(latest).Title)
	}
	return nil
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
