package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// WriteSurveyCSV writes a deterministic burial survey CSV with rows records
// and returns its path. The profile is flat at 1.8 m with two planted
// defects: an under-burial dip to 1.2 m between 40% and 45% of the route,
// and a single spike to 0.2 m at 70%. Tests can rely on both being found
// by depth analysis with the default 1.5 m target.
func WriteSurveyCSV(t *testing.T, dir string, rows int) string {
	t.Helper()

	if rows <= 0 {
		rows = 200
	}

	path := filepath.Join(dir, "survey.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create survey fixture: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"KP", "DOB", "DCC", "Latitude", "Longitude", "Easting", "Northing"}
	if err := w.Write(header); err != nil {
		t.Fatalf("write survey fixture header: %v", err)
	}

	dipFrom, dipTo := rows*40/100, rows*45/100
	spikeAt := rows * 70 / 100

	for i := 0; i < rows; i++ {
		kp := float64(i) / 1000.0
		depth := 1.8
		if i >= dipFrom && i < dipTo {
			depth = 1.2
		}
		if i == spikeAt {
			depth = 0.2
		}
		dcc := 0.5
		lat := 54.1 + kp*0.009
		lon := 7.2 + kp*0.0005
		easting := 400000.0 + kp*1000.0
		northing := 5990000.0 + kp*30.0

		record := []string{
			strconv.FormatFloat(kp, 'f', 3, 64),
			strconv.FormatFloat(depth, 'f', 2, 64),
			strconv.FormatFloat(dcc, 'f', 2, 64),
			strconv.FormatFloat(lat, 'f', 6, 64),
			strconv.FormatFloat(lon, 'f', 6, 64),
			strconv.FormatFloat(easting, 'f', 1, 64),
			strconv.FormatFloat(northing, 'f', 1, 64),
		}
		if err := w.Write(record); err != nil {
			t.Fatalf("write survey fixture row %d: %v", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush survey fixture: %v", err)
	}
	return path
}

// WriteRegistryCSV writes a small cable registry CSV and returns its path.
// It contains one export cable, one inter-array cable, and one row whose
// type must be inferred from the identifier.
func WriteRegistryCSV(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "cables.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create registry fixture: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	records := [][]string{
		{"cable_id", "type", "status", "metadata"},
		{"EXC-01", "EXC", "burial complete", `{"length_km": 42.5}`},
		{"IAC-A1-A2", "IAC", "installed", `{"from": "A1", "to": "A2"}`},
		{"EXP-02", "", "burial in progress", ""},
	}
	for _, record := range records {
		if err := w.Write(record); err != nil {
			t.Fatalf("write registry fixture: %v", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush registry fixture: %v", err)
	}
	return path
}
