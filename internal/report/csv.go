package report

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/infrastructure"
)

// utf8BOM marks CSV output as UTF-8 so Excel opens it correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes report tables as CSV files.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer. A nil logger falls back to the
// application logger.
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &CSVWriter{logger: infrastructure.WithComponent(logger, "report.csv")}
}

// WriteOptions configures CSV writing behavior.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options.
func (w *CSVWriter) WriteCSV(path string, options WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)

	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	w.logger.Info("csv file written",
		slog.String("path", path),
		slog.Int("records", len(options.Records)))
	return nil
}

// WriteTable writes a report table as a BOM-prefixed CSV file.
func (w *CSVWriter) WriteTable(path string, t Table) error {
	return w.WriteCSV(path, WriteOptions{
		Headers:   t.Headers,
		Records:   csvRecords(t),
		BOMPrefix: true,
	})
}

// AppendToCSV appends records to an existing CSV file.
func (w *CSVWriter) AppendToCSV(path string, records [][]string) error {
	return w.WriteCSV(path, WriteOptions{
		Records: records,
		Append:  true,
	})
}

// WriteDataset streams the full augmented dataset to CSV, one row per
// survey record with every column the analyzers added. Missing floats
// become empty fields.
func (w *CSVWriter) WriteDataset(path string, d *dataset.Dataset) error {
	if d.Len() == 0 {
		return fmt.Errorf("dataset export: no rows")
	}

	names := d.ColumnNames()
	views := make([]columnView, len(names))
	for i, name := range names {
		views[i] = viewColumn(d, name)
	}

	sw, err := w.CreateStreamWriter(path, names)
	if err != nil {
		return err
	}

	record := make([]string, len(views))
	for row := 0; row < d.Len(); row++ {
		for col, v := range views {
			record[col] = v.cell(row)
		}
		if err := sw.WriteRecord(record); err != nil {
			sw.Close()
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if err := sw.Close(); err != nil {
		return err
	}

	w.logger.Info("dataset exported",
		slog.String("path", path),
		slog.Int("rows", d.Len()),
		slog.Int("columns", len(names)))
	return nil
}

// StreamWriter provides streaming CSV writing for large datasets.
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates a new streaming CSV writer. The file is
// BOM-prefixed and the headers are written immediately.
func (w *CSVWriter) CreateStreamWriter(path string, headers []string) (*StreamWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := file.Write(utf8BOM); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{file: file, writer: writer}, nil
}

// WriteRecord writes a single record to the stream.
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// columnView caches one dataset column for row-major export.
type columnView struct {
	kind    dataset.ColumnKind
	floats  []float64
	strings []string
	bools   []bool
}

func viewColumn(d *dataset.Dataset, name string) columnView {
	kind, _ := d.Kind(name)
	v := columnView{kind: kind}
	switch kind {
	case dataset.KindFloat:
		v.floats, _ = d.Floats(name)
	case dataset.KindString:
		v.strings, _ = d.Strings(name)
	case dataset.KindBool:
		v.bools, _ = d.Bools(name)
	}
	return v
}

func (v columnView) cell(row int) string {
	switch v.kind {
	case dataset.KindFloat:
		if dataset.IsMissing(v.floats[row]) {
			return ""
		}
		return strconv.FormatFloat(v.floats[row], 'f', -1, 64)
	case dataset.KindString:
		return v.strings[row]
	case dataset.KindBool:
		return strconv.FormatBool(v.bools[row])
	default:
		return ""
	}
}
