package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"

	"github.com/tomdowns/cbatool/internal/files"
)

// numericThreshold is the fraction of non-empty cells that must parse
// as numbers for a column to be stored as floats. Survey exports often
// carry a few stray text cells (units, remarks) inside otherwise
// numeric columns.
const numericThreshold = 0.7

// preferredSheets are tried by name before scanning the workbook for
// the first sheet that holds data.
var preferredSheets = []string{"Data", "Survey", "Survey Data", "DOB", "Sheet1"}

// LoadOptions control how a survey file is read.
type LoadOptions struct {
	// Sheet selects an Excel sheet by name; empty picks automatically.
	Sheet string
	// MaxRows limits the number of data rows read; 0 reads everything.
	MaxRows int
}

// ColumnInfo describes one loaded column.
type ColumnInfo struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	NonNullCount int    `json:"non_null_count"`
}

// Suggestions are loader guesses at the survey schema based on column
// names, offered to callers that did not declare a schema themselves.
type Suggestions struct {
	Depth    string `json:"depth,omitempty"`
	KP       string `json:"kp,omitempty"`
	Position string `json:"position,omitempty"`
}

// FileInfo describes the file a dataset was loaded from.
type FileInfo struct {
	Path        string       `json:"path"`
	Format      string       `json:"format"`
	Sheet       string       `json:"sheet,omitempty"`
	Sheets      []string     `json:"sheets,omitempty"`
	Rows        int          `json:"rows"`
	Columns     []ColumnInfo `json:"columns"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Suggested   Suggestions  `json:"suggested"`
}

// Loader reads survey data files into datasets.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader with the given logger.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads the survey file at path into a dataset. Excel workbooks
// and CSV files are supported; anything else is an error. Loading
// never returns a partially built dataset: the result is either a
// complete table or an error.
func (l *Loader) Load(ctx context.Context, path string, opts LoadOptions) (*Dataset, *FileInfo, error) {
	ext := strings.ToLower(filepath.Ext(path))

	l.logger.InfoContext(ctx, "loading survey data",
		"path", path,
		"format", ext,
		"sheet", opts.Sheet,
	)

	var (
		ds   *Dataset
		info *FileInfo
		err  error
	)
	switch ext {
	case ".xlsx", ".xlsm", ".xls":
		ds, info, err = l.loadExcel(ctx, path, opts)
	case ".csv":
		ds, info, err = l.loadCSV(ctx, path, opts)
	default:
		return nil, nil, fmt.Errorf("unsupported file format %q", ext)
	}
	if err != nil {
		return nil, nil, err
	}

	if fp, fpErr := files.Fingerprint(path); fpErr != nil {
		l.logger.WarnContext(ctx, "could not fingerprint survey file",
			"path", path,
			"error", fpErr,
		)
	} else {
		info.Fingerprint = fp
	}

	info.Suggested = Suggest(ds)

	l.logger.InfoContext(ctx, "survey data loaded",
		"rows", ds.Len(),
		"columns", len(info.Columns),
		"suggested_depth", info.Suggested.Depth,
		"suggested_kp", info.Suggested.KP,
	)

	return ds, info, nil
}

func (l *Loader) loadExcel(ctx context.Context, path string, opts LoadOptions) (*Dataset, *FileInfo, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()

	var rows [][]string
	sheetName := opts.Sheet
	if sheetName != "" {
		rows, err = f.GetRows(sheetName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
		}
	} else {
		for _, name := range preferredSheets {
			if r, rErr := f.GetRows(name); rErr == nil && len(r) > 0 {
				rows, sheetName = r, name
				break
			}
		}
		if sheetName == "" {
			for _, name := range sheets {
				if r, rErr := f.GetRows(name); rErr == nil && len(r) > 0 {
					rows, sheetName = r, name
					break
				}
			}
		}
		if sheetName == "" {
			return nil, nil, fmt.Errorf("no sheet with data in %s", path)
		}
	}

	l.logger.DebugContext(ctx, "selected sheet",
		"sheet", sheetName,
		"raw_rows", len(rows),
	)

	header, dataRows := splitHeader(rows)
	if len(header) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheetName)
	}
	if opts.MaxRows > 0 && len(dataRows) > opts.MaxRows {
		dataRows = dataRows[:opts.MaxRows]
	}

	ds, cols := buildDataset(header, dataRows)
	info := &FileInfo{
		Path:    path,
		Format:  "excel",
		Sheet:   sheetName,
		Sheets:  sheets,
		Rows:    ds.Len(),
		Columns: cols,
	}
	return ds, info, nil
}

func (l *Loader) loadCSV(ctx context.Context, path string, opts LoadOptions) (*Dataset, *FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	stripBOM(br)

	delim, err := sniffDelimiter(br)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	r := csv.NewReader(br)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, rErr := r.Read()
		if rErr == io.EOF {
			break
		}
		if rErr != nil {
			return nil, nil, fmt.Errorf("failed to parse CSV: %w", rErr)
		}
		rows = append(rows, record)
	}

	l.logger.DebugContext(ctx, "parsed CSV",
		"delimiter", string(delim),
		"raw_rows", len(rows),
	)

	header, dataRows := splitHeader(rows)
	if len(header) == 0 {
		return nil, nil, fmt.Errorf("file %s is empty", path)
	}
	if opts.MaxRows > 0 && len(dataRows) > opts.MaxRows {
		dataRows = dataRows[:opts.MaxRows]
	}

	ds, cols := buildDataset(header, dataRows)
	info := &FileInfo{
		Path:    path,
		Format:  "csv",
		Rows:    ds.Len(),
		Columns: cols,
	}
	return ds, info, nil
}

// stripBOM discards a leading UTF-8 byte order mark if present.
func stripBOM(br *bufio.Reader) {
	bom, err := br.Peek(3)
	if err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}
}

// sniffDelimiter inspects the first line and picks the separator with
// the most occurrences. Comma wins ties.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	buf, _ := br.Peek(4096)
	if len(buf) == 0 {
		return 0, fmt.Errorf("file is empty")
	}

	line := string(buf)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}

	best, bestCount := ',', strings.Count(line, ",")
	for _, cand := range []rune{';', '\t'} {
		if c := strings.Count(line, string(cand)); c > bestCount {
			best, bestCount = cand, c
		}
	}
	return best, nil
}

// splitHeader decides whether the first non-empty row is a header row.
// A row counts as a header when at least one cell is non-numeric text;
// otherwise synthetic Column1..N names are generated and every row is
// treated as data.
func splitHeader(rows [][]string) ([]string, [][]string) {
	start := 0
	for start < len(rows) && rowEmpty(rows[start]) {
		start++
	}
	if start >= len(rows) {
		return nil, nil
	}

	if headerLike(rows[start]) {
		return normalizeHeader(rows[start]), rows[start+1:]
	}

	width := 0
	for _, r := range rows[start:] {
		if len(r) > width {
			width = len(r)
		}
	}
	header := make([]string, width)
	for i := range header {
		header[i] = fmt.Sprintf("Column%d", i+1)
	}
	return header, rows[start:]
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func headerLike(row []string) bool {
	nonEmpty, text := 0, 0
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		nonEmpty++
		if _, err := cast.ToFloat64E(cleanNumber(cell)); err != nil {
			text++
		}
	}
	return nonEmpty > 0 && text > 0
}

func normalizeHeader(row []string) []string {
	seen := make(map[string]int)
	header := make([]string, len(row))
	for i, cell := range row {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = fmt.Sprintf("Column%d", i+1)
		}
		if n := seen[name]; n > 0 {
			header[i] = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			header[i] = name
		}
		seen[name]++
	}
	return header
}

// buildDataset types each column by sampling its cells: mostly-numeric
// columns become float columns with unparseable cells as missing, the
// rest stay text.
func buildDataset(header []string, rows [][]string) (*Dataset, []ColumnInfo) {
	n := len(rows)
	ds := New(n)
	infos := make([]ColumnInfo, 0, len(header))

	for j, name := range header {
		raw := make([]string, n)
		nonEmpty, numeric := 0, 0
		for i, row := range rows {
			var cell string
			if j < len(row) {
				cell = strings.TrimSpace(row[j])
			}
			raw[i] = cell
			if cell == "" {
				continue
			}
			nonEmpty++
			if _, err := cast.ToFloat64E(cleanNumber(cell)); err == nil {
				numeric++
			}
		}

		if nonEmpty > 0 && float64(numeric)/float64(nonEmpty) >= numericThreshold {
			vals := make([]float64, n)
			nonNull := 0
			for i, cell := range raw {
				if cell == "" {
					vals[i] = Missing()
					continue
				}
				v, err := cast.ToFloat64E(cleanNumber(cell))
				if err != nil {
					vals[i] = Missing()
					continue
				}
				vals[i] = v
				nonNull++
			}
			_ = ds.SetFloats(name, vals)
			infos = append(infos, ColumnInfo{Name: name, Kind: KindFloat.String(), NonNullCount: nonNull})
			continue
		}

		_ = ds.SetStrings(name, raw)
		infos = append(infos, ColumnInfo{Name: name, Kind: KindString.String(), NonNullCount: nonEmpty})
	}

	return ds, infos
}

// cleanNumber removes thousands separators before numeric parsing.
func cleanNumber(s string) string {
	return strings.ReplaceAll(s, ",", "")
}

// Suggest guesses schema column names from the dataset's numeric
// columns: depth of burial/lowering first, then KP, then a generic
// chainage or distance column.
func Suggest(ds *Dataset) Suggestions {
	var s Suggestions
	for _, name := range ds.ColumnNames() {
		if _, ok := ds.Floats(name); !ok {
			continue
		}
		lower := strings.ToLower(name)
		switch {
		case s.Depth == "" && containsAny(lower, "dol", "dob", "depth", "burial"):
			s.Depth = name
		case s.KP == "" && strings.Contains(lower, "kp"):
			s.KP = name
		case s.Position == "" && containsAny(lower, "position", "chainage", "distance"):
			s.Position = name
		}
	}
	return s
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
