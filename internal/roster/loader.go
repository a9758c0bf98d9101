package roster

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/zeebo/blake3"
)

var (
	hostHeaders  = []string{"hostname", "host", "host_id"}
	nameHeaders  = []string{"nume", "name", "display_name"}
	hoursHeaders = []string{"norma", "hours", "expected_hours"}
)

// Load reads a roster from an .xlsx or .csv file. For spreadsheets, sheet
// selects the worksheet; empty means the first one.
func Load(path, sheet string, logger *slog.Logger) (*Roster, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %q: %w", path, err)
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(bytes.NewReader(data))
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(bytes.NewReader(data), sheet)
	default:
		return nil, fmt.Errorf("roster %q: unsupported file type (want .xlsx or .csv)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("roster %q: %w", path, err)
	}

	entries, err := parseRows(rows, logger)
	if err != nil {
		return nil, fmt.Errorf("roster %q: %w", path, err)
	}

	r := New(entries)
	if r.Len() == 0 {
		return nil, fmt.Errorf("roster %q: %w", path, ErrEmptyRoster)
	}
	sum := blake3.Sum256(data)
	r.source = path
	r.fingerprint = hex.EncodeToString(sum[:])
	r.loadedAt = time.Now()
	return r, nil
}

func readWorkbook(rd io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(rd)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(rd io.Reader) ([][]string, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// parseRows maps a header row plus data rows onto entries.
func parseRows(rows [][]string, logger *slog.Logger) ([]Entry, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyRoster
	}

	header := rows[0]
	hostCol := findColumn(header, hostHeaders)
	if hostCol < 0 {
		return nil, fmt.Errorf("missing host column (one of %v)", hostHeaders)
	}
	nameCol := findColumn(header, nameHeaders)
	hoursCol := findColumn(header, hoursHeaders)

	seen := make(map[string]int)
	var entries []Entry
	for i, row := range rows[1:] {
		line := i + 2
		id := cell(row, hostCol)
		if id == "" {
			continue
		}

		e := Entry{
			HostID:        id,
			DisplayName:   cell(row, nameCol),
			ExpectedHours: DefaultExpectedHours,
		}
		if e.DisplayName == "" {
			e.DisplayName = id
		}
		if raw := cell(row, hoursCol); raw != "" {
			hours, ok := parseHours(raw)
			if ok {
				e.ExpectedHours = hours
			} else {
				logger.Warn("invalid expected hours, using default", "row", line, "host", id, "value", raw, "default", DefaultExpectedHours)
			}
		}

		if prev, dup := seen[id]; dup {
			logger.Warn("duplicate host in roster, later row wins", "host", id, "first_row", prev, "row", line)
		}
		seen[id] = line
		entries = append(entries, e)
	}
	return entries, nil
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, want := range names {
			if h == want {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func parseHours(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > 24 {
		return 0, false
	}
	return v, true
}
