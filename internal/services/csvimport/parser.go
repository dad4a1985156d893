package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseMode selects the field splitter
type ParseMode int

const (
	// Naive splits lines on newlines and fields on every comma. Quoted
	// fields containing commas are not supported.
	Naive ParseMode = iota
	// RFC4180 honours quoting, embedded commas and escaped quotes
	RFC4180
)

func (m ParseMode) String() string {
	if m == RFC4180 {
		return "rfc4180"
	}
	return "naive"
}

// ParseModeFromString maps a flag value to a mode
func ParseModeFromString(s string) (ParseMode, error) {
	switch strings.ToLower(s) {
	case "", "naive":
		return Naive, nil
	case "rfc4180", "strict":
		return RFC4180, nil
	}
	return Naive, fmt.Errorf("unknown CSV parse mode %q", s)
}

// ErrMissingColumn is matched by every MissingColumnError
var ErrMissingColumn = errors.New("required CSV column missing")

// ErrEmptyFile is returned when the input has no header line
var ErrEmptyFile = errors.New("CSV file is empty")

// MissingColumnError rejects a file before any row is parsed
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("CSV must have a %q column", e.Column)
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// ParseUsers parses a user-management upload the way the console always has
func ParseUsers(r io.Reader) ([]Row, error) {
	return Parse(r, UsersSchema(), Naive)
}

// Parse reads r into rows keyed by schema column keys. The header is
// checked for required columns before any data row is read.
func Parse(r io.Reader, schema Schema, mode ParseMode) ([]Row, error) {
	var (
		next func() ([]string, error)
		err  error
	)
	switch mode {
	case RFC4180:
		next = rfc4180Records(r)
	default:
		if next, err = naiveRecords(r); err != nil {
			return nil, err
		}
	}

	header, err := next()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, err
	}

	headers := make([]string, len(header))
	present := make(map[string]bool, len(headers))
	for i, h := range header {
		headers[i] = schema.resolve(h)
		present[headers[i]] = true
	}
	for _, c := range schema.Columns {
		if c.Required && !present[c.Key] {
			return nil, &MissingColumnError{Column: c.Key}
		}
	}

	var rows []Row
	for {
		record, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		if schema.Keep != nil && !schema.Keep(row) {
			continue
		}
		rows = append(rows, row)
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

// naiveRecords splits on newlines and then on every comma, skipping blank lines
func naiveRecords(r io.Reader) (func() ([]string, error), error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	return func() ([]string, error) {
		for len(lines) > 0 {
			line := strings.TrimRight(lines[0], "\r")
			lines = lines[1:]
			if strings.TrimSpace(line) == "" {
				continue
			}
			fields := strings.Split(line, ",")
			for i, f := range fields {
				fields[i] = strings.Trim(strings.TrimSpace(f), `"`)
			}
			return fields, nil
		}
		return nil, io.EOF
	}, nil
}

// rfc4180Records reads one conformant record per call, skipping blank ones
func rfc4180Records(r io.Reader) func() ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	return func() ([]string, error) {
		for {
			record, err := reader.Read()
			if err == io.EOF {
				return nil, io.EOF
			}
			if err != nil {
				return nil, fmt.Errorf("invalid CSV: %w", err)
			}
			if isBlank(record) {
				continue
			}
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
			return record, nil
		}
	}
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
