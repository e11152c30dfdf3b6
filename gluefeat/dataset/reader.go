package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// MalformedRowPolicy decides what happens to rows that lack a referenced column.
type MalformedRowPolicy string

const (
	PolicySkip MalformedRowPolicy = "skip" // log and drop the row
	PolicyFail MalformedRowPolicy = "fail" // abort the read with a *RowError
)

// ParsePolicy validates a policy name. An empty name selects PolicySkip.
func ParsePolicy(s string) (MalformedRowPolicy, error) {
	switch MalformedRowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyFail:
		return PolicyFail, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// maxLineSize bounds a single TSV row; some NLI premises are long.
const maxLineSize = 16 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader turns tab-separated dataset files into Examples according to a Schema.
type Reader struct {
	Schema Schema
	Policy MalformedRowPolicy
	Logger zerolog.Logger
}

// NewReader creates a reader with the skip policy and a disabled logger.
func NewReader(schema Schema) *Reader {
	return &Reader{Schema: schema, Policy: PolicySkip, Logger: zerolog.Nop()}
}

// ReadResult is the outcome of reading one split file.
type ReadResult struct {
	Path     string
	Examples []Example
	Rows     int // data rows seen, header excluded
	Skipped  int // malformed rows dropped under PolicySkip
}

// ReadSplit reads the file of split from dir.
func (r *Reader) ReadSplit(dir string, split Split) (*ReadResult, error) {
	path, err := r.Schema.Path(dir, split)
	if err != nil {
		return nil, err
	}
	return r.ReadFile(path, split)
}

// ReadFile reads one TSV file as the given split.
func (r *Reader) ReadFile(path string, split Split) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer f.Close()

	res, err := r.Read(f, path, split)
	if err != nil {
		return nil, err
	}
	r.Logger.Info().
		Str("path", path).
		Str("split", string(split)).
		Int("examples", len(res.Examples)).
		Int("skipped", res.Skipped).
		Msg("read dataset split")
	return res, nil
}

// Read parses rows from src. name is only used in errors and logs.
func (r *Reader) Read(src io.Reader, name string, split Split) (*ReadResult, error) {
	if err := r.Schema.Validate(); err != nil {
		return nil, err
	}
	policy, err := ParsePolicy(string(r.Policy))
	if err != nil {
		return nil, err
	}
	cols := r.Schema.ColumnsFor(split)
	res := &ReadResult{Path: name}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for i := 0; scanner.Scan(); i++ {
		line := scanner.Bytes()
		if i == 0 {
			line = bytes.TrimPrefix(line, utf8BOM)
			if r.Schema.SkipHeader {
				continue
			}
		}
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		res.Rows++

		fields := strings.Split(string(line), "\t")
		ex, err := buildExample(fields, cols, split, i)
		if err != nil {
			rowErr := &RowError{Path: name, Row: i, Err: err}
			if policy == PolicyFail {
				return nil, rowErr
			}
			res.Skipped++
			r.Logger.Warn().Err(rowErr).Int("columns", len(fields)).Msg("skipping malformed row")
			continue
		}
		res.Examples = append(res.Examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", name, err)
	}
	return res, nil
}

func buildExample(fields []string, cols Columns, split Split, row int) (Example, error) {
	textA, err := column(fields, cols.TextA, "text A")
	if err != nil {
		return Example{}, err
	}

	var textB string
	if cols.TextB != NoColumn {
		if textB, err = column(fields, cols.TextB, "text B"); err != nil {
			return Example{}, err
		}
	}

	id := strconv.Itoa(row)
	if cols.ID != NoColumn {
		if id, err = column(fields, cols.ID, "id"); err != nil {
			return Example{}, err
		}
	}
	id = fmt.Sprintf("%s-%s", split, id)

	if cols.Label == NoColumn || !split.Labeled() {
		return NewUnlabeledExample(id, textA, textB), nil
	}
	label, err := column(fields, cols.Label, "label")
	if err != nil {
		return Example{}, err
	}
	return NewExample(id, textA, textB, label), nil
}

func column(fields []string, idx int, what string) (string, error) {
	pos := idx
	if pos < 0 {
		pos += len(fields)
	}
	if pos < 0 || pos >= len(fields) {
		return "", fmt.Errorf("%w: %s column %d missing (row has %d columns)", ErrMalformedRow, what, idx, len(fields))
	}
	return fields[pos], nil
}
