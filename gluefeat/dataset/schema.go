package dataset

import (
	"fmt"
	"math"
	"path/filepath"
)

// NoColumn marks a column that is not present in a schema.
const NoColumn = math.MinInt

// Columns maps row fields to Example fields. Negative indices count from the
// end of the row (-1 is the last column).
type Columns struct {
	ID    int `mapstructure:"id"`    // NoColumn: use the row number
	TextA int `mapstructure:"textA"` // required
	TextB int `mapstructure:"textB"` // NoColumn for single-sequence tasks
	Label int `mapstructure:"label"` // NoColumn for unlabeled files
}

// SingleColumns is the common layout "text<TAB>label" used by most
// sentiment style datasets.
func SingleColumns(textA, label int) Columns {
	return Columns{ID: NoColumn, TextA: textA, TextB: NoColumn, Label: label}
}

// PairColumns is the layout for sentence-pair datasets.
func PairColumns(id, textA, textB, label int) Columns {
	return Columns{ID: id, TextA: textA, TextB: textB, Label: label}
}

// Schema describes where a dataset keeps its split files and which columns
// hold text and labels. It is owned by the reader; the feature builder never
// sees it.
type Schema struct {
	TrainFile  string   `mapstructure:"trainFile"`
	DevFile    string   `mapstructure:"devFile"`
	TestFile   string   `mapstructure:"testFile"`
	SkipHeader bool     `mapstructure:"skipHeader"`
	Columns    Columns  `mapstructure:"columns"`
	Test       *Columns `mapstructure:"test"` // optional layout override for the test split
}

// DefaultFiles returns a schema using train.tsv/dev.tsv/test.tsv with a header row.
func DefaultFiles(cols Columns) Schema {
	return Schema{
		TrainFile:  "train.tsv",
		DevFile:    "dev.tsv",
		TestFile:   "test.tsv",
		SkipHeader: true,
		Columns:    cols,
	}
}

// Validate checks that the schema can produce examples.
func (s Schema) Validate() error {
	if s.Columns.TextA == NoColumn {
		return fmt.Errorf("%w: text A column is required", ErrInvalidSchema)
	}
	if s.Test != nil && s.Test.TextA == NoColumn {
		return fmt.Errorf("%w: test text A column is required", ErrInvalidSchema)
	}
	if s.TrainFile == "" && s.DevFile == "" && s.TestFile == "" {
		return fmt.Errorf("%w: no split files", ErrInvalidSchema)
	}
	return nil
}

// Path resolves the file of a split inside dir.
func (s Schema) Path(dir string, split Split) (string, error) {
	var name string
	switch split {
	case SplitTrain:
		name = s.TrainFile
	case SplitDev:
		name = s.DevFile
	case SplitTest:
		name = s.TestFile
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSplit, split)
	}
	if name == "" {
		return "", fmt.Errorf("%w: %s", ErrNoSplitFile, split)
	}
	return filepath.Join(dir, name), nil
}

// ColumnsFor returns the column layout used for a split.
func (s Schema) ColumnsFor(split Split) Columns {
	if split == SplitTest && s.Test != nil {
		return *s.Test
	}
	return s.Columns
}
