package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSingleSequenceFile(t *testing.T) {
	schema := DefaultFiles(SingleColumns(0, 1))
	r := NewReader(schema)

	src := "sentence\tlabel\nit 's a charming journey .\t1\nunflinchingly bleak\t0\n"
	res, err := r.Read(strings.NewReader(src), "train.tsv", SplitTrain)
	require.NoError(t, err)

	require.Len(t, res.Examples, 2)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 0, res.Skipped)

	first := res.Examples[0]
	assert.Equal(t, "train-1", first.ID)
	assert.Equal(t, "it 's a charming journey .", first.TextA)
	assert.False(t, first.IsPair())
	assert.True(t, first.HasLabel)
	assert.Equal(t, "1", first.Label)
	assert.Equal(t, "train-2", res.Examples[1].ID)
}

func TestReadPairFileWithNegativeColumns(t *testing.T) {
	// RTE layout: index, sentence1, sentence2, label (label read from the end)
	schema := DefaultFiles(PairColumns(0, 1, 2, -1))
	r := NewReader(schema)

	src := "index\tsentence1\tsentence2\tlabel\n" +
		"7\tNo weapons were found .\tWeapons were found .\tnot_entailment\n"
	res, err := r.Read(strings.NewReader(src), "dev.tsv", SplitDev)
	require.NoError(t, err)
	require.Len(t, res.Examples, 1)

	ex := res.Examples[0]
	assert.Equal(t, "dev-7", ex.ID)
	assert.Equal(t, "No weapons were found .", ex.TextA)
	assert.Equal(t, "Weapons were found .", ex.TextB)
	assert.Equal(t, "not_entailment", ex.Label)
	assert.True(t, ex.IsPair())
}

func TestReadKeepsQuotesLiteral(t *testing.T) {
	schema := DefaultFiles(SingleColumns(0, 1))
	r := NewReader(schema)

	src := "sentence\tlabel\n\"a quoted start and an \"inner\" quote\t1\n"
	res, err := r.Read(strings.NewReader(src), "train.tsv", SplitTrain)
	require.NoError(t, err)
	require.Len(t, res.Examples, 1)
	assert.Equal(t, `"a quoted start and an "inner" quote`, res.Examples[0].TextA)
}

func TestReadStripsBOMAndCarriageReturns(t *testing.T) {
	schema := DefaultFiles(SingleColumns(0, 1))
	schema.SkipHeader = false
	r := NewReader(schema)

	src := "\xEF\xBB\xBFfirst\t0\r\nsecond\t1\r\n"
	res, err := r.Read(strings.NewReader(src), "train.tsv", SplitTrain)
	require.NoError(t, err)
	require.Len(t, res.Examples, 2)
	assert.Equal(t, "first", res.Examples[0].TextA)
	assert.Equal(t, "train-0", res.Examples[0].ID)
	assert.Equal(t, "1", res.Examples[1].Label)
}

func TestMalformedRowPolicy(t *testing.T) {
	schema := DefaultFiles(PairColumns(0, 3, 4, 5))
	src := "id\tqid1\tqid2\tq1\tq2\tis_duplicate\n" +
		"1\t1\t2\tHow do I learn Go?\tWhat is the best way to learn Go?\t1\n" +
		"2\t3\t4\ttruncated row\n" +
		"3\t5\t6\tIs it raining?\tWill it rain today?\t0\n"

	tests := []struct {
		name     string
		policy   MalformedRowPolicy
		wantErr  bool
		wantRows int
		skipped  int
	}{
		{name: "skip drops the row", policy: PolicySkip, wantRows: 2, skipped: 1},
		{name: "empty policy behaves like skip", policy: "", wantRows: 2, skipped: 1},
		{name: "fail aborts", policy: PolicyFail, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(schema)
			r.Policy = tt.policy
			res, err := r.Read(strings.NewReader(src), "train.tsv", SplitTrain)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedRow))
				var rowErr *RowError
				require.True(t, errors.As(err, &rowErr))
				assert.Equal(t, 2, rowErr.Row)
				return
			}
			require.NoError(t, err)
			assert.Len(t, res.Examples, tt.wantRows)
			assert.Equal(t, tt.skipped, res.Skipped)
			assert.Equal(t, 3, res.Rows)
		})
	}
}

func TestUnknownPolicy(t *testing.T) {
	r := NewReader(DefaultFiles(SingleColumns(0, 1)))
	r.Policy = "ignore"
	_, err := r.Read(strings.NewReader("h\tl\n"), "train.tsv", SplitTrain)
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestTestSplitIsUnlabeled(t *testing.T) {
	schema := DefaultFiles(SingleColumns(0, 1))
	schema.Test = &Columns{ID: 0, TextA: 1, TextB: NoColumn, Label: NoColumn}
	r := NewReader(schema)

	src := "index\tsentence\n0\tuneasy mishmash of styles and genres .\n"
	res, err := r.Read(strings.NewReader(src), "test.tsv", SplitTest)
	require.NoError(t, err)
	require.Len(t, res.Examples, 1)
	assert.Equal(t, "test-0", res.Examples[0].ID)
	assert.Equal(t, "uneasy mishmash of styles and genres .", res.Examples[0].TextA)
	assert.False(t, res.Examples[0].HasLabel)
}

func TestReadSplitFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dev.tsv"), []byte("s\tl\ngood\t1\n"), 0o644))

	r := NewReader(DefaultFiles(SingleColumns(0, 1)))
	res, err := r.ReadSplit(dir, SplitDev)
	require.NoError(t, err)
	assert.Len(t, res.Examples, 1)
	assert.Equal(t, filepath.Join(dir, "dev.tsv"), res.Path)

	_, err = r.ReadSplit(dir, SplitTrain)
	assert.Error(t, err, "missing train.tsv must fail")

	noDev := DefaultFiles(SingleColumns(0, 1))
	noDev.DevFile = ""
	_, err = NewReader(noDev).ReadSplit(dir, SplitDev)
	assert.ErrorIs(t, err, ErrNoSplitFile)
}

func TestSchemaValidate(t *testing.T) {
	bad := DefaultFiles(Columns{ID: NoColumn, TextA: NoColumn, TextB: NoColumn, Label: 1})
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSchema)

	_, err := NewReader(bad).Read(strings.NewReader(""), "x", SplitTrain)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestParseSplit(t *testing.T) {
	s, err := ParseSplit(" Dev ")
	require.NoError(t, err)
	assert.Equal(t, SplitDev, s)

	_, err = ParseSplit("validation")
	assert.ErrorIs(t, err, ErrUnknownSplit)
}
