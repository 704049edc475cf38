package table

import (
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/pregclass/internal/model"
)

// ToFrame converts a result into a DataFrame: the caller's entity columns,
// then one bool column per label, then one int column per score column.
// It fails when an entity column name collides with a result column.
func ToFrame(res *model.Result, cols Columns) (dataframe.DataFrame, error) {
	if err := checkOutputNames(res, cols); err != nil {
		return dataframe.DataFrame{}, err
	}
	keyParts := len(cols.Entity)
	n := len(res.Rows)

	keys := make([][]string, keyParts)
	for p := range keys {
		keys[p] = make([]string, n)
	}
	flags := make([][]bool, len(res.Labels))
	for l := range flags {
		flags[l] = make([]bool, n)
	}
	scores := make([][]int, len(res.ScoreColumns))
	for c := range scores {
		scores[c] = make([]int, n)
	}

	for i, row := range res.Rows {
		parts := row.Entity.Parts(keyParts)
		for p := range parts {
			keys[p][i] = parts[p]
		}
		for l := range res.Labels {
			flags[l][i] = row.Flags[l]
		}
		for c := range res.ScoreColumns {
			scores[c][i] = row.Scores[c]
		}
	}

	out := make([]series.Series, 0, keyParts+len(flags)+len(scores))
	for p := range keys {
		out = append(out, series.New(keys[p], series.String, cols.Entity[p]))
	}
	for l, label := range res.Labels {
		out = append(out, series.New(flags[l], series.Bool, label))
	}
	for c, name := range res.ScoreColumns {
		out = append(out, series.New(scores[c], series.Int, name))
	}

	df := dataframe.New(out...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("build result frame: %w", df.Err)
	}
	return df, nil
}

// checkOutputNames rejects entity column names that repeat or that equal a
// label or score column of res.
func checkOutputNames(res *model.Result, cols Columns) error {
	taken := make(map[string]struct{}, len(res.Labels)+len(res.ScoreColumns))
	for _, n := range res.Labels {
		taken[n] = struct{}{}
	}
	for _, n := range res.ScoreColumns {
		taken[n] = struct{}{}
	}
	seen := make(map[string]struct{}, len(cols.Entity))
	for _, n := range cols.Entity {
		if _, ok := taken[n]; ok {
			return fmt.Errorf("entity column %q collides with a %s output column; rename it in the column mapping", n, res.Product)
		}
		if _, ok := seen[n]; ok {
			return fmt.Errorf("entity column %q mapped twice", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// Write stores df at path in the given format (inferred from the extension
// when empty).
func Write(df dataframe.DataFrame, path, format string) error {
	if format == "" {
		f, err := FormatOf(path)
		if err != nil {
			return err
		}
		format = f
	}
	switch format {
	case FormatCSV:
		return WriteCSV(df, path)
	case FormatParquet:
		return WriteParquet(df, path)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// WriteCSV writes df with a header row.
func WriteCSV(df dataframe.DataFrame, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

// WriteParquet writes df with a schema derived from its column types:
// strings become UTF8 byte arrays, bools booleans, ints INT64.
func WriteParquet(df dataframe.DataFrame, path string) error {
	names := df.Names()
	group := make(parquet.Group, len(names))
	for i, t := range df.Types() {
		switch t {
		case series.Bool:
			group[names[i]] = parquet.Leaf(parquet.BooleanType)
		case series.Int:
			group[names[i]] = parquet.Int(64)
		default:
			group[names[i]] = parquet.String()
		}
	}
	schema := parquet.NewSchema("result", group)

	// Group fields are ordered by name in the schema, so each DataFrame
	// column is placed by its leaf index.
	leaf := make([]int, len(names))
	for i, n := range names {
		col, ok := schema.Lookup(n)
		if !ok {
			return fmt.Errorf("column %q missing from parquet schema", n)
		}
		leaf[i] = col.ColumnIndex
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	w := parquet.NewWriter(f, schema)

	nrow := df.Nrow()
	cols := make([]series.Series, len(names))
	for i, n := range names {
		cols[i] = df.Col(n)
	}
	types := df.Types()

	batch := make([]parquet.Row, 0, readBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := w.WriteRows(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for r := 0; r < nrow; r++ {
		row := make(parquet.Row, len(names))
		for i := range names {
			elem := cols[i].Elem(r)
			var v parquet.Value
			switch types[i] {
			case series.Bool:
				b, _ := elem.Bool()
				v = parquet.ValueOf(b)
			case series.Int:
				n, _ := elem.Int()
				v = parquet.ValueOf(int64(n))
			default:
				v = parquet.ValueOf(elem.String())
			}
			row[leaf[i]] = v.Level(0, 0, leaf[i])
		}
		batch = append(batch, row)
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				f.Close()
				return fmt.Errorf("write parquet rows: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		f.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Close()
}
