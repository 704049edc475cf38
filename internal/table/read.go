package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dimchansky/utfbom"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/parquet-go/parquet-go"
)

// Input formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

const readBatchSize = 1024

// FormatOf infers a file format from its extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("cannot infer format of %s; use .csv or .parquet", path)
}

// Read loads a CSV or Parquet file into a DataFrame of string columns.
func Read(path, format string) (dataframe.DataFrame, error) {
	if format == "" {
		f, err := FormatOf(path)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		format = f
	}
	switch format {
	case FormatCSV:
		return ReadCSV(path)
	case FormatParquet:
		return ReadParquet(path)
	}
	return dataframe.DataFrame{}, fmt.Errorf("unsupported input format %q", format)
}

// ReadCSV reads a CSV file with a header row. Every column is kept as
// string, verbatim: tokens such as NA are identifiers here, not missing
// values. A leading byte order mark is dropped.
func ReadCSV(path string) (dataframe.DataFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open csv file: %w", err)
	}

	df := dataframe.ReadCSV(utfbom.SkipOnly(bytes.NewReader(data)),
		dataframe.HasHeader(true), dataframe.DetectTypes(false), dataframe.NaNValues([]string{}))
	if df.Err != nil {
		// gota refuses a header with no rows; that is a valid empty input.
		if header, ok := headerOnly(data); ok {
			return emptyFrame(header), nil
		}
		return dataframe.DataFrame{}, fmt.Errorf("parse csv: %w", df.Err)
	}
	return df, nil
}

func headerOnly(data []byte) ([]string, bool) {
	r := csv.NewReader(utfbom.SkipOnly(bytes.NewReader(data)))
	header, err := r.Read()
	if err != nil || len(header) == 0 {
		return nil, false
	}
	if _, err := r.Read(); err != io.EOF {
		return nil, false
	}
	return header, true
}

func emptyFrame(names []string) dataframe.DataFrame {
	cols := make([]series.Series, len(names))
	for i, n := range names {
		cols[i] = series.New([]string{}, series.String, n)
	}
	return dataframe.New(cols...)
}

// ReadParquet reads the flat columns of a Parquet file as strings. Null
// values become empty strings.
func ReadParquet(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open parquet file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("stat parquet file: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open parquet: %w", err)
	}

	schema := pf.Schema()
	var names []string
	var leaves []int
	for _, field := range schema.Fields() {
		if !field.Leaf() {
			continue
		}
		leaf, ok := schema.Lookup(field.Name())
		if !ok {
			continue
		}
		names = append(names, field.Name())
		leaves = append(leaves, leaf.ColumnIndex)
	}
	if len(names) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("parquet file has no flat columns")
	}

	// slot maps a leaf column index to its position in names.
	slot := make(map[int]int, len(leaves))
	for i, idx := range leaves {
		slot[idx] = i
	}
	values := make([][]string, len(names))

	reader := parquet.NewReader(pf)
	defer reader.Close()

	buf := make([]parquet.Row, readBatchSize)
	for {
		n, readErr := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			cells := make([]string, len(names))
			for _, v := range row {
				if i, ok := slot[v.Column()]; ok {
					cells[i] = valueString(v)
				}
			}
			for i := range names {
				values[i] = append(values[i], cells[i])
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return dataframe.DataFrame{}, fmt.Errorf("read parquet rows: %w", readErr)
		}
	}

	cols := make([]series.Series, len(names))
	for i, n := range names {
		if values[i] == nil {
			values[i] = []string{}
		}
		cols[i] = series.New(values[i], series.String, n)
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("build frame: %w", df.Err)
	}
	return df, nil
}

func valueString(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	}
	return v.String()
}
