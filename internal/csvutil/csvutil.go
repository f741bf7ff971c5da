// Package csvutil loads loosely formatted CSV exports into gota frames.
package csvutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadRecords reads every CSV record, header first. A leading byte-order mark
// is dropped, short rows are padded with empty cells and repeated header
// names after the first become name.1, name.2 and so on. An input without a
// header yields no records.
func ReadRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	records[0] = dedupeHeader(records[0])
	width := len(records[0])
	for i := 1; i < len(records); i++ {
		switch n := len(records[i]); {
		case n < width:
			records[i] = append(records[i], make([]string, width-n)...)
		case n > width:
			return nil, fmt.Errorf("read csv: line %d: expected %d fields, saw %d", i+1, width, n)
		}
	}
	return records, nil
}

// Frame builds a DataFrame from records read by ReadRecords. A header
// without rows gives an empty frame with string columns.
func Frame(records [][]string, opts ...dataframe.LoadOption) (dataframe.DataFrame, error) {
	if len(records) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("read csv: no header")
	}
	if len(records) == 1 {
		cols := make([]series.Series, len(records[0]))
		for i, name := range records[0] {
			cols[i] = series.New([]string{}, series.String, name)
		}
		df := dataframe.New(cols...)
		return df, df.Err
	}

	opts = append([]dataframe.LoadOption{dataframe.HasHeader(true)}, opts...)
	df := dataframe.LoadRecords(records, opts...)
	if df.Err != nil {
		return df, fmt.Errorf("load csv: %w", df.Err)
	}
	return df, nil
}

// StringFrame reads r as an all-string frame with cell values kept verbatim.
func StringFrame(r io.Reader) (dataframe.DataFrame, error) {
	records, err := ReadRecords(r)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return Frame(records, StringOptions()...)
}

// StringOptions disables type detection and NaN rewriting.
func StringOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	}
}

func dedupeHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, name := range header {
		n := seen[name]
		seen[name] = n + 1
		if n == 0 {
			out[i] = name
			continue
		}
		out[i] = name + "." + strconv.Itoa(n)
	}
	return out
}
