package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultTargetColumn is the outcome column of heart.csv.
const DefaultTargetColumn = "target"

// Dataset is the in-memory training table.
type Dataset struct {
	Features [][]float64
	Labels   []int
}

func (d *Dataset) Len() int {
	return len(d.Labels)
}

// ClassCounts reports how many rows carry each label.
func (d *Dataset) ClassCounts() map[int]int {
	return classCounts(d.Labels)
}

// LoadDataset reads a comma-delimited file with a header row.
func LoadDataset(path, targetColumn string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ds, err := ReadDataset(file, targetColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// ReadDataset parses the feature columns named by FeatureNames plus the target column.
// Columns are matched by header name so file column order does not matter.
func ReadDataset(r io.Reader, targetColumn string) (*Dataset, error) {
	if targetColumn == "" {
		targetColumn = DefaultTargetColumn
	}

	// Strip a UTF-8 BOM if the file was exported by a spreadsheet tool.
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	names := FeatureNames()
	columns := make([]int, len(names))
	for i, name := range names {
		col, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		columns[i] = col
	}
	targetIdx, ok := index[targetColumn]
	if !ok {
		return nil, fmt.Errorf("missing target column %q", targetColumn)
	}

	ds := &Dataset{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := make([]float64, len(columns))
		for i, col := range columns {
			value, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, names[i], err)
			}
			row[i] = value
		}

		target, err := strconv.ParseFloat(strings.TrimSpace(record[targetIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d column %q: %w", line, targetColumn, err)
		}
		if target != LabelNoDisease && target != LabelDisease {
			return nil, fmt.Errorf("line %d: target must be 0 or 1, got %v", line, target)
		}

		ds.Features = append(ds.Features, row)
		ds.Labels = append(ds.Labels, int(target))
	}

	if ds.Len() == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return ds, nil
}
