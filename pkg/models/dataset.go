package models

import (
	"fmt"
)

// Row maps a column name to a scalar cell value. Cells hold float64, bool,
// string or nil once they have passed through NormalizeValue.
type Row map[string]interface{}

// Dataset is an ordered, immutable-by-convention table. Every transformation
// returns a new Dataset; callers must not mutate Rows in place.
type Dataset struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewDataset builds a dataset after checking that every row carries exactly
// the declared columns. Integer cells are normalised to float64.
func NewDataset(columns []string, rows []Row) (*Dataset, error) {
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		if col == "" {
			return nil, fmt.Errorf("column name cannot be empty")
		}
		if _, dup := seen[col]; dup {
			return nil, fmt.Errorf("duplicate column %q", col)
		}
		seen[col] = struct{}{}
	}

	normalized := make([]Row, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(columns))
		}
		out := make(Row, len(columns))
		for col, value := range row {
			if _, ok := seen[col]; !ok {
				return nil, fmt.Errorf("row %d has unknown column %q", i, col)
			}
			out[col] = NormalizeValue(value)
		}
		normalized[i] = out
	}

	cols := make([]string, len(columns))
	copy(cols, columns)

	return &Dataset{Columns: cols, Rows: normalized}, nil
}

// NormalizeValue converts every numeric Go type to float64 so that 30 and
// 30.0 land in the same equivalence class.
func NormalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// HasColumn reports whether name is part of the schema.
func (d *Dataset) HasColumn(name string) bool {
	for _, col := range d.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// ColumnValues returns the cells of one column in row order.
func (d *Dataset) ColumnValues(name string) []interface{} {
	values := make([]interface{}, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[name]
	}
	return values
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	indices := make([]int, len(d.Rows))
	for i := range indices {
		indices[i] = i
	}
	return d.Select(indices)
}

// Select returns a new dataset with the given rows, in the given order.
func (d *Dataset) Select(indices []int) *Dataset {
	cols := make([]string, len(d.Columns))
	copy(cols, d.Columns)

	rows := make([]Row, 0, len(indices))
	for _, idx := range indices {
		rows = append(rows, d.Rows[idx].clone())
	}
	return &Dataset{Columns: cols, Rows: rows}
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
