package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatasetNormalizesNumbers(t *testing.T) {
	ds, err := NewDataset([]string{"a", "b"}, []Row{
		{"a": 1, "b": int64(2)},
		{"a": float32(1.5), "b": uint8(7)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, ds.Rows[0]["a"])
	assert.Equal(t, 2.0, ds.Rows[0]["b"])
	assert.Equal(t, 1.5, ds.Rows[1]["a"])
	assert.Equal(t, 7.0, ds.Rows[1]["b"])
}

func TestNewDatasetRejectsBadShape(t *testing.T) {
	_, err := NewDataset([]string{"a", "a"}, nil)
	assert.Error(t, err)

	_, err = NewDataset([]string{"a", ""}, nil)
	assert.Error(t, err)

	_, err = NewDataset([]string{"a", "b"}, []Row{{"a": 1}})
	assert.Error(t, err)

	_, err = NewDataset([]string{"a"}, []Row{{"b": 1}})
	assert.Error(t, err)
}

func TestSelectAndClone(t *testing.T) {
	ds, err := NewDataset([]string{"a"}, []Row{{"a": 1}, {"a": 2}, {"a": 3}})
	require.NoError(t, err)

	sub := ds.Select([]int{2, 0})
	assert.Equal(t, []interface{}{3.0, 1.0}, sub.ColumnValues("a"))

	sub.Rows[0]["a"] = 99.0
	assert.Equal(t, 3.0, ds.Rows[2]["a"])

	clone := ds.Clone()
	assert.Equal(t, ds, clone)
	clone.Columns[0] = "z"
	assert.Equal(t, "a", ds.Columns[0])
}

func TestNilDatasetLen(t *testing.T) {
	var ds *Dataset
	assert.Equal(t, 0, ds.Len())
}
