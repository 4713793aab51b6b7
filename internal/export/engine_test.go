package export

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonyguard/pkg/models"
)

func sampleDataset(t *testing.T) *models.Dataset {
	t.Helper()
	ds, err := models.NewDataset([]string{"age", "city", "member", "note"}, []models.Row{
		{"age": 30, "city": "Oslo", "member": true, "note": nil},
		{"age": 41.5, "city": "Bergen", "member": false, "note": "a,b"},
	})
	require.NoError(t, err)
	return ds
}

func TestCSVExportImport(t *testing.T) {
	engine := NewExportEngine(nil)
	ds := sampleDataset(t)

	var buf bytes.Buffer
	require.NoError(t, engine.Export(context.Background(), ds, FormatCSV, &buf, DefaultOptions()))
	assert.Equal(t, "age,city,member,note\n30,Oslo,true,\n41.5,Bergen,false,\"a,b\"\n", buf.String())

	back, err := engine.Import(context.Background(), &buf, FormatCSV, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ds, back)
}

func TestCSVOptions(t *testing.T) {
	engine := NewExportEngine(nil)
	ds := sampleDataset(t)

	var buf bytes.Buffer
	opts := Options{Delimiter: ";", NullValue: "NA", Precision: 2}
	require.NoError(t, engine.Export(context.Background(), ds, FormatCSV, &buf, opts))
	assert.Equal(t, "age;city;member;note\n30.00;Oslo;true;NA\n41.50;Bergen;false;a,b\n", buf.String())

	back, err := engine.Import(context.Background(), strings.NewReader(buf.String()), FormatCSV, opts)
	require.NoError(t, err)
	assert.Nil(t, back.Rows[0]["note"])
	assert.Equal(t, 30.0, back.Rows[0]["age"])

	err = engine.Export(context.Background(), ds, FormatCSV, &buf, Options{Delimiter: "::"})
	assert.Error(t, err)
}

func TestCSVImportErrors(t *testing.T) {
	engine := NewExportEngine(nil)

	_, err := engine.Import(context.Background(), strings.NewReader(""), FormatCSV, DefaultOptions())
	assert.Error(t, err)

	_, err = engine.Import(context.Background(), strings.NewReader("a,b\n1\n"), FormatCSV, DefaultOptions())
	assert.Error(t, err)

	_, err = engine.Import(context.Background(), strings.NewReader("a,a\n1,2\n"), FormatCSV, DefaultOptions())
	assert.Error(t, err)

	_, err = engine.Import(context.Background(), strings.NewReader("a\n1\n"), Format("xlsx"), DefaultOptions())
	assert.Error(t, err)
}

func TestCSVImportTrimsTextCells(t *testing.T) {
	engine := NewExportEngine(nil)

	ds, err := engine.Import(context.Background(), strings.NewReader("gender,city\nM,Oslo\n M ,Oslo \n"), FormatCSV, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ds.Rows[0], ds.Rows[1])
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"", nil},
		{"  ", nil},
		{"NULL", nil},
		{"42", 42.0},
		{"-3.5", -3.5},
		{"1e3", 1000.0},
		{"TRUE", true},
		{"false", false},
		{"NaN", "NaN"},
		{"Inf", "Inf"},
		{"Oslo", "Oslo"},
		{" M ", "M"},
		{"\tNew York ", "New York"},
		{"00123", 123.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCell(tt.in, "NULL"), "input %q", tt.in)
	}
}

func TestFormatCell(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "", FormatCell(nil, opts))
	assert.Equal(t, "0.1", FormatCell(0.1, opts))
	assert.Equal(t, "1e+21", FormatCell(1e21, opts))
	assert.Equal(t, "true", FormatCell(true, opts))
	assert.Equal(t, "x", FormatCell("x", opts))
	assert.Equal(t, "3.142", FormatCell(math.Pi, Options{Precision: 3}))
}

func TestJSONExportImport(t *testing.T) {
	engine := NewExportEngine(nil)
	ds := sampleDataset(t)

	var buf bytes.Buffer
	require.NoError(t, engine.Export(context.Background(), ds, FormatJSON, &buf, DefaultOptions()))
	assert.Equal(t,
		`[{"age":30,"city":"Oslo","member":true,"note":null},{"age":41.5,"city":"Bergen","member":false,"note":"a,b"}]`+"\n",
		buf.String())

	back, err := engine.Import(context.Background(), &buf, FormatJSON, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ds, back)
}

func TestJSONImportKeepsKeyOrder(t *testing.T) {
	engine := NewExportEngine(nil)

	ds, err := engine.Import(context.Background(),
		strings.NewReader(`[{"zip": "1000", "age": 30}, {"age": 40, "zip": "2000"}]`),
		FormatJSON, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"zip", "age"}, ds.Columns)
	assert.Equal(t, 40.0, ds.Rows[1]["age"])
}

func TestJSONExportWritesNaNAsNull(t *testing.T) {
	ds, err := models.NewDataset([]string{"x"}, []models.Row{{"x": math.NaN()}, {"x": math.Inf(-1)}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewExportEngine(nil).Export(context.Background(), ds, FormatJSON, &buf, Options{Pretty: true}))
	assert.Equal(t, "[\n  {\"x\": null},\n  {\"x\": null}\n]\n", buf.String())
}

func TestJSONImportErrors(t *testing.T) {
	engine := NewExportEngine(nil)

	_, err := engine.Import(context.Background(), strings.NewReader(`{"a": 1}`), FormatJSON, DefaultOptions())
	assert.Error(t, err)

	_, err = engine.Import(context.Background(), strings.NewReader(`[{"a": {"b": 1}}]`), FormatJSON, DefaultOptions())
	assert.Error(t, err)

	_, err = engine.Import(context.Background(), strings.NewReader(`[{"a": 1}, {"b": 2}]`), FormatJSON, DefaultOptions())
	assert.Error(t, err)

	ds, err := engine.Import(context.Background(), strings.NewReader(`[]`), FormatJSON, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
}

func TestReadWriteFile(t *testing.T) {
	engine := NewExportEngine(nil)
	ds := sampleDataset(t)
	dir := t.TempDir()

	for _, name := range []string{"data.csv", "data.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, engine.WriteFile(context.Background(), path, ds, DefaultOptions()))

		back, err := engine.ReadFile(context.Background(), path, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, ds, back, name)
	}

	_, err := engine.ReadFile(context.Background(), filepath.Join(dir, "missing.csv"), DefaultOptions())
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte("a\n"), 0o644))
	_, err = engine.ReadFile(context.Background(), filepath.Join(dir, "data.txt"), DefaultOptions())
	assert.Error(t, err)
}

func TestGetSupportedFormats(t *testing.T) {
	assert.Equal(t, []Format{FormatCSV, FormatJSON}, NewExportEngine(nil).GetSupportedFormats())
}

func TestFormatForPath(t *testing.T) {
	f, err := FormatForPath("/tmp/x.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = FormatForPath("noext")
	assert.Error(t, err)
}
