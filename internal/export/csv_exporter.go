package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/inferloop/anonyguard/pkg/models"
)

// CSVExporter implements CSV import and export
type CSVExporter struct{}

// Name returns the exporter name
func (ce *CSVExporter) Name() string {
	return "csv"
}

// SupportedFormats returns supported formats
func (ce *CSVExporter) SupportedFormats() []Format {
	return []Format{FormatCSV}
}

// ValidateOptions validates CSV options
func (ce *CSVExporter) ValidateOptions(options Options) error {
	if options.Delimiter != "" && len(options.Delimiter) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character")
	}
	return nil
}

// Export writes a header row followed by one record per dataset row, in
// column order.
func (ce *CSVExporter) Export(ctx context.Context, writer io.Writer, dataset *models.Dataset, options Options) error {
	csvWriter := csv.NewWriter(writer)
	if options.Delimiter != "" {
		csvWriter.Comma = rune(options.Delimiter[0])
	}

	if err := csvWriter.Write(dataset.Columns); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	record := make([]string, len(dataset.Columns))
	for i, row := range dataset.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, col := range dataset.Columns {
			record[j] = FormatCell(row[col], options)
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// Import reads a CSV file whose first record is the header. Cell types are
// inferred per cell by ParseCell.
func (ce *CSVExporter) Import(ctx context.Context, reader io.Reader, options Options) (*models.Dataset, error) {
	csvReader := csv.NewReader(reader)
	if options.Delimiter != "" {
		csvReader.Comma = rune(options.Delimiter[0])
	}

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	rows := make([]models.Row, 0)
	for line := 2; ; line++ {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row := make(models.Row, len(columns))
		for i, col := range columns {
			row[col] = ParseCell(record[i], options.NullValue)
		}
		rows = append(rows, row)
	}

	return models.NewDataset(columns, rows)
}

// ParseCell converts a text cell into a dataset value: the null marker or
// an empty cell becomes nil, finite numbers become float64, true/false
// become bool and anything else becomes a string. Surrounding whitespace
// is dropped in every case.
func ParseCell(s, nullValue string) interface{} {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || (nullValue != "" && trimmed == nullValue) {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	return trimmed
}

// FormatCell renders a dataset value as CSV text.
func FormatCell(v interface{}, options Options) string {
	switch val := v.(type) {
	case nil:
		return options.NullValue
	case float64:
		if options.Precision > 0 {
			return strconv.FormatFloat(val, 'f', options.Precision, 64)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
