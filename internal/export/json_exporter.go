package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/inferloop/anonyguard/pkg/models"
)

// JSONExporter reads and writes a JSON array of row objects.
type JSONExporter struct{}

// Name returns the exporter name
func (je *JSONExporter) Name() string {
	return "json"
}

// SupportedFormats returns supported formats
func (je *JSONExporter) SupportedFormats() []Format {
	return []Format{FormatJSON}
}

// ValidateOptions validates JSON options
func (je *JSONExporter) ValidateOptions(options Options) error {
	return nil
}

// Export writes rows as objects whose keys follow the dataset column order.
// NaN and infinities have no JSON form and are written as null.
func (je *JSONExporter) Export(ctx context.Context, writer io.Writer, dataset *models.Dataset, options Options) error {
	var buf bytes.Buffer
	buf.WriteString("[")

	for i, row := range dataset.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if i > 0 {
			buf.WriteString(",")
		}
		if options.Pretty {
			buf.WriteString("\n  ")
		}
		buf.WriteString("{")
		for j, col := range dataset.Columns {
			if j > 0 {
				buf.WriteString(",")
				if options.Pretty {
					buf.WriteString(" ")
				}
			}
			key, err := json.Marshal(col)
			if err != nil {
				return fmt.Errorf("failed to encode column name: %w", err)
			}
			value, err := json.Marshal(jsonValue(row[col]))
			if err != nil {
				return fmt.Errorf("failed to encode row %d column %s: %w", i, col, err)
			}
			buf.Write(key)
			buf.WriteString(":")
			if options.Pretty {
				buf.WriteString(" ")
			}
			buf.Write(value)
		}
		buf.WriteString("}")
	}

	if options.Pretty && dataset.Len() > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")

	_, err := writer.Write(buf.Bytes())
	return err
}

func jsonValue(v interface{}) interface{} {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}

// Import reads a JSON array of flat objects. Columns are taken from the
// key order of the first object; every other object must carry the same
// keys.
func (je *JSONExporter) Import(ctx context.Context, reader io.Reader, options Options) (*models.Dataset, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(reader).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON array: %w", err)
	}

	if len(raw) == 0 {
		return models.NewDataset(nil, nil)
	}

	columns, err := objectKeys(raw[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON object 0: %w", err)
	}

	rows := make([]models.Row, 0, len(raw))
	for i, msg := range raw {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(msg, &obj); err != nil {
			return nil, fmt.Errorf("failed to decode JSON object %d: %w", i, err)
		}
		row := make(models.Row, len(obj))
		for k, v := range obj {
			switch v.(type) {
			case nil, float64, bool, string:
				row[k] = v
			default:
				return nil, fmt.Errorf("JSON object %d key %q: nested values are not supported", i, k)
			}
		}
		rows = append(rows, row)
	}

	return models.NewDataset(columns, rows)
}

func objectKeys(msg json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(msg))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected an object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key")
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
