package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonyguard/pkg/models"
)

// Format identifies a tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options tunes reading and writing. Zero values pick the defaults.
type Options struct {
	Delimiter string `json:"delimiter"`
	NullValue string `json:"null_value"`
	// Precision fixes the number of decimals written for numbers. Zero
	// means the shortest exact representation.
	Precision int  `json:"precision"`
	Pretty    bool `json:"pretty"`
}

// DefaultOptions returns comma-separated output with empty nulls and exact
// numbers.
func DefaultOptions() Options {
	return Options{Delimiter: ","}
}

// Exporter reads and writes datasets in one or more formats.
type Exporter interface {
	Name() string
	SupportedFormats() []Format
	Export(ctx context.Context, writer io.Writer, dataset *models.Dataset, options Options) error
	Import(ctx context.Context, reader io.Reader, options Options) (*models.Dataset, error)
	ValidateOptions(options Options) error
}

// ExportEngine dispatches dataset IO to the registered exporters.
type ExportEngine struct {
	logger    *logrus.Logger
	mu        sync.RWMutex
	exporters map[Format]Exporter
}

// NewExportEngine creates an engine with the CSV and JSON exporters
// registered.
func NewExportEngine(logger *logrus.Logger) *ExportEngine {
	if logger == nil {
		logger = logrus.New()
	}
	ee := &ExportEngine{
		logger:    logger,
		exporters: make(map[Format]Exporter),
	}
	ee.RegisterExporter(&CSVExporter{})
	ee.RegisterExporter(&JSONExporter{})
	return ee
}

// RegisterExporter registers an exporter for every format it supports.
func (ee *ExportEngine) RegisterExporter(exporter Exporter) {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	for _, format := range exporter.SupportedFormats() {
		ee.exporters[format] = exporter
	}
}

// GetSupportedFormats returns the registered formats in name order.
func (ee *ExportEngine) GetSupportedFormats() []Format {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	formats := make([]Format, 0, len(ee.exporters))
	for f := range ee.exporters {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

func (ee *ExportEngine) exporterFor(format Format) (Exporter, error) {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	exporter, ok := ee.exporters[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return exporter, nil
}

// Export writes the dataset in the given format.
func (ee *ExportEngine) Export(ctx context.Context, dataset *models.Dataset, format Format, writer io.Writer, options Options) error {
	exporter, err := ee.exporterFor(format)
	if err != nil {
		return err
	}
	if err := exporter.ValidateOptions(options); err != nil {
		return fmt.Errorf("invalid export options: %w", err)
	}
	return exporter.Export(ctx, writer, dataset, options)
}

// Import reads a dataset in the given format.
func (ee *ExportEngine) Import(ctx context.Context, reader io.Reader, format Format, options Options) (*models.Dataset, error) {
	exporter, err := ee.exporterFor(format)
	if err != nil {
		return nil, err
	}
	if err := exporter.ValidateOptions(options); err != nil {
		return nil, fmt.Errorf("invalid import options: %w", err)
	}
	return exporter.Import(ctx, reader, options)
}

// ReadFile loads a dataset, picking the format from the file extension.
func (ee *ExportEngine) ReadFile(ctx context.Context, path string, options Options) (*models.Dataset, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	dataset, err := ee.Import(ctx, file, format, options)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	ee.logger.WithFields(logrus.Fields{
		"path":    path,
		"format":  format,
		"rows":    dataset.Len(),
		"columns": len(dataset.Columns),
	}).Debug("Loaded dataset")

	return dataset, nil
}

// WriteFile stores a dataset, picking the format from the file extension.
// A path of "-" writes CSV to stdout.
func (ee *ExportEngine) WriteFile(ctx context.Context, path string, dataset *models.Dataset, options Options) error {
	if path == "-" || path == "" {
		return ee.Export(ctx, dataset, FormatCSV, os.Stdout, options)
	}

	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	if err := ee.Export(ctx, dataset, format, file, options); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	ee.logger.WithFields(logrus.Fields{
		"path":   path,
		"format": format,
		"rows":   dataset.Len(),
	}).Debug("Wrote dataset")

	return file.Close()
}

// FormatForPath maps a file extension to a format.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("cannot infer format from extension of %q", path)
	}
}
