// Package source reads student rosters from files.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
	"github.com/llm-d/llm-d-group-allocator/internal/logging"
)

// ErrUnsupportedFormat is returned for roster formats no source can read.
var ErrUnsupportedFormat = errors.New("unsupported roster format")

// Format is a roster file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Source is the interface for pluggable roster sources.
type Source interface {
	// Name identifies the source in logs, e.g. "csv:roster.csv".
	Name() string

	// Load returns the raw records in file order. Records are not
	// validated beyond what decoding requires.
	Load(ctx context.Context) ([]v1alpha1.StudentRecord, error)
}

// DetectFormat infers the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: cannot infer format of %q", ErrUnsupportedFormat, path)
	}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatCSV, FormatXLSX, FormatYAML, FormatJSON:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Option configures a file source.
type Option func(*fileSource)

// WithSheet selects the worksheet of an XLSX roster; the first sheet is
// read by default.
func WithSheet(name string) Option {
	return func(s *fileSource) { s.sheet = name }
}

// New is a factory that creates a Source reading path. An empty format is
// inferred from the extension.
func New(path string, format Format, opts ...Option) (Source, error) {
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}
	s := &fileSource{path: path, format: format}
	for _, opt := range opts {
		opt(s)
	}
	switch format {
	case FormatCSV:
		s.decode = DecodeCSV
	case FormatXLSX:
		s.decode = func(r io.Reader) ([]v1alpha1.StudentRecord, error) { return DecodeXLSX(r, s.sheet) }
	case FormatYAML, FormatJSON:
		s.decode = DecodeYAML
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return s, nil
}

type fileSource struct {
	path   string
	format Format
	sheet  string
	decode func(io.Reader) ([]v1alpha1.StudentRecord, error)
}

func (s *fileSource) Name() string {
	return string(s.format) + ":" + s.path
}

func (s *fileSource) Load(ctx context.Context) ([]v1alpha1.StudentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer f.Close()

	records, err := s.decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", s.path, err)
	}
	logr.FromContextOrDiscard(ctx).V(logging.DEBUG).Info("Loaded roster", "source", s.Name(), "records", len(records))
	return records, nil
}
