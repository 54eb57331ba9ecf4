package output

import (
	"encoding/json"
	"io"
	"strings"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formatter writes listings (jobs, runs, report rows) to a writer.
type Formatter interface {
	Write(w io.Writer, data interface{}) error
}

// ParseFormat parses a format string
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatTable
	}
}

// NewFormatter creates a formatter; fields and labels only apply to tables.
func NewFormatter(format Format, fields []string, labels map[string]string) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{Fields: fields, FieldLabels: labels}
	}
}

// JSONFormatter formats output as indented JSON
type JSONFormatter struct{}

func (f *JSONFormatter) Write(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
