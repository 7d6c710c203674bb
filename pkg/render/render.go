// Package render writes analysis reports in the supported output formats.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

// Format names an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatMermaid  Format = "mermaid"
)

// ValidFormats lists the formats WriteReport accepts.
var ValidFormats = []Format{FormatJSON, FormatYAML, FormatMarkdown, FormatMermaid}

// ParseFormat maps a user-supplied name to a Format. "md" and "yml" are
// accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "mermaid":
		return FormatMermaid, nil
	}
	return "", fmt.Errorf("unknown output format %q (want one of %s)", s, joinFormats())
}

func joinFormats() string {
	names := make([]string, len(ValidFormats))
	for i, f := range ValidFormats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// WriteReport renders report to w in the given format.
func WriteReport(w io.Writer, report *models.Report, format Format) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("flush yaml report: %w", err)
		}
		return nil
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(report))
		return err
	case FormatMermaid:
		_, err := io.WriteString(w, Mermaid(report))
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}
