package store

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const exportVersion = 1

type ExportBundle struct {
	Version       int          `json:"version" yaml:"version"`
	ExportedAt    time.Time    `json:"exported_at" yaml:"exported_at"`
	Server        string       `json:"server" yaml:"server"`
	Conversations []Transcript `json:"conversations" yaml:"conversations"`
}

func NewExportBundle(server string, transcripts []Transcript) ExportBundle {
	if transcripts == nil {
		transcripts = []Transcript{}
	}
	return ExportBundle{
		Version:       exportVersion,
		ExportedAt:    time.Now().UTC(),
		Server:        server,
		Conversations: transcripts,
	}
}

// WriteExport encodes bundle as "json" (default) or "yaml".
func WriteExport(w io.Writer, format string, bundle ExportBundle) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(bundle)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(bundle); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q (use json or yaml)", format)
	}
}

// ReadExport decodes a bundle written by WriteExport in either format.
func ReadExport(r io.Reader) (ExportBundle, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return ExportBundle{}, err
	}
	var bundle ExportBundle
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		err = json.Unmarshal(raw, &bundle)
	} else {
		err = yaml.Unmarshal(raw, &bundle)
	}
	if err != nil {
		return ExportBundle{}, fmt.Errorf("decode export: %w", err)
	}
	if bundle.Version != exportVersion {
		return ExportBundle{}, fmt.Errorf("unsupported export version %d", bundle.Version)
	}
	return bundle, nil
}
