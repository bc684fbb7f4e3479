// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes the records as stored, so an export can be read back
// by other tools. Options do not filter it.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	Exported time.Time        `json:"exported"`
	Count    int              `json:"count"`
	Answers  []storage.Record `json:"answers"`
}

// Export converts records to JSON.
func (e *JSONExporter) Export(records []storage.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return json.MarshalIndent(jsonDocument{
		Exported: time.Now().UTC(),
		Count:    len(records),
		Answers:  oldestFirst(records),
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
