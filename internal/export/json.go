package export

import (
	"encoding/json"
	"time"
)

// SchemaVersion identifies the export envelope layout. Bump on any breaking
// change to the exported document shape.
const SchemaVersion = "1.0"

// Envelope wraps an exported document with enough metadata for a consumer
// to validate what it received and when.
type Envelope struct {
	SchemaVersion string    `json:"schema_version"`
	Kind          string    `json:"kind"`
	ExportedAt    time.Time `json:"exported_at"`
	Data          any       `json:"data"`
}

// Marshal wraps data in a versioned envelope and renders indented JSON,
// suitable for audit hand-off.
func Marshal(kind string, exportedAt time.Time, data any) ([]byte, error) {
	return json.MarshalIndent(Envelope{
		SchemaVersion: SchemaVersion,
		Kind:          kind,
		ExportedAt:    exportedAt,
		Data:          data,
	}, "", "  ")
}
