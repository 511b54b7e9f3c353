package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// CurrentBlobVersion is the envelope version written by EncodeBlob.
const CurrentBlobVersion = 1

// SessionBlob is the versioned envelope around the opaque per-project session
// payload (settings, chat history, open tabs). Data is never interpreted here.
type SessionBlob struct {
	Version int             `json:"version"`
	Writer  string          `json:"writer,omitempty"`
	SavedAt time.Time       `json:"saved_at,omitzero"`
	Data    json.RawMessage `json:"data,omitempty"`
}

const blobSchemaURL = "https://marginalia.dev/schemas/session-blob.json"

const blobSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "writer": {"type": "string"},
    "saved_at": {"type": "string", "format": "date-time"},
    "data": {}
  },
  "additionalProperties": false
}`

var blobSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(blobSchemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(blobSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(blobSchemaURL)
})

// EncodeBlob stamps the current version and serializes the envelope.
func EncodeBlob(b SessionBlob) (json.RawMessage, error) {
	b.Version = CurrentBlobVersion
	if len(bytes.TrimSpace(b.Data)) == 0 {
		b.Data = nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding session blob: %w", err)
	}
	return raw, nil
}

// DecodeBlob parses a stored blob. Payloads written before the envelope
// existed are migrated: the whole payload becomes Data at version 1.
func DecodeBlob(raw json.RawMessage) (SessionBlob, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return SessionBlob{Version: CurrentBlobVersion}, nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return SessionBlob{}, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}

	obj, ok := doc.(map[string]any)
	if !ok || !isEnvelope(obj) {
		return SessionBlob{Version: CurrentBlobVersion, Data: append(json.RawMessage(nil), raw...)}, nil
	}

	schema, err := blobSchema()
	if err != nil {
		return SessionBlob{}, fmt.Errorf("compiling blob schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return SessionBlob{}, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}

	var b SessionBlob
	if err := json.Unmarshal(raw, &b); err != nil {
		return SessionBlob{}, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	if b.Version > CurrentBlobVersion {
		return SessionBlob{}, fmt.Errorf("%w: %d", ErrUnsupportedBlobVersion, b.Version)
	}
	return b, nil
}

// isEnvelope distinguishes an envelope from a legacy payload: an envelope has
// a version key and nothing outside the envelope's own keys.
func isEnvelope(obj map[string]any) bool {
	if _, ok := obj["version"]; !ok {
		return false
	}
	for k := range obj {
		switch k {
		case "version", "writer", "saved_at", "data":
		default:
			return false
		}
	}
	return true
}
