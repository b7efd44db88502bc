package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HeaderSchemaVersion tracks the schema version for replay header documents.
const HeaderSchemaVersion = 1

// Header identifies the session and level a bundle was recorded from.
type Header struct {
	SchemaVersion int     `json:"schema_version"`
	SessionID     string  `json:"session_id"`
	Level         string  `json:"level"`
	TickRate      float64 `json:"tick_rate,omitempty"`
	FilePointer   string  `json:"file_pointer"`
}

// Validate ensures the header carries enough to locate and label the bundle.
func (h Header) Validate() error {
	var problems []string
	if h.SchemaVersion <= 0 {
		problems = append(problems, "schema_version must be positive")
	}
	if strings.TrimSpace(h.SessionID) == "" {
		problems = append(problems, "session_id must not be empty")
	}
	if strings.TrimSpace(h.FilePointer) == "" {
		problems = append(problems, "file_pointer must not be empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid replay header: %s", strings.Join(problems, "; "))
	}
	return nil
}

// WriteHeader persists the supplied header to the provided file path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and validates a replay header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, fmt.Errorf("decode header: %w", err)
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
