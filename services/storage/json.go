package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"sjsage522/classifiedworker/pkg/errors"
)

// JSONWriter writes indented UTF-8 JSON documents. Non-ASCII text is kept
// as is and HTML characters are not escaped.
type JSONWriter struct{}

// NewJSONWriter creates a JSON writer
func NewJSONWriter() *JSONWriter {
	return &JSONWriter{}
}

// Write encodes v to path, creating the parent directory. The file is
// written to a temporary name and renamed so readers never see a partial
// document.
func (w *JSONWriter) Write(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.NewStorage(path, "failed to encode JSON", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewStorage(path, "could not create output dir", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return errors.NewStorage(path, "could not write file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.NewStorage(path, "could not rename file", err)
	}
	return nil
}
