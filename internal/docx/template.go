package docx

import (
	"fmt"
	"os"
)

// Template holds the source package bytes so every record can start from a
// pristine copy.
type Template struct {
	path string
	data []byte
}

// LoadTemplate reads and validates a .docx template.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	if _, err := OpenBytes(data); err != nil {
		return nil, fmt.Errorf("invalid template %s: %w", path, err)
	}
	return &Template{path: path, data: data}, nil
}

// NewTemplate wraps package bytes already in memory.
func NewTemplate(data []byte) (*Template, error) {
	if _, err := OpenBytes(data); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	return &Template{data: data}, nil
}

// Path returns the file the template was loaded from, if any.
func (t *Template) Path() string {
	return t.path
}

// Instantiate returns a fresh, independent document.
func (t *Template) Instantiate() (*Document, error) {
	return OpenBytes(t.data)
}
