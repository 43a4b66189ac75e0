package placeholder

import (
	"fmt"
	"strings"

	"github.com/garyjia/actas-satisfaccion/internal/models"
	"github.com/garyjia/actas-satisfaccion/pkg/utils"
)

// ResolveText computes the replacement value of a text binding.
//
// The primary field and then each fallback are tried in order; the first
// non-empty one wins. A primary column missing from the record is an error
// unless a fallback column exists. An all-empty chain yields "" unless the
// binding is required.
func ResolveText(b Binding, rec models.InputRecord) (string, error) {
	v, err := lookup(b, rec)
	if err != nil {
		return "", err
	}
	if v.IsEmpty() {
		return "", nil
	}
	fn, ok := transforms[b.Transform]
	if !ok {
		return "", fmt.Errorf("%w: transformación desconocida %q", models.ErrMalformedValue, b.Transform)
	}
	out, err := fn(b, v.Text)
	if err != nil {
		return "", fmt.Errorf("%s: %w", b.Field, err)
	}
	return utils.SanitizeString(out), nil
}

// ResolveImageName returns the file name of an image binding. An empty
// result means the row names no file.
func ResolveImageName(b Binding, rec models.InputRecord) (string, error) {
	v, err := lookup(b, rec)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v.Text), nil
}

func lookup(b Binding, rec models.InputRecord) (models.Value, error) {
	found := false
	for _, name := range append([]string{b.Field}, b.Fallback...) {
		v, ok := rec.Lookup(name)
		if !ok {
			continue
		}
		found = true
		if !v.IsEmpty() {
			return v, nil
		}
	}
	if !found {
		return models.Value{}, fmt.Errorf("%w: la columna %s no existe", models.ErrMissingField, b.Field)
	}
	if b.Required {
		return models.Value{}, fmt.Errorf("%w: %s está vacío", models.ErrMissingField, b.Field)
	}
	return models.TextValue(""), nil
}
