package placeholder

import (
	"fmt"
	"strings"
)

// Kind selects how a binding is applied to the document
type Kind string

// Binding kinds
const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Directory names where an image binding looks up its file
type Directory string

// Image directories
const (
	DirSignatures Directory = "signatures"
	DirLeaders    Directory = "leaders"
)

// Binding maps one template token to a record field
type Binding struct {
	Token     string    `mapstructure:"token" json:"token"`
	Field     string    `mapstructure:"field" json:"field"`
	Kind      Kind      `mapstructure:"kind" json:"kind"`
	Fallback  []string  `mapstructure:"fallback" json:"fallback,omitempty"`
	Transform string    `mapstructure:"transform" json:"transform,omitempty"`
	Separator string    `mapstructure:"separator" json:"separator,omitempty"`
	Part      int       `mapstructure:"part" json:"part,omitempty"`
	Required  bool      `mapstructure:"required" json:"required,omitempty"`
	Directory Directory `mapstructure:"directory" json:"directory,omitempty"`
	Width     float64   `mapstructure:"width" json:"width,omitempty"`
	Label     string    `mapstructure:"label" json:"label,omitempty"`
}

// IsImage reports whether the binding embeds a picture
func (b Binding) IsImage() bool {
	return b.Kind == KindImage
}

// AssetLabel is the noun used in "Falta imagen de ..." messages
func (b Binding) AssetLabel() string {
	if b.Label != "" {
		return b.Label
	}
	return strings.ToLower(b.Field)
}

// Map is an ordered set of bindings applied to every record
type Map struct {
	Name     string    `mapstructure:"name" json:"name"`
	Bindings []Binding `mapstructure:"bindings" json:"bindings"`
}

// Validate checks tokens are unique and every binding is usable
func (m Map) Validate() error {
	if len(m.Bindings) == 0 {
		return fmt.Errorf("placeholder map %q has no bindings", m.Name)
	}
	seen := make(map[string]bool, len(m.Bindings))
	for i, b := range m.Bindings {
		if b.Token == "" {
			return fmt.Errorf("binding %d: token is required", i)
		}
		if seen[b.Token] {
			return fmt.Errorf("binding %d: duplicate token %s", i, b.Token)
		}
		seen[b.Token] = true

		if b.Field == "" {
			return fmt.Errorf("binding %s: field is required", b.Token)
		}
		switch b.Kind {
		case KindText:
			if _, ok := transforms[b.Transform]; !ok {
				return fmt.Errorf("binding %s: unknown transform %q", b.Token, b.Transform)
			}
			if b.Part < 0 {
				return fmt.Errorf("binding %s: part must not be negative", b.Token)
			}
		case KindImage:
			if b.Directory != DirSignatures && b.Directory != DirLeaders {
				return fmt.Errorf("binding %s: unknown directory %q", b.Token, b.Directory)
			}
			if b.Width < 0 {
				return fmt.Errorf("binding %s: width must not be negative", b.Token)
			}
		default:
			return fmt.Errorf("binding %s: unknown kind %q", b.Token, b.Kind)
		}
	}
	return nil
}

// Normalize fills defaults left empty in hand-written bindings
func (m Map) Normalize() Map {
	out := Map{Name: m.Name, Bindings: make([]Binding, len(m.Bindings))}
	for i, b := range m.Bindings {
		if b.Kind == "" {
			b.Kind = KindText
		}
		if b.Kind == KindImage && b.Directory == "" {
			b.Directory = DirSignatures
		}
		b.Transform = strings.ToLower(strings.TrimSpace(b.Transform))
		out.Bindings[i] = b
	}
	return out
}

// RequiredColumns lists, for every binding, the columns that can supply it:
// the primary field followed by its fallbacks. A workbook needs at least one
// column of each set. Sets are in map order and without repeats.
func (m Map) RequiredColumns() [][]string {
	var sets [][]string
	seen := make(map[string]bool)
	for _, b := range m.Bindings {
		set := append([]string{b.Field}, b.Fallback...)
		key := strings.Join(set, "\x00")
		if !seen[key] {
			seen[key] = true
			sets = append(sets, set)
		}
	}
	return sets
}

// TextTokens lists the tokens of text bindings
func (m Map) TextTokens() []string {
	var tokens []string
	for _, b := range m.Bindings {
		if !b.IsImage() {
			tokens = append(tokens, b.Token)
		}
	}
	return tokens
}

// UsesDirectory reports whether any image binding reads from dir
func (m Map) UsesDirectory(dir Directory) bool {
	for _, b := range m.Bindings {
		if b.IsImage() && b.Directory == dir {
			return true
		}
	}
	return false
}
