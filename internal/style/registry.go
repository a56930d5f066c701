// Package style maps raw citation style labels to the canonical keys used to
// select a reference's formatted-text column.
package style

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// ErrUnknownStyle is returned when a label does not resolve to a canonical key.
var ErrUnknownStyle = errors.New("unknown citation style")

// Normalizer turns a raw style label ("APA 7th edition") into a canonical key ("apa").
type Normalizer interface {
	Normalize(label string) (string, error)
}

// Style describes one canonical style.
type Style struct {
	Key     string   `yaml:"key"`
	Name    string   `yaml:"name"`
	Numeric bool     `yaml:"numeric"`
	Aliases []string `yaml:"aliases"`
}

type registryFile struct {
	Default string  `yaml:"default"`
	Styles  []Style `yaml:"styles"`
}

// Registry is built once at startup and is read-only afterwards.
type Registry struct {
	defaultKey string
	styles     map[string]Style
	aliases    map[string]string
}

var builtin = registryFile{
	Default: "apa",
	Styles: []Style{
		{Key: "apa", Name: "APA", Aliases: []string{"apa 7", "apa 7th", "apa 7th edition", "apa7"}},
		{Key: "mla", Name: "MLA", Aliases: []string{"mla 9", "mla 9th edition"}},
		{Key: "chicago", Name: "Chicago", Aliases: []string{"chicago author-date", "cmos", "chicago manual of style"}},
		{Key: "harvard", Name: "Harvard", Aliases: []string{"harvard referencing"}},
		{Key: "ieee", Name: "IEEE", Numeric: true},
		{Key: "vancouver", Name: "Vancouver", Numeric: true, Aliases: []string{"icmje"}},
		{Key: "ama", Name: "AMA", Numeric: true, Aliases: []string{"ama 11", "american medical association"}},
	},
}

// Default returns the registry with the built-in styles.
func Default() *Registry {
	r, err := build(builtin)
	if err != nil {
		panic(err)
	}
	return r
}

// Load reads a YAML registry file. An empty path yields the built-in registry.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read style registry: %w", err)
	}
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse style registry: %w", err)
	}
	return build(file)
}

func build(file registryFile) (*Registry, error) {
	if len(file.Styles) == 0 {
		return nil, fmt.Errorf("style registry has no styles")
	}
	r := &Registry{
		styles:  make(map[string]Style, len(file.Styles)),
		aliases: make(map[string]string),
	}
	for _, s := range file.Styles {
		key := fold(s.Key)
		if key == "" {
			return nil, fmt.Errorf("style %q has empty key", s.Name)
		}
		if _, exists := r.styles[key]; exists {
			return nil, fmt.Errorf("duplicate style key %q", key)
		}
		s.Key = key
		r.styles[key] = s
		r.aliases[key] = key
		if s.Name != "" {
			r.aliases[fold(s.Name)] = key
		}
		for _, alias := range s.Aliases {
			r.aliases[fold(alias)] = key
		}
	}
	r.defaultKey = fold(file.Default)
	if _, ok := r.styles[r.defaultKey]; !ok && r.defaultKey != "" {
		return nil, fmt.Errorf("default style %q is not registered", file.Default)
	}
	return r, nil
}

// Normalize resolves label to a canonical key. An empty label resolves to the
// registry default when one is configured.
func (r *Registry) Normalize(label string) (string, error) {
	folded := fold(label)
	if folded == "" {
		if r.defaultKey == "" {
			return "", fmt.Errorf("%w: empty label", ErrUnknownStyle)
		}
		return r.defaultKey, nil
	}
	if key, ok := r.aliases[folded]; ok {
		return key, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStyle, label)
}

// Lookup returns the style registered under a canonical key.
func (r *Registry) Lookup(key string) (Style, bool) {
	s, ok := r.styles[key]
	return s, ok
}

// Keys returns the canonical keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.styles))
	for key := range r.styles {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func fold(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}
