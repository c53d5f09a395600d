package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/batsim/internal/dynamo"
)

// Params is the parsed parameter mapping: domain -> parameter -> value.
// Domains are battery, electrolyte, anode, separator, and cathode.
type Params map[string]map[string]any

// LoadParams reads a yaml (.yaml, .yml) or toml (.toml) parameter file.
func LoadParams(path string) (Params, error) {
	raw := make(map[string]any)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported parameter file %q", dynamo.ErrConfig, path)
	}

	return FromMap(raw)
}

// FromMap converts a generic decoded document into Params.
func FromMap(raw map[string]any) (Params, error) {
	p := make(Params, len(raw))
	for domain, v := range raw {
		section, err := cast.ToStringMapE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: section %q is not a mapping", dynamo.ErrConfig, domain)
		}
		p[domain] = section
	}
	return p, nil
}

// Clone returns a deep copy so callers can override values without
// touching shared presets.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for domain, section := range p {
		out[domain] = cloneMap(section)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = cloneMap(sub)
			continue
		}
		out[k] = v
	}
	return out
}

// Get looks up a dotted path such as "anode.i0_deg".
func (p Params) Get(path string) (any, bool) {
	domain, key, ok := strings.Cut(path, ".")
	if !ok {
		return nil, false
	}
	section, ok := p[domain]
	if !ok {
		return nil, false
	}
	v, ok := section[key]
	return v, ok
}

// Set assigns a dotted path such as "anode.i0_deg". The domain must exist.
func (p Params) Set(path string, value any) error {
	domain, key, ok := strings.Cut(path, ".")
	if !ok || key == "" {
		return fmt.Errorf("%w: parameter path %q must be domain.key", dynamo.ErrConfig, path)
	}
	section, ok := p[domain]
	if !ok {
		return fmt.Errorf("%w: unknown domain %q", dynamo.ErrConfig, domain)
	}
	section[key] = value
	return nil
}

// Section returns the named domain.
func (p Params) Section(name string) (Section, error) {
	values, ok := p[name]
	if !ok {
		return Section{}, fmt.Errorf("%w: %s", dynamo.ErrMissingParam, name)
	}
	return Section{Name: name, values: values}, nil
}

// Section is one domain of the parameter mapping with typed accessors.
type Section struct {
	Name   string
	values map[string]any
}

// NewSection wraps a raw mapping, e.g. the options of an extension.
func NewSection(name string, values map[string]any) Section {
	return Section{Name: name, values: values}
}

func (s Section) lookup(key string) (any, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", dynamo.ErrMissingParam, s.Name, key)
	}
	return v, nil
}

func (s Section) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

func (s Section) Float(key string) (float64, error) {
	v, err := s.lookup(key)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s.%s: %v", dynamo.ErrConfig, s.Name, key, err)
	}
	return f, nil
}

func (s Section) Int(key string) (int, error) {
	v, err := s.lookup(key)
	if err != nil {
		return 0, err
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s.%s: %v", dynamo.ErrConfig, s.Name, key, err)
	}
	return i, nil
}

func (s Section) String(key string) (string, error) {
	v, err := s.lookup(key)
	if err != nil {
		return "", err
	}
	str, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%w: %s.%s: %v", dynamo.ErrConfig, s.Name, key, err)
	}
	return str, nil
}

// FloatOr returns the value of key or def when the key is absent.
func (s Section) FloatOr(key string, def float64) (float64, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Float(key)
}

// Map returns a nested mapping. The boolean is false when key is absent.
func (s Section) Map(key string) (map[string]any, bool, error) {
	v, ok := s.values[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s.%s is not a mapping", dynamo.ErrConfig, s.Name, key)
	}
	return m, true, nil
}

// Keys returns the parameter names in sorted order.
func (s Section) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
