// Package params implements the variable-assignment text format used by
// template links: one "name=value" pair per line, no escaping.
//
// The line is split at the first '=' only, so "name=a=b" yields the value
// "a=b". A value containing a newline cannot be represented in this format.
package params

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrMultilineValue is returned by Set when a value contains a line break.
	ErrMultilineValue = errors.New("params: value cannot contain a newline")

	// ErrInvalidName is returned by Set for an empty name or one containing
	// '=' or a line break.
	ErrInvalidName = errors.New("params: invalid variable name")
)

// Params is an insertion-ordered mapping from variable name to value.
// The zero value is an empty mapping ready to use.
type Params struct {
	keys   []string
	values map[string]string
}

// New returns an empty mapping.
func New() *Params {
	return &Params{values: make(map[string]string)}
}

// FromMap builds a mapping from m with keys in sorted order.
func FromMap(m map[string]string) (*Params, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := New()
	for _, k := range keys {
		if err := p.Set(k, m[k]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Set assigns value to name. A new name is appended; an existing name keeps
// its position.
func (p *Params) Set(name, value string) error {
	if name == "" || strings.ContainsAny(name, "=\r\n") {
		return ErrInvalidName
	}
	if strings.ContainsAny(value, "\r\n") {
		return ErrMultilineValue
	}
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[name]; !ok {
		p.keys = append(p.keys, name)
	}
	p.values[name] = value
	return nil
}

// Get returns the value for name.
func (p *Params) Get(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[name]
	return v, ok
}

// Delete removes name from the mapping.
func (p *Params) Delete(name string) {
	if p == nil {
		return
	}
	if _, ok := p.values[name]; !ok {
		return
	}
	delete(p.values, name)
	for i, k := range p.keys {
		if k == name {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the names in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Each calls fn for every entry in insertion order.
func (p *Params) Each(fn func(name, value string)) {
	if p == nil {
		return
	}
	for _, k := range p.keys {
		fn(k, p.values[k])
	}
}

// Map returns a copy of the entries as a plain map.
func (p *Params) Map() map[string]string {
	out := make(map[string]string, p.Len())
	p.Each(func(name, value string) {
		out[name] = value
	})
	return out
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	c := New()
	p.Each(func(name, value string) {
		c.keys = append(c.keys, name)
		c.values[name] = value
	})
	return c
}

// Equal reports whether p and o hold the same entries in the same order.
func (p *Params) Equal(o *Params) bool {
	if p.Len() != o.Len() {
		return false
	}
	if p.Len() == 0 {
		return true
	}
	for i, k := range p.keys {
		if o.keys[i] != k || o.values[k] != p.values[k] {
			return false
		}
	}
	return true
}

// Parse reads newline-delimited name=value pairs.
//
// Blank lines, lines without '=', and lines with an empty name are ignored.
// An empty value omits the name. A repeated name keeps its first position
// and takes the last value.
func Parse(text string) *Params {
	p := New()
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || value == "" {
			continue
		}
		// Values come from a single line, so Set cannot fail here.
		_ = p.Set(name, value)
	}
	return p
}

// Format renders p as name=value lines in insertion order.
func Format(p *Params) string {
	var sb strings.Builder
	p.Each(func(name, value string) {
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(value)
		sb.WriteByte('\n')
	})
	return sb.String()
}

// String implements fmt.Stringer using Format.
func (p *Params) String() string {
	return Format(p)
}
