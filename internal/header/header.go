package header

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidName is returned when a field name is empty or is not an HTTP token.
var ErrInvalidName = errors.New("invalid header field name")

// ErrInvalidValue is returned when a field value contains a control character
// other than horizontal tab.
var ErrInvalidValue = errors.New("invalid header field value")

// Field is a header field name with all of its values, in insertion order.
type Field struct {
	Name   string
	Values []string
}

// Header is a case-insensitive, multi-valued, order-preserving field store.
// The zero value is ready to use. A Header is not safe for concurrent
// mutation.
type Header struct {
	fields []*Field
	index  map[string]int
}

// New returns an empty header store.
func New() *Header {
	return &Header{}
}

func key(name string) string {
	return strings.ToLower(name)
}

// Add appends value to the field name, creating the field at the end of the
// store if it does not exist yet. The spelling of the first Add wins for
// serialization.
func (h *Header) Add(name, value string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := validValue(value); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if h.index == nil {
		h.index = make(map[string]int)
	}

	k := key(name)
	if i, ok := h.index[k]; ok {
		h.fields[i].Values = append(h.fields[i].Values, value)
		return nil
	}

	h.index[k] = len(h.fields)
	h.fields = append(h.fields, &Field{Name: name, Values: []string{value}})
	return nil
}

// Set replaces every value of name with value. The field is removed and
// re-added, so it moves to the end of the store.
func (h *Header) Set(name, value string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := validValue(value); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	h.Del(name)
	return h.Add(name, value)
}

// Del removes the field name. It reports whether the field existed.
func (h *Header) Del(name string) bool {
	i, ok := h.index[key(name)]
	if !ok {
		return false
	}

	h.fields = append(h.fields[:i], h.fields[i+1:]...)
	delete(h.index, key(name))
	for j := i; j < len(h.fields); j++ {
		h.index[key(h.fields[j].Name)] = j
	}
	return true
}

// Has reports whether the field name is present.
func (h *Header) Has(name string) bool {
	_, ok := h.index[key(name)]
	return ok
}

// Get returns the first value of name, or fallback if the field is absent.
func (h *Header) Get(name, fallback string) string {
	i, ok := h.index[key(name)]
	if !ok || len(h.fields[i].Values) == 0 {
		return fallback
	}
	return h.fields[i].Values[0]
}

// Values returns a copy of all values of name.
func (h *Header) Values(name string) []string {
	i, ok := h.index[key(name)]
	if !ok {
		return nil
	}
	return append([]string(nil), h.fields[i].Values...)
}

// Fields returns a copy of every field in insertion order.
func (h *Header) Fields() []Field {
	out := make([]Field, 0, len(h.fields))
	for _, f := range h.fields {
		out = append(out, Field{Name: f.Name, Values: append([]string(nil), f.Values...)})
	}
	return out
}

// Len returns the number of distinct field names.
func (h *Header) Len() int {
	return len(h.fields)
}

// Clone returns a deep copy of the store.
func (h *Header) Clone() *Header {
	c := &Header{}
	if len(h.fields) == 0 {
		return c
	}
	c.index = make(map[string]int, len(h.fields))
	c.fields = make([]*Field, 0, len(h.fields))
	for i, f := range h.fields {
		c.fields = append(c.fields, &Field{Name: f.Name, Values: append([]string(nil), f.Values...)})
		c.index[key(f.Name)] = i
	}
	return c
}

// validName checks that name is a non-empty RFC 7230 token.
func validName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	for i := 0; i < len(name); i++ {
		if !isTokenChar(name[i]) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

func validValue(value string) error {
	for i := 0; i < len(value); i++ {
		c := value[i]
		// CR and LF survive only as part of folded values; serialization
		// normalizes them to CRLF.
		if c < 0x20 && c != '\t' && c != '\r' && c != '\n' || c == 0x7f {
			return ErrInvalidValue
		}
	}
	return nil
}

func isTokenChar(c byte) bool {
	if c <= 0x20 || c >= 0x7f {
		return false
	}
	return !strings.ContainsRune(`()<>@,;:\"/[]?={}`, rune(c))
}
