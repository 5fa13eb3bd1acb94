package export

import (
	"strings"
	"sync"
)

// IdentifierMapping ties a lookup field to the related fields that identify
// its records.
type IdentifierMapping struct {
	LookupField string   `json:"lookup_field"`
	Fields      []string `json:"fields"`
}

// Joined returns the identifier fields as the comma list the platform
// expects. A single field is returned as is.
func (m IdentifierMapping) Joined() string { return strings.Join(m.Fields, ",") }

// Registry holds the identifier mappings of one export, in insertion order.
type Registry struct {
	mu       sync.RWMutex
	mappings []IdentifierMapping
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Add registers fields as the identifier of lookupField. Each lookup field
// can be mapped once.
func (r *Registry) Add(lookupField string, fields []string) error {
	lookupField = strings.TrimSpace(lookupField)
	if lookupField == "" {
		return ErrNoLookupField
	}
	fields = dedupe(fields)
	if len(fields) == 0 {
		return ErrNoIdentifierFields
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mappings {
		if m.LookupField == lookupField {
			return ErrDuplicateIdentifier
		}
	}
	r.mappings = append(r.mappings, IdentifierMapping{LookupField: lookupField, Fields: fields})
	return nil
}

// Remove drops the mapping of lookupField. Unknown fields are ignored.
func (r *Registry) Remove(lookupField string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.mappings {
		if m.LookupField == lookupField {
			r.mappings = append(r.mappings[:i], r.mappings[i+1:]...)
			return
		}
	}
}

// Get returns the mapping of lookupField.
func (r *Registry) Get(lookupField string) (IdentifierMapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mappings {
		if m.LookupField == lookupField {
			return m, true
		}
	}
	return IdentifierMapping{}, false
}

// Mappings returns a copy of every mapping.
func (r *Registry) Mappings() []IdentifierMapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]IdentifierMapping, len(r.mappings))
	for i, m := range r.mappings {
		out[i] = IdentifierMapping{LookupField: m.LookupField, Fields: append([]string(nil), m.Fields...)}
	}
	return out
}

// Fields returns every identifier field across all mappings, deduplicated.
func (r *Registry) Fields() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []string
	for _, m := range r.mappings {
		all = append(all, m.Fields...)
	}
	return dedupe(all)
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
