package domain

import "strings"

// MappingEntry is the mapping of one CSV column (or composite of columns)
// to a target field. KeyField is unique within a mapping.
type MappingEntry struct {
	CSVFieldName  string `json:"csv_field_name"`
	SelectedField string `json:"selected_field"`
	IsLookup      bool   `json:"is_lookup"`

	LookupObjectAPIName  string   `json:"lookup_object_api_name,omitempty"`
	LookupObjectName     string   `json:"lookup_object_name,omitempty"`
	LookupObjectOptions  []Field  `json:"lookup_object_options,omitempty"`
	SelectedLookupFields []string `json:"selected_lookup_fields,omitempty"`
	WhereClause          string   `json:"where_clause,omitempty"`
	ExtraCSVFields       []string `json:"extra_csv_fields,omitempty"`

	// PartLookupFields holds the related field chosen per column of a
	// composite lookup, keyed by column name.
	PartLookupFields map[string]string `json:"part_lookup_fields,omitempty"`

	KeyField     string `json:"key_field"`
	IsComposite  bool   `json:"is_composite"`
	IsUniqueKey  bool   `json:"is_unique_key"`
	IsAdditional bool   `json:"is_additional"`
}

// Mapped reports whether the entry targets a field.
func (e MappingEntry) Mapped() bool { return e.SelectedField != "" }

// Columns returns the CSV columns the entry reads from. Composite entries
// expand to their parts.
func (e MappingEntry) Columns() []string {
	if !e.IsComposite {
		return []string{e.CSVFieldName}
	}
	return strings.Split(e.CSVFieldName, CompositeSeparator)
}

// ClearLookup drops every lookup-only attribute.
func (e *MappingEntry) ClearLookup() {
	e.IsLookup = false
	e.LookupObjectAPIName = ""
	e.LookupObjectName = ""
	e.LookupObjectOptions = nil
	e.SelectedLookupFields = nil
	e.WhereClause = ""
	e.ExtraCSVFields = nil
	e.PartLookupFields = nil
}

// Clone returns a deep copy of e.
func (e MappingEntry) Clone() MappingEntry {
	c := e
	if e.LookupObjectOptions != nil {
		c.LookupObjectOptions = append(make([]Field, 0, len(e.LookupObjectOptions)), e.LookupObjectOptions...)
	}
	if e.SelectedLookupFields != nil {
		c.SelectedLookupFields = append(make([]string, 0, len(e.SelectedLookupFields)), e.SelectedLookupFields...)
	}
	if e.ExtraCSVFields != nil {
		c.ExtraCSVFields = append(make([]string, 0, len(e.ExtraCSVFields)), e.ExtraCSVFields...)
	}
	if e.PartLookupFields != nil {
		c.PartLookupFields = make(map[string]string, len(e.PartLookupFields))
		for k, v := range e.PartLookupFields {
			c.PartLookupFields[k] = v
		}
	}
	return c
}

// CompositeSeparator joins column names into a composite key.
const CompositeSeparator = ","

// CompositeMapping records a composite key created by the user.
type CompositeMapping struct {
	ID           int    `json:"id"`
	CompositeKey string `json:"composite_key"`
	KeyField     string `json:"key_field"`
	Occurrence   int    `json:"occurrence"`
}

// HeaderOption is one selectable CSV column. Composite options are
// appended after the original headers as composites are created.
type HeaderOption struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	Composite bool   `json:"composite,omitempty"`
}
