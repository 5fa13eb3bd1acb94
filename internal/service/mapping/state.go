package mapping

import (
	"fmt"

	"github.com/ignite/crm-import/internal/domain"
)

// Key field suffixes. A composite of columns A and B created with id 3 has
// the key field "A,B__COMPOSITE_3".
const (
	compositeSuffix  = "__COMPOSITE_"
	additionalSuffix = "__EXTRA_"
	duplicateSuffix  = "#"
)

// CompositeKeyField builds the key field of a composite entry.
func CompositeKeyField(compositeKey string, id int) string {
	return fmt.Sprintf("%s%s%d", compositeKey, compositeSuffix, id)
}

// AdditionalKeyField builds the key field of an additional mapping of header.
func AdditionalKeyField(header string, id int) string {
	return fmt.Sprintf("%s%s%d", header, additionalSuffix, id)
}

// Section is one composite-key builder panel. Once its composite is
// created the section is mapped and its columns are frozen.
type Section struct {
	ID          int      `json:"id"`
	Columns     []string `json:"columns"`
	Mapped      bool     `json:"mapped"`
	CompositeID int      `json:"composite_id,omitempty"`
}

// UniqueKeyMode selects between a one-column key and a multi-column key.
type UniqueKeyMode string

const (
	UniqueKeySingle UniqueKeyMode = "single"
	UniqueKeyMulti  UniqueKeyMode = "multi"
)

// UniqueKey is the unique-key selector state. Checked is the pending
// selection; Columns is the created key.
type UniqueKey struct {
	Mode    UniqueKeyMode `json:"mode"`
	Checked []string      `json:"checked,omitempty"`
	Columns []string      `json:"columns,omitempty"`
}

// Defined reports whether a key has been created.
func (u UniqueKey) Defined() bool { return len(u.Columns) > 0 }

// IDs is the monotonic id generator. Counters only grow, including across
// Reset, so an id is never handed out twice within a session.
type IDs struct {
	NextComposite int `json:"next_composite"`
	NextSection   int `json:"next_section"`
	NextExtra     int `json:"next_extra"`
}

func (g *IDs) composite() int {
	id := g.NextComposite
	g.NextComposite++
	return id
}

func (g *IDs) section() int {
	id := g.NextSection
	g.NextSection++
	return id
}

func (g *IDs) extra() int {
	id := g.NextExtra
	g.NextExtra++
	return id
}

// State is the complete mapping of one import.
type State struct {
	ObjectName string           `json:"object_name"`
	Operation  domain.Operation `json:"operation"`
	FileName   string           `json:"file_name"`

	Headers       []string                  `json:"headers"`
	Entries       []domain.MappingEntry     `json:"entries"`
	HeaderOptions []domain.HeaderOption     `json:"header_options"`
	Sections      []Section                 `json:"sections"`
	Composites    []domain.CompositeMapping `json:"composites"`
	UniqueKey     UniqueKey                 `json:"unique_key"`
	IDs           IDs                       `json:"ids"`
}

func (s State) clone() State {
	c := s
	c.Headers = cloneSlice(s.Headers)
	if s.Entries != nil {
		c.Entries = make([]domain.MappingEntry, len(s.Entries))
		for i, e := range s.Entries {
			c.Entries[i] = e.Clone()
		}
	}
	c.HeaderOptions = cloneSlice(s.HeaderOptions)
	if s.Sections != nil {
		c.Sections = make([]Section, len(s.Sections))
		for i, sec := range s.Sections {
			sec.Columns = cloneSlice(sec.Columns)
			c.Sections[i] = sec
		}
	}
	c.Composites = cloneSlice(s.Composites)
	c.UniqueKey.Checked = cloneSlice(s.UniqueKey.Checked)
	c.UniqueKey.Columns = cloneSlice(s.UniqueKey.Columns)
	return c
}

// cloneSlice copies src, keeping nil and empty distinct.
func cloneSlice[T any](src []T) []T {
	if src == nil {
		return nil
	}
	return append(make([]T, 0, len(src)), src...)
}

// Entry returns the entry with the given key field.
func (s State) Entry(keyField string) (domain.MappingEntry, bool) {
	if i := s.entryIndex(keyField); i >= 0 {
		return s.Entries[i], true
	}
	return domain.MappingEntry{}, false
}

func (s State) entryIndex(keyField string) int {
	for i, e := range s.Entries {
		if e.KeyField == keyField {
			return i
		}
	}
	return -1
}

func (s State) sectionIndex(id int) int {
	for i, sec := range s.Sections {
		if sec.ID == id {
			return i
		}
	}
	return -1
}

// HasHeader reports whether col is one of the file's original columns.
func (s State) HasHeader(col string) bool { return contains(s.Headers, col) }

// Section returns the composite section with the given id.
func (s State) Section(id int) (Section, bool) {
	if i := s.sectionIndex(id); i >= 0 {
		return s.Sections[i], true
	}
	return Section{}, false
}

// AvailableColumnsForComposite lists the columns a composite section may
// combine. Composite options are never offered.
func (s State) AvailableColumnsForComposite() []string {
	return append([]string(nil), s.Headers...)
}

// UniqueKeyOptions lists the distinct CSV field names of mapped entries.
func (s State) UniqueKeyOptions() []string {
	var out []string
	for _, e := range s.Entries {
		if e.Mapped() && !contains(out, e.CSVFieldName) {
			out = append(out, e.CSVFieldName)
		}
	}
	return out
}

// MappedColumns returns the original CSV columns read by mapped entries,
// including composite parts and extra CSV fields, in first-use order.
func (s State) MappedColumns() []string {
	out := []string{}
	add := func(c string) {
		if c != "" && !contains(out, c) {
			out = append(out, c)
		}
	}
	for _, e := range s.Entries {
		if !e.Mapped() {
			continue
		}
		for _, c := range e.Columns() {
			add(c)
		}
		for _, c := range e.ExtraCSVFields {
			add(c)
		}
	}
	return out
}

// TableRow is one line of the mapping review table.
type TableRow struct {
	KeyField      string `json:"key_field"`
	CSVField      string `json:"csv_field"`
	TargetField   string `json:"target_field"`
	LookupObject  string `json:"lookup_object,omitempty"`
	LookupMapping string `json:"lookup_mapping,omitempty"`
	ConfigData    string `json:"config_data"`
}

// TableRows summarizes every mapped entry for review.
func (s State) TableRows() []TableRow {
	rows := make([]TableRow, 0, len(s.Entries))
	for _, e := range s.Entries {
		if !e.Mapped() {
			continue
		}
		row := TableRow{
			KeyField:    e.KeyField,
			CSVField:    e.CSVFieldName,
			TargetField: e.SelectedField,
		}
		if e.IsLookup {
			row.LookupObject = e.LookupObjectName
			row.LookupMapping = selectedLookupFields(e)
			row.ConfigData = fmt.Sprintf("%s(lookup) --> %s.%s", e.CSVFieldName, s.ObjectName, e.SelectedField)
		} else {
			row.ConfigData = fmt.Sprintf("%s-->%s.%s", e.CSVFieldName, s.ObjectName, e.SelectedField)
		}
		rows = append(rows, row)
	}
	return rows
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := list[:0:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
