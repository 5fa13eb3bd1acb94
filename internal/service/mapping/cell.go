package mapping

import (
	"strings"
	"unicode"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/service/catalog"
)

// CellState is the lifecycle of a single column's field selection.
type CellState string

const (
	CellUnmapped       CellState = "unmapped"
	CellSimpleMapped   CellState = "simple_mapped"
	CellLookupPending  CellState = "lookup_pending"
	CellLookupResolved CellState = "lookup_resolved"
)

// Change is the notification a cell sends after every mutation. It always
// carries the cell's full current entry.
type Change struct {
	Entry domain.MappingEntry
}

// LookupRequest asks the caller to fetch the related fields of a lookup.
// Seq ties the response back to the selection that issued it.
type LookupRequest struct {
	KeyField   string `json:"key_field"`
	ObjectName string `json:"object_name"`
	Field      string `json:"field"`
	Seq        int    `json:"seq"`
}

// ExtraSlot is the CSV column picked to feed one selected related field of
// a lookup.
type ExtraSlot struct {
	LookupField string `json:"lookup_field"`
	Label       string `json:"label"`
	Column      string `json:"column,omitempty"`
}

// Cell is the field-selection state machine of one mapping row.
type Cell struct {
	Entry      domain.MappingEntry `json:"entry"`
	State      CellState           `json:"state"`
	Seq        int                 `json:"seq"`
	PendingSeq int                 `json:"pending_seq,omitempty"`
	Slots      []ExtraSlot         `json:"slots,omitempty"`
}

// NewCell returns a cell for entry in its initial state.
func NewCell(entry domain.MappingEntry) *Cell {
	return &Cell{Entry: entry.Clone(), State: CellUnmapped}
}

func (c *Cell) change() Change { return Change{Entry: c.Entry.Clone()} }

// Select handles the user picking field for this row. A non-nil
// LookupRequest means the row now waits for Resolve.
func (c *Cell) Select(field string, cat *catalog.Cache) (Change, *LookupRequest) {
	c.Entry.ClearLookup()
	c.Entry.SelectedField = field
	c.Slots = nil
	c.PendingSeq = 0

	switch {
	case field == "":
		c.State = CellUnmapped
	case field == cat.PrimaryKeyField():
		// The record id resolves against the selected object itself.
		c.State = CellLookupResolved
		c.Entry.IsLookup = true
		c.Entry.LookupObjectAPIName = cat.Object
		c.Entry.LookupObjectName = DisplayName(cat.Object)
		c.Entry.LookupObjectOptions = append([]domain.Field(nil), cat.AllFields...)
	case cat.IsLookup(field):
		c.State = CellLookupPending
		c.Entry.IsLookup = true
		c.Seq++
		c.PendingSeq = c.Seq
		return c.change(), &LookupRequest{
			KeyField:   c.Entry.KeyField,
			ObjectName: cat.Object,
			Field:      field,
			Seq:        c.Seq,
		}
	default:
		c.State = CellSimpleMapped
	}
	return c.change(), nil
}

// Awaiting reports whether req is the fetch this cell is waiting for.
func (c *Cell) Awaiting(req LookupRequest) bool {
	return c.State == CellLookupPending &&
		c.PendingSeq == req.Seq &&
		c.Entry.SelectedField == req.Field
}

// Resolve applies a lookup fetch result. It returns false and changes
// nothing when req is no longer the pending request.
func (c *Cell) Resolve(req LookupRequest, res domain.LookupFields) (Change, bool) {
	if !c.Awaiting(req) {
		return Change{}, false
	}
	c.State = CellLookupResolved
	c.PendingSeq = 0
	c.Entry.LookupObjectAPIName = res.LookupObjectName
	c.Entry.LookupObjectName = DisplayName(res.LookupObjectName)
	c.Entry.LookupObjectOptions = append([]domain.Field(nil), res.Fields...)
	return c.change(), true
}

// Abandon forgets a failed fetch. The row stays a pending lookup until the
// user selects again.
func (c *Cell) Abandon(req LookupRequest) bool {
	if !c.Awaiting(req) {
		return false
	}
	c.PendingSeq = 0
	return true
}

// SelectLookupFields sets the related fields used to resolve the lookup.
// Each selected field gets an extra CSV column slot; slots of deselected
// fields are dropped.
func (c *Cell) SelectLookupFields(fields []string) (Change, error) {
	if c.State != CellLookupResolved {
		return Change{}, ErrLookupNotResolved
	}
	var selected []string
	for _, f := range fields {
		if !hasField(c.Entry.LookupObjectOptions, f) {
			return Change{}, ErrUnknownField
		}
		if !contains(selected, f) {
			selected = append(selected, f)
		}
	}

	slots := make([]ExtraSlot, 0, len(selected))
	for _, f := range selected {
		slot := ExtraSlot{LookupField: f, Label: c.fieldLabel(f)}
		for _, old := range c.Slots {
			if old.LookupField == f {
				slot.Column = old.Column
			}
		}
		slots = append(slots, slot)
	}
	c.Slots = slots
	c.Entry.SelectedLookupFields = selected
	c.syncExtraFields()
	return c.change(), nil
}

// SetExtraCSVField assigns a CSV column to the slot of lookupField.
func (c *Cell) SetExtraCSVField(lookupField, column string) (Change, error) {
	if !c.Entry.IsLookup {
		return Change{}, ErrNotLookup
	}
	for i := range c.Slots {
		if c.Slots[i].LookupField == lookupField {
			c.Slots[i].Column = column
			c.syncExtraFields()
			return c.change(), nil
		}
	}
	return Change{}, ErrUnknownField
}

// SetWhereClause sets the filter used when resolving lookup records.
func (c *Cell) SetWhereClause(clause string) (Change, error) {
	if !c.Entry.IsLookup {
		return Change{}, ErrNotLookup
	}
	c.Entry.WhereClause = strings.TrimSpace(clause)
	return c.change(), nil
}

// Reset returns the row to its header default.
func (c *Cell) Reset() Change {
	c.Entry.ClearLookup()
	c.Entry.SelectedField = c.Entry.CSVFieldName
	if c.Entry.IsAdditional {
		c.Entry.SelectedField = ""
	}
	c.State = CellUnmapped
	c.PendingSeq = 0
	c.Slots = nil
	return c.change()
}

func (c *Cell) syncExtraFields() {
	var cols []string
	for _, s := range c.Slots {
		if s.Column != "" && !contains(cols, s.Column) {
			cols = append(cols, s.Column)
		}
	}
	c.Entry.ExtraCSVFields = cols
}

func (c *Cell) fieldLabel(apiName string) string {
	for _, f := range c.Entry.LookupObjectOptions {
		if f.APIName == apiName && f.Label != "" {
			return f.Label
		}
	}
	return apiName
}

// ReconcileCells returns the cells for entries: existing cells are kept,
// new entries get a fresh cell and cells of removed entries are dropped.
func ReconcileCells(cells map[string]*Cell, entries []domain.MappingEntry) map[string]*Cell {
	out := make(map[string]*Cell, len(entries))
	for _, e := range entries {
		if c, ok := cells[e.KeyField]; ok {
			out[e.KeyField] = c
			continue
		}
		out[e.KeyField] = NewCell(e)
	}
	return out
}

// DisplayName turns an object API name into a label by inserting a space
// before each inner uppercase letter: "OperatingHour" becomes
// "Operating Hour".
func DisplayName(apiName string) string {
	var b strings.Builder
	var prev rune
	for i, r := range apiName {
		if i > 0 && unicode.IsUpper(r) && prev != ' ' {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
