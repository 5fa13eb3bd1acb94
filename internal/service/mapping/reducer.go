package mapping

import (
	"fmt"
	"strings"

	"github.com/ignite/crm-import/internal/domain"
)

// Apply returns the state that results from applying a to s. s is never
// modified. When a is rejected the returned state is s itself and the
// error says why.
func Apply(s State, a Action) (State, error) {
	next := s.clone()
	var err error

	switch a := a.(type) {
	case FileLoaded:
		next = State{
			FileName: a.FileName,
			Headers:  append([]string(nil), a.Headers...),
			IDs:      s.IDs,
		}
		next.resetToHeaders()
	case Reset:
		next.resetToHeaders()
	case TargetSelected:
		err = next.selectTarget(a)
	case FieldChanged:
		err = next.mergeChange(a.Change)
	case AdditionalMappingAdded:
		err = next.addAdditional(a.Header)
	case MappingDeleted:
		next.deleteEntry(a.KeyField)
	case SectionAdded:
		err = next.addSection()
	case SectionColumnToggled:
		err = next.toggleSectionColumn(a)
	case CompositeCreated:
		err = next.createComposite(a.SectionID)
	case CompositeDeleted:
		next.deleteComposite(a.ID)
	case SectionDeleted:
		next.deleteSection(a.SectionID)
	case CompositePartLookupSet:
		err = next.setPartLookup(a)
	case UniqueKeyModeSet:
		err = next.setUniqueKeyMode(a.Mode)
	case UniqueKeyColumnToggled:
		err = next.toggleUniqueKeyColumn(a)
	case UniqueKeyCreated:
		err = next.createUniqueKey()
	case UniqueKeyCleared:
		next.clearUniqueKey()
	default:
		err = fmt.Errorf("mapping: unsupported action %T", a)
	}

	if err != nil {
		return s, err
	}
	return next, nil
}

// =============================================================================
// Entries
// =============================================================================

// resetToHeaders builds one entry per header. Repeated header names get a
// "#n" suffix on their key field so key fields stay unique.
func (s *State) resetToHeaders() {
	s.Entries = make([]domain.MappingEntry, 0, len(s.Headers))
	s.HeaderOptions = make([]domain.HeaderOption, 0, len(s.Headers))
	s.Sections = nil
	s.Composites = nil
	s.UniqueKey = UniqueKey{Mode: s.UniqueKey.Mode}

	seen := make(map[string]int, len(s.Headers))
	for _, h := range s.Headers {
		seen[h]++
		key := h
		if n := seen[h]; n > 1 {
			key = fmt.Sprintf("%s%s%d", h, duplicateSuffix, n)
		}
		s.Entries = append(s.Entries, domain.MappingEntry{
			CSVFieldName:  h,
			SelectedField: h,
			KeyField:      key,
		})
		if seen[h] == 1 {
			s.HeaderOptions = append(s.HeaderOptions, domain.HeaderOption{Label: h, Value: h})
		}
	}
}

func (s *State) selectTarget(a TargetSelected) error {
	if a.ObjectName == "" {
		return ErrNoObject
	}
	if !a.Operation.Valid() {
		return ErrNoOperation
	}

	if a.ObjectName != s.ObjectName {
		// Field choices made against another object no longer apply.
		for i := range s.Entries {
			e := &s.Entries[i]
			e.ClearLookup()
			if e.IsAdditional {
				e.SelectedField = ""
			} else {
				e.SelectedField = e.CSVFieldName
			}
		}
	}
	s.ObjectName = a.ObjectName
	s.Operation = a.Operation

	if !a.Operation.AllowsUniqueKey() {
		s.clearUniqueKey()
	}
	return nil
}

// mergeChange is the aggregator's write path.
func (s *State) mergeChange(c Change) error {
	i := s.entryIndex(c.Entry.KeyField)
	if i < 0 {
		if !c.Entry.IsAdditional {
			return fmt.Errorf("%w: %q", ErrUnknownKeyField, c.Entry.KeyField)
		}
		if !s.HasHeader(c.Entry.CSVFieldName) {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, c.Entry.CSVFieldName)
		}
		e := c.Entry.Clone()
		e.IsComposite = false
		e.IsUniqueKey = false
		s.Entries = append(s.Entries, e)
		return nil
	}

	e := &s.Entries[i]
	e.SelectedField = c.Entry.SelectedField
	defer s.markUniqueKeyEntries()
	if !c.Entry.IsLookup {
		e.ClearLookup()
		return nil
	}
	parts, prevObject := e.PartLookupFields, e.LookupObjectAPIName
	e.IsLookup = true
	e.LookupObjectAPIName = c.Entry.LookupObjectAPIName
	e.LookupObjectName = c.Entry.LookupObjectName
	e.LookupObjectOptions = append([]domain.Field(nil), c.Entry.LookupObjectOptions...)
	e.SelectedLookupFields = append([]string(nil), c.Entry.SelectedLookupFields...)
	e.WhereClause = c.Entry.WhereClause
	e.ExtraCSVFields = append([]string(nil), c.Entry.ExtraCSVFields...)
	if e.IsComposite && prevObject == e.LookupObjectAPIName {
		e.PartLookupFields = parts
	} else {
		e.PartLookupFields = nil
	}
	return nil
}

func (s *State) addAdditional(header string) error {
	if !s.HasHeader(header) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, header)
	}
	s.Entries = append(s.Entries, domain.MappingEntry{
		CSVFieldName: header,
		KeyField:     AdditionalKeyField(header, s.IDs.extra()),
		IsAdditional: true,
	})
	return nil
}

// deleteEntry removes the entry and everything that refers to it. A
// missing key is a no-op.
func (s *State) deleteEntry(keyField string) {
	i := s.entryIndex(keyField)
	if i < 0 {
		return
	}
	e := s.Entries[i]
	if e.IsComposite {
		for _, cm := range s.Composites {
			if cm.KeyField == keyField {
				s.deleteComposite(cm.ID)
				return
			}
		}
	}
	s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
	s.releaseUniqueKeyColumn(e.CSVFieldName)
}

// =============================================================================
// Composite keys
// =============================================================================

func (s *State) addSection() error {
	if n := len(s.Sections); n > 0 && !s.Sections[n-1].Mapped {
		return ErrSectionPending
	}
	s.Sections = append(s.Sections, Section{ID: s.IDs.section()})
	return nil
}

func (s *State) toggleSectionColumn(a SectionColumnToggled) error {
	i := s.sectionIndex(a.SectionID)
	if i < 0 {
		return ErrSectionNotFound
	}
	sec := &s.Sections[i]
	if sec.Mapped {
		return ErrSectionMapped
	}
	if !s.HasHeader(a.Column) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, a.Column)
	}

	// Columns keep the order they were checked in; the key joins them so.
	checked := remove(sec.Columns, a.Column)
	if a.Checked {
		checked = append(checked, a.Column)
	}
	sec.Columns = checked
	return nil
}

func (s *State) createComposite(sectionID int) error {
	i := s.sectionIndex(sectionID)
	if i < 0 {
		return ErrSectionNotFound
	}
	sec := &s.Sections[i]
	if sec.Mapped {
		return ErrSectionMapped
	}
	if len(sec.Columns) < 2 {
		return ErrTooFewColumns
	}

	key := strings.Join(sec.Columns, domain.CompositeSeparator)
	occurrence := 1
	for _, cm := range s.Composites {
		if cm.CompositeKey == key {
			occurrence++
		}
	}
	id := s.IDs.composite()
	keyField := CompositeKeyField(key, id)

	s.Entries = append(s.Entries, domain.MappingEntry{
		CSVFieldName:  key,
		SelectedField: key,
		KeyField:      keyField,
		IsComposite:   true,
	})
	s.HeaderOptions = append(s.HeaderOptions, domain.HeaderOption{
		Label:     key,
		Value:     keyField,
		Composite: true,
	})
	s.Composites = append(s.Composites, domain.CompositeMapping{
		ID:           id,
		CompositeKey: key,
		KeyField:     keyField,
		Occurrence:   occurrence,
	})
	sec.Mapped = true
	sec.CompositeID = id
	return nil
}

// deleteComposite removes one entry, one header option, one composite
// record and the owning section. An unknown id is a no-op.
func (s *State) deleteComposite(id int) {
	ci := -1
	for i, cm := range s.Composites {
		if cm.ID == id {
			ci = i
			break
		}
	}
	if ci < 0 {
		return
	}
	cm := s.Composites[ci]
	s.Composites = append(s.Composites[:ci], s.Composites[ci+1:]...)

	if i := s.entryIndex(cm.KeyField); i >= 0 {
		s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
	}
	for i, opt := range s.HeaderOptions {
		if opt.Composite && opt.Value == cm.KeyField {
			s.HeaderOptions = append(s.HeaderOptions[:i], s.HeaderOptions[i+1:]...)
			break
		}
	}
	for i, sec := range s.Sections {
		if sec.Mapped && sec.CompositeID == id {
			s.Sections = append(s.Sections[:i], s.Sections[i+1:]...)
			break
		}
	}
	s.releaseUniqueKeyColumn(cm.CompositeKey)
}

func (s *State) deleteSection(id int) {
	i := s.sectionIndex(id)
	if i < 0 {
		return
	}
	if sec := s.Sections[i]; sec.Mapped {
		s.deleteComposite(sec.CompositeID)
		return
	}
	s.Sections = append(s.Sections[:i], s.Sections[i+1:]...)
}

func (s *State) setPartLookup(a CompositePartLookupSet) error {
	i := s.entryIndex(a.KeyField)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownKeyField, a.KeyField)
	}
	e := &s.Entries[i]
	if !e.IsComposite {
		return ErrNotComposite
	}
	if !e.IsLookup {
		return ErrNotLookup
	}
	if !contains(e.Columns(), a.Column) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, a.Column)
	}
	if a.Field == "" {
		delete(e.PartLookupFields, a.Column)
		return nil
	}
	if len(e.LookupObjectOptions) > 0 && !hasField(e.LookupObjectOptions, a.Field) {
		return fmt.Errorf("%w: %q", ErrUnknownField, a.Field)
	}
	if e.PartLookupFields == nil {
		e.PartLookupFields = make(map[string]string)
	}
	e.PartLookupFields[a.Column] = a.Field
	return nil
}

// =============================================================================
// Unique key
// =============================================================================

func (s *State) uniqueKeyApplies() error {
	if !s.Operation.AllowsUniqueKey() {
		return ErrUniqueKeyNotApplicable
	}
	return nil
}

func (s *State) setUniqueKeyMode(m UniqueKeyMode) error {
	if err := s.uniqueKeyApplies(); err != nil {
		return err
	}
	if m != UniqueKeySingle && m != UniqueKeyMulti {
		return ErrInvalidUniqueKeyMode
	}
	s.UniqueKey.Mode = m
	s.UniqueKey.Checked = nil
	return nil
}

func (s *State) toggleUniqueKeyColumn(a UniqueKeyColumnToggled) error {
	if err := s.uniqueKeyApplies(); err != nil {
		return err
	}
	if !contains(s.UniqueKeyOptions(), a.Column) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, a.Column)
	}
	switch {
	case !a.Checked:
		s.UniqueKey.Checked = remove(s.UniqueKey.Checked, a.Column)
	case s.uniqueKeyMode() == UniqueKeySingle:
		s.UniqueKey.Checked = []string{a.Column}
	case !contains(s.UniqueKey.Checked, a.Column):
		s.UniqueKey.Checked = append(s.UniqueKey.Checked, a.Column)
	}
	return nil
}

func (s *State) uniqueKeyMode() UniqueKeyMode {
	if s.UniqueKey.Mode == "" {
		return UniqueKeySingle
	}
	return s.UniqueKey.Mode
}

func (s *State) createUniqueKey() error {
	if err := s.uniqueKeyApplies(); err != nil {
		return err
	}
	checked := s.UniqueKey.Checked
	switch s.uniqueKeyMode() {
	case UniqueKeySingle:
		if len(checked) != 1 {
			return ErrSingleKeyColumn
		}
	case UniqueKeyMulti:
		if len(checked) == 0 {
			return ErrNoUniqueKeyColumns
		}
	}
	s.UniqueKey.Columns = append([]string(nil), checked...)
	s.markUniqueKeyEntries()
	return nil
}

func (s *State) clearUniqueKey() {
	s.UniqueKey.Checked = nil
	s.UniqueKey.Columns = nil
	s.markUniqueKeyEntries()
}

func (s *State) markUniqueKeyEntries() {
	for i := range s.Entries {
		e := &s.Entries[i]
		e.IsUniqueKey = e.Mapped() && contains(s.UniqueKey.Columns, e.CSVFieldName)
	}
}

// releaseUniqueKeyColumn drops col from the unique key once no entry
// references it any more.
func (s *State) releaseUniqueKeyColumn(col string) {
	for _, e := range s.Entries {
		if e.CSVFieldName == col {
			return
		}
	}
	s.UniqueKey.Checked = remove(s.UniqueKey.Checked, col)
	s.UniqueKey.Columns = remove(s.UniqueKey.Columns, col)
	s.markUniqueKeyEntries()
}

func hasField(fields []domain.Field, apiName string) bool {
	for _, f := range fields {
		if f.APIName == apiName {
			return true
		}
	}
	return false
}
