package mapping

import "github.com/ignite/crm-import/internal/domain"

// Action is a mutation of State. The set is closed: only types in this
// file implement it.
type Action interface {
	action()
}

// FileLoaded starts a new mapping for a freshly parsed file.
type FileLoaded struct {
	FileName string
	Headers  []string
}

// Reset rebuilds the default one-entry-per-header mapping, discarding
// composites, additional mappings and the unique key.
type Reset struct{}

// TargetSelected records the object and operation chosen by the user.
type TargetSelected struct {
	ObjectName string
	Operation  domain.Operation
}

// FieldChanged carries a cell's change notification.
type FieldChanged struct {
	Change Change
}

// AdditionalMappingAdded maps an already-mapped header to a second field.
type AdditionalMappingAdded struct {
	Header string
}

// MappingDeleted removes one entry by key field.
type MappingDeleted struct {
	KeyField string
}

// SectionAdded opens a new composite section.
type SectionAdded struct{}

// SectionColumnToggled checks or unchecks a column in a section.
type SectionColumnToggled struct {
	SectionID int
	Column    string
	Checked   bool
}

// CompositeCreated turns a section's checked columns into a composite key.
type CompositeCreated struct {
	SectionID int
}

// CompositeDeleted removes a composite key by id.
type CompositeDeleted struct {
	ID int
}

// SectionDeleted removes a section and its composite, if any.
type SectionDeleted struct {
	SectionID int
}

// CompositePartLookupSet picks the related field used to resolve one
// column of a composite lookup. An empty Field clears the choice.
type CompositePartLookupSet struct {
	KeyField string
	Column   string
	Field    string
}

// UniqueKeyModeSet switches between single and multi column keys.
type UniqueKeyModeSet struct {
	Mode UniqueKeyMode
}

// UniqueKeyColumnToggled checks or unchecks a unique key candidate.
type UniqueKeyColumnToggled struct {
	Column  string
	Checked bool
}

// UniqueKeyCreated turns the checked columns into the unique key.
type UniqueKeyCreated struct{}

// UniqueKeyCleared drops the unique key.
type UniqueKeyCleared struct{}

func (FileLoaded) action()             {}
func (Reset) action()                  {}
func (TargetSelected) action()         {}
func (FieldChanged) action()           {}
func (AdditionalMappingAdded) action() {}
func (MappingDeleted) action()         {}
func (SectionAdded) action()           {}
func (SectionColumnToggled) action()   {}
func (CompositeCreated) action()       {}
func (CompositeDeleted) action()       {}
func (SectionDeleted) action()         {}
func (CompositePartLookupSet) action() {}
func (UniqueKeyModeSet) action()       {}
func (UniqueKeyColumnToggled) action() {}
func (UniqueKeyCreated) action()       {}
func (UniqueKeyCleared) action()       {}
