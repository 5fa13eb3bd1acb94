package mapping

import (
	"testing"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustApply(t *testing.T, s State, actions ...Action) State {
	t.Helper()
	for _, a := range actions {
		var err error
		s, err = Apply(s, a)
		require.NoError(t, err, "%T", a)
	}
	return s
}

func loaded(t *testing.T, headers ...string) State {
	t.Helper()
	return mustApply(t, State{}, FileLoaded{FileName: "accounts.csv", Headers: headers})
}

func withComposite(t *testing.T, s State, cols ...string) State {
	t.Helper()
	s = mustApply(t, s, SectionAdded{})
	id := s.Sections[len(s.Sections)-1].ID
	for _, c := range cols {
		s = mustApply(t, s, SectionColumnToggled{SectionID: id, Column: c, Checked: true})
	}
	return mustApply(t, s, CompositeCreated{SectionID: id})
}

func TestInitialMapping(t *testing.T) {
	s := loaded(t, "Id", "Name", "Email")

	require.Len(t, s.Entries, 3)
	for _, e := range s.Entries {
		assert.Equal(t, e.CSVFieldName, e.SelectedField)
		assert.Equal(t, e.CSVFieldName, e.KeyField)
		assert.False(t, e.IsLookup)
	}
	assert.Len(t, s.HeaderOptions, 3)
	assert.Equal(t, "accounts.csv", s.FileName)
}

func TestDuplicateHeadersGetUniqueKeyFields(t *testing.T) {
	s := loaded(t, "Name", "Name", "Email")

	require.Len(t, s.Entries, 3)
	assert.Equal(t, "Name", s.Entries[0].KeyField)
	assert.Equal(t, "Name#2", s.Entries[1].KeyField)
	assert.Len(t, s.HeaderOptions, 2)
}

func TestCompositeCreated(t *testing.T) {
	s := withComposite(t, loaded(t, "A", "B", "C"), "A", "B")

	require.Len(t, s.Entries, 4)
	e := s.Entries[3]
	assert.Equal(t, "A,B", e.CSVFieldName)
	assert.Equal(t, "A,B", e.SelectedField)
	assert.True(t, e.IsComposite)
	assert.Equal(t, "A,B__COMPOSITE_0", e.KeyField)

	require.Len(t, s.Composites, 1)
	assert.Equal(t, domain.CompositeMapping{ID: 0, CompositeKey: "A,B", KeyField: e.KeyField, Occurrence: 1}, s.Composites[0])
	assert.Len(t, s.HeaderOptions, 4)
	assert.True(t, s.HeaderOptions[3].Composite)
	assert.True(t, s.Sections[0].Mapped)
}

func TestCompositeNeedsTwoColumns(t *testing.T) {
	s := loaded(t, "A", "B")
	s = mustApply(t, s, SectionAdded{}, SectionColumnToggled{SectionID: 0, Column: "A", Checked: true})

	next, err := Apply(s, CompositeCreated{SectionID: 0})
	assert.ErrorIs(t, err, ErrTooFewColumns)
	assert.Equal(t, s, next)
	assert.Empty(t, next.Composites)
}

func TestCompositeDeleteIsIdempotent(t *testing.T) {
	base := loaded(t, "A", "B", "C")
	s := withComposite(t, base, "A", "B")

	once := mustApply(t, s, CompositeDeleted{ID: 0})
	assert.Len(t, once.Entries, 3)
	assert.Len(t, once.HeaderOptions, 3)
	assert.Empty(t, once.Composites)
	assert.Empty(t, once.Sections)

	twice := mustApply(t, once, CompositeDeleted{ID: 0})
	assert.Equal(t, once, twice)
}

func TestCompositeIDsAreNeverReused(t *testing.T) {
	s := loaded(t, "A", "B", "C")
	s = withComposite(t, s, "A", "B")
	s = withComposite(t, s, "A", "B")

	require.Len(t, s.Composites, 2)
	assert.Equal(t, 1, s.Composites[1].ID)
	assert.Equal(t, 2, s.Composites[1].Occurrence)

	s = mustApply(t, s, CompositeDeleted{ID: 0})
	s = withComposite(t, s, "B", "C")
	assert.Equal(t, "B,C__COMPOSITE_2", s.Composites[1].KeyField)

	s = mustApply(t, s, Reset{})
	s = withComposite(t, s, "A", "C")
	assert.Equal(t, 3, s.Composites[0].ID)
}

func TestSectionAddedWaitsForMappedSection(t *testing.T) {
	s := mustApply(t, loaded(t, "A", "B"), SectionAdded{})

	_, err := Apply(s, SectionAdded{})
	assert.ErrorIs(t, err, ErrSectionPending)
}

func TestSectionColumnToggled(t *testing.T) {
	s := mustApply(t, loaded(t, "A", "B", "C"),
		SectionAdded{},
		SectionColumnToggled{SectionID: 0, Column: "C", Checked: true},
		SectionColumnToggled{SectionID: 0, Column: "A", Checked: true},
		SectionColumnToggled{SectionID: 0, Column: "A", Checked: true},
	)
	assert.Equal(t, []string{"C", "A"}, s.Sections[0].Columns)

	s = mustApply(t, s, SectionColumnToggled{SectionID: 0, Column: "C", Checked: false})
	assert.Equal(t, []string{"A"}, s.Sections[0].Columns)

	_, err := Apply(s, SectionColumnToggled{SectionID: 0, Column: "Z", Checked: true})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = Apply(s, SectionColumnToggled{SectionID: 9, Column: "A", Checked: true})
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestCompositeKeepsCheckOrder(t *testing.T) {
	s := withComposite(t, loaded(t, "A", "B", "C"), "B", "A")

	require.Len(t, s.Composites, 1)
	assert.Equal(t, "B,A", s.Composites[0].CompositeKey)

	var e domain.MappingEntry
	for _, x := range s.Entries {
		if x.IsComposite {
			e = x
		}
	}
	assert.Equal(t, "B,A", e.CSVFieldName)
	assert.Regexp(t, `^B,A__COMPOSITE_\d+$`, e.KeyField)
	assert.Equal(t, []string{"B", "A"}, e.Columns())
}

func TestMappedSectionIsFrozen(t *testing.T) {
	s := withComposite(t, loaded(t, "A", "B", "C"), "A", "B")

	_, err := Apply(s, SectionColumnToggled{SectionID: 0, Column: "C", Checked: true})
	assert.ErrorIs(t, err, ErrSectionMapped)

	_, err = Apply(s, CompositeCreated{SectionID: 0})
	assert.ErrorIs(t, err, ErrSectionMapped)
}

func TestSectionDeleted(t *testing.T) {
	s := withComposite(t, loaded(t, "A", "B"), "A", "B")
	s = mustApply(t, s, SectionAdded{}, SectionDeleted{SectionID: 1})
	assert.Len(t, s.Sections, 1)

	s = mustApply(t, s, SectionDeleted{SectionID: 0})
	assert.Empty(t, s.Sections)
	assert.Empty(t, s.Composites)
	assert.Len(t, s.Entries, 2)

	s = mustApply(t, s, SectionDeleted{SectionID: 0})
	assert.Len(t, s.Entries, 2)
}

func TestFieldChangedMergesIntoExistingEntry(t *testing.T) {
	s := loaded(t, "Id", "Parent")

	lookup := domain.MappingEntry{
		KeyField:             "Parent",
		CSVFieldName:         "Parent",
		SelectedField:        "ParentId",
		IsLookup:             true,
		LookupObjectAPIName:  "Account",
		LookupObjectName:     "Account",
		SelectedLookupFields: []string{"Name"},
		WhereClause:          "IsDeleted = false",
	}
	s2 := mustApply(t, s, FieldChanged{Change: Change{Entry: lookup}})

	e, ok := s2.Entry("Parent")
	require.True(t, ok)
	assert.Equal(t, "ParentId", e.SelectedField)
	assert.Equal(t, "Account", e.LookupObjectAPIName)
	assert.Equal(t, []string{"Name"}, e.SelectedLookupFields)
	assert.Len(t, s2.Entries, 2)

	orig, _ := s.Entry("Parent")
	assert.False(t, orig.IsLookup, "input state must not change")

	s3 := mustApply(t, s2, FieldChanged{Change: Change{Entry: domain.MappingEntry{KeyField: "Parent", SelectedField: "Description"}}})
	e, _ = s3.Entry("Parent")
	assert.Equal(t, "Description", e.SelectedField)
	assert.False(t, e.IsLookup)
	assert.Empty(t, e.LookupObjectAPIName)
	assert.Empty(t, e.SelectedLookupFields)
	assert.Empty(t, e.WhereClause)
	assert.Equal(t, "Parent", e.CSVFieldName)
}

func TestFieldChangedUnknownKeyField(t *testing.T) {
	s := loaded(t, "Id", "Email")

	_, err := Apply(s, FieldChanged{Change: Change{Entry: domain.MappingEntry{KeyField: "nope"}}})
	assert.ErrorIs(t, err, ErrUnknownKeyField)

	s = mustApply(t, s, FieldChanged{Change: Change{Entry: domain.MappingEntry{
		KeyField:      "Email-extra",
		CSVFieldName:  "Email",
		SelectedField: "PersonEmail",
		IsAdditional:  true,
	}}})
	require.Len(t, s.Entries, 3)
	assert.True(t, s.Entries[2].IsAdditional)
}

func TestAdditionalMappingAdded(t *testing.T) {
	s := mustApply(t, loaded(t, "Id", "Email"),
		AdditionalMappingAdded{Header: "Email"},
		AdditionalMappingAdded{Header: "Email"},
	)
	require.Len(t, s.Entries, 4)
	assert.Equal(t, "Email__EXTRA_0", s.Entries[2].KeyField)
	assert.Equal(t, "Email__EXTRA_1", s.Entries[3].KeyField)
	assert.Empty(t, s.Entries[2].SelectedField)

	_, err := Apply(s, AdditionalMappingAdded{Header: "Phone"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestMappingDeleted(t *testing.T) {
	s := mustApply(t, loaded(t, "A", "B"), AdditionalMappingAdded{Header: "A"})
	s = withComposite(t, s, "A", "B")
	require.Len(t, s.Entries, 4)

	s = mustApply(t, s, MappingDeleted{KeyField: "A__EXTRA_0"})
	assert.Len(t, s.Entries, 3)

	s = mustApply(t, s, MappingDeleted{KeyField: "A,B__COMPOSITE_0"})
	assert.Len(t, s.Entries, 2)
	assert.Empty(t, s.Composites)
	assert.Len(t, s.HeaderOptions, 2)

	same := mustApply(t, s, MappingDeleted{KeyField: "missing"})
	assert.Equal(t, s, same)
}

func TestTargetSelectedDropsLookupsOnObjectChange(t *testing.T) {
	s := mustApply(t, loaded(t, "Owner"), TargetSelected{ObjectName: "Account", Operation: domain.OperationInsert})
	s = mustApply(t, s, FieldChanged{Change: Change{Entry: domain.MappingEntry{
		KeyField: "Owner", SelectedField: "OwnerId", IsLookup: true, LookupObjectAPIName: "User",
	}}})

	same := mustApply(t, s, TargetSelected{ObjectName: "Account", Operation: domain.OperationUpsert})
	e, _ := same.Entry("Owner")
	assert.True(t, e.IsLookup)

	other := mustApply(t, s, TargetSelected{ObjectName: "Contact", Operation: domain.OperationInsert})
	e, _ = other.Entry("Owner")
	assert.False(t, e.IsLookup)
	assert.Equal(t, "Owner", e.SelectedField)

	_, err := Apply(s, TargetSelected{ObjectName: "", Operation: domain.OperationInsert})
	assert.ErrorIs(t, err, ErrNoObject)
	_, err = Apply(s, TargetSelected{ObjectName: "Account", Operation: "Merge"})
	assert.ErrorIs(t, err, ErrNoOperation)
}

func TestUniqueKeySingle(t *testing.T) {
	s := mustApply(t, loaded(t, "Id", "Name", "Email"),
		TargetSelected{ObjectName: "Account", Operation: domain.OperationUpdate},
		UniqueKeyColumnToggled{Column: "Id", Checked: true},
		UniqueKeyColumnToggled{Column: "Email", Checked: true},
	)
	assert.Equal(t, []string{"Email"}, s.UniqueKey.Checked)

	s = mustApply(t, s, UniqueKeyCreated{})
	assert.Equal(t, []string{"Email"}, s.UniqueKey.Columns)
	e, _ := s.Entry("Email")
	assert.True(t, e.IsUniqueKey)
	e, _ = s.Entry("Id")
	assert.False(t, e.IsUniqueKey)

	s = mustApply(t, s, UniqueKeyColumnToggled{Column: "Id", Checked: true}, UniqueKeyCreated{})
	e, _ = s.Entry("Email")
	assert.False(t, e.IsUniqueKey, "a new single key replaces the previous one")

	s = mustApply(t, s, UniqueKeyColumnToggled{Column: "Id", Checked: false})
	_, err := Apply(s, UniqueKeyCreated{})
	assert.ErrorIs(t, err, ErrSingleKeyColumn)
}

func TestUniqueKeyMulti(t *testing.T) {
	s := mustApply(t, loaded(t, "Id", "Name", "Email"),
		TargetSelected{ObjectName: "Contact", Operation: domain.OperationUpsert},
		UniqueKeyModeSet{Mode: UniqueKeyMulti},
	)
	_, err := Apply(s, UniqueKeyCreated{})
	assert.ErrorIs(t, err, ErrNoUniqueKeyColumns)

	s = mustApply(t, s,
		UniqueKeyColumnToggled{Column: "Name", Checked: true},
		UniqueKeyColumnToggled{Column: "Email", Checked: true},
		UniqueKeyCreated{},
	)
	assert.Equal(t, []string{"Name", "Email"}, s.UniqueKey.Columns)

	_, err = Apply(s, UniqueKeyModeSet{Mode: "both"})
	assert.ErrorIs(t, err, ErrInvalidUniqueKeyMode)
	_, err = Apply(s, UniqueKeyColumnToggled{Column: "Phone", Checked: true})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	s = mustApply(t, s, MappingDeleted{KeyField: "Email"})
	assert.Equal(t, []string{"Name"}, s.UniqueKey.Columns)
}

func TestUniqueKeyOnlyForUpdateAndUpsert(t *testing.T) {
	s := mustApply(t, loaded(t, "Id"), TargetSelected{ObjectName: "Account", Operation: domain.OperationInsert})
	_, err := Apply(s, UniqueKeyColumnToggled{Column: "Id", Checked: true})
	assert.ErrorIs(t, err, ErrUniqueKeyNotApplicable)

	s = mustApply(t, s,
		TargetSelected{ObjectName: "Account", Operation: domain.OperationUpdate},
		UniqueKeyColumnToggled{Column: "Id", Checked: true},
		UniqueKeyCreated{},
	)
	require.True(t, s.UniqueKey.Defined())

	s = mustApply(t, s, TargetSelected{ObjectName: "Account", Operation: domain.OperationInsert})
	assert.False(t, s.UniqueKey.Defined())
	assert.False(t, s.Entries[0].IsUniqueKey)
}

func TestMappedColumns(t *testing.T) {
	s := mustApply(t, loaded(t, "A", "B", "C", "D"), AdditionalMappingAdded{Header: "D"})
	s = withComposite(t, s, "B", "C")
	s = mustApply(t, s,
		FieldChanged{Change: Change{Entry: domain.MappingEntry{KeyField: "A", SelectedField: ""}}},
		FieldChanged{Change: Change{Entry: domain.MappingEntry{
			KeyField: "D", SelectedField: "OwnerId", IsLookup: true, ExtraCSVFields: []string{"A"},
		}}},
	)
	assert.Equal(t, []string{"B", "C", "D", "A"}, s.MappedColumns())
}
