package mapping

import (
	"testing"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/service/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountCatalog() *catalog.Cache {
	c := &catalog.Cache{}
	t := c.Begin("Account")
	c.Complete(t, []domain.Field{
		{Label: "Account ID", APIName: "Id"},
		{Label: "Account Name", APIName: "Name"},
		{Label: "Parent Account", APIName: "ParentId", IsLookup: true},
		{Label: "Operating Hours", APIName: "OperatingHoursId", IsLookup: true},
	})
	return c
}

var operatingHourFields = domain.LookupFields{
	LookupObjectName: "OperatingHour",
	Fields: []domain.Field{
		{Label: "Name", APIName: "Name"},
		{Label: "Time Zone", APIName: "TimeZone"},
	},
}

func TestCellSimpleField(t *testing.T) {
	c := NewCell(domain.MappingEntry{CSVFieldName: "Name", SelectedField: "Name", KeyField: "Name"})
	assert.Equal(t, CellUnmapped, c.State)

	ch, req := c.Select("Name", accountCatalog())
	assert.Nil(t, req)
	assert.Equal(t, CellSimpleMapped, c.State)
	assert.Equal(t, "Name", ch.Entry.SelectedField)
	assert.False(t, ch.Entry.IsLookup)

	ch, req = c.Select("", accountCatalog())
	assert.Nil(t, req)
	assert.Equal(t, CellUnmapped, c.State)
	assert.False(t, ch.Entry.Mapped())
}

func TestCellPrimaryKeyResolvesWithoutFetch(t *testing.T) {
	cat := accountCatalog()
	c := NewCell(domain.MappingEntry{CSVFieldName: "Id", KeyField: "Id"})

	ch, req := c.Select("Id", cat)
	assert.Nil(t, req, "no round trip for the record id")
	assert.Equal(t, CellLookupResolved, c.State)
	assert.True(t, ch.Entry.IsLookup)
	assert.Equal(t, "Account", ch.Entry.LookupObjectAPIName)
	assert.Equal(t, cat.AllFields, ch.Entry.LookupObjectOptions)
}

func TestCellLookupResolve(t *testing.T) {
	c := NewCell(domain.MappingEntry{CSVFieldName: "Hours", KeyField: "Hours"})

	ch, req := c.Select("OperatingHoursId", accountCatalog())
	require.NotNil(t, req)
	assert.Equal(t, CellLookupPending, c.State)
	assert.True(t, ch.Entry.IsLookup)
	assert.Equal(t, LookupRequest{KeyField: "Hours", ObjectName: "Account", Field: "OperatingHoursId", Seq: 1}, *req)

	ch, ok := c.Resolve(*req, operatingHourFields)
	require.True(t, ok)
	assert.Equal(t, CellLookupResolved, c.State)
	assert.Equal(t, "OperatingHour", ch.Entry.LookupObjectAPIName)
	assert.Equal(t, "Operating Hour", ch.Entry.LookupObjectName)
	assert.Len(t, ch.Entry.LookupObjectOptions, 2)
}

func TestCellDiscardsStaleLookup(t *testing.T) {
	cat := accountCatalog()
	c := NewCell(domain.MappingEntry{CSVFieldName: "Ref", KeyField: "Ref"})

	_, first := c.Select("ParentId", cat)
	_, second := c.Select("OperatingHoursId", cat)
	require.NotNil(t, first)
	require.NotNil(t, second)

	_, ok := c.Resolve(*first, domain.LookupFields{LookupObjectName: "Account"})
	assert.False(t, ok)
	assert.Equal(t, CellLookupPending, c.State)

	_, ok = c.Resolve(*second, operatingHourFields)
	assert.True(t, ok)

	c.Select("Name", cat)
	_, ok = c.Resolve(*second, operatingHourFields)
	assert.False(t, ok)
	assert.Equal(t, CellSimpleMapped, c.State)
}

func TestCellAbandon(t *testing.T) {
	c := NewCell(domain.MappingEntry{CSVFieldName: "Ref", KeyField: "Ref"})
	_, req := c.Select("ParentId", accountCatalog())

	assert.True(t, c.Abandon(*req))
	assert.False(t, c.Abandon(*req))
	_, ok := c.Resolve(*req, operatingHourFields)
	assert.False(t, ok)
}

func TestCellLookupFieldsAndExtraColumns(t *testing.T) {
	c := NewCell(domain.MappingEntry{CSVFieldName: "Hours", KeyField: "Hours"})
	_, req := c.Select("OperatingHoursId", accountCatalog())

	_, err := c.SelectLookupFields([]string{"Name"})
	assert.ErrorIs(t, err, ErrLookupNotResolved)

	c.Resolve(*req, operatingHourFields)
	_, err = c.SelectLookupFields([]string{"Bogus"})
	assert.ErrorIs(t, err, ErrUnknownField)

	ch, err := c.SelectLookupFields([]string{"Name", "TimeZone", "Name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "TimeZone"}, ch.Entry.SelectedLookupFields)
	require.Len(t, c.Slots, 2)
	assert.Equal(t, "Time Zone", c.Slots[1].Label)

	_, err = c.SetExtraCSVField("Name", "HoursName")
	require.NoError(t, err)
	ch, err = c.SetExtraCSVField("TimeZone", "HoursName")
	require.NoError(t, err)
	assert.Equal(t, []string{"HoursName"}, ch.Entry.ExtraCSVFields)

	ch, err = c.SetExtraCSVField("TimeZone", "Tz")
	require.NoError(t, err)
	assert.Equal(t, []string{"HoursName", "Tz"}, ch.Entry.ExtraCSVFields)

	ch, err = c.SelectLookupFields([]string{"TimeZone"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tz"}, ch.Entry.ExtraCSVFields)

	_, err = c.SetExtraCSVField("Name", "HoursName")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestCellWhereClauseAndReset(t *testing.T) {
	c := NewCell(domain.MappingEntry{CSVFieldName: "Parent", KeyField: "Parent"})

	_, err := c.SetWhereClause("Name != null")
	assert.ErrorIs(t, err, ErrNotLookup)

	c.Select("Id", accountCatalog())
	ch, err := c.SetWhereClause("  Type = 'Customer' ")
	require.NoError(t, err)
	assert.Equal(t, "Type = 'Customer'", ch.Entry.WhereClause)

	ch = c.Reset()
	assert.Equal(t, CellUnmapped, c.State)
	assert.Equal(t, "Parent", ch.Entry.SelectedField)
	assert.False(t, ch.Entry.IsLookup)
	assert.Empty(t, ch.Entry.WhereClause)
}

func TestCellChangeFeedsReducer(t *testing.T) {
	s := loaded(t, "Id", "Hours")
	cells := ReconcileCells(nil, s.Entries)
	require.Len(t, cells, 2)

	cell := cells["Hours"]
	_, req := cell.Select("OperatingHoursId", accountCatalog())
	ch, ok := cell.Resolve(*req, operatingHourFields)
	require.True(t, ok)
	s = mustApply(t, s, FieldChanged{Change: ch})

	e, _ := s.Entry("Hours")
	assert.Equal(t, "OperatingHoursId", e.SelectedField)
	assert.Equal(t, "Operating Hour", e.LookupObjectName)

	s = mustApply(t, s, MappingDeleted{KeyField: "Id"})
	cells = ReconcileCells(cells, s.Entries)
	assert.Len(t, cells, 1)
	assert.Same(t, cell, cells["Hours"])
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"OperatingHour":    "Operating Hour",
		"Account":          "Account",
		"ServiceTerritory": "Service Territory",
		"Work Order":       "Work Order",
		"":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, DisplayName(in), in)
	}
}
