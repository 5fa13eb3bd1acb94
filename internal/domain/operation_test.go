package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation(" update ")
	require.NoError(t, err)
	assert.Equal(t, OperationUpdate, op)

	_, err = ParseOperation("delete")
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestOperationUniqueKeyRules(t *testing.T) {
	assert.False(t, OperationInsert.AllowsUniqueKey())
	assert.True(t, OperationUpsert.AllowsUniqueKey())
	assert.False(t, OperationUpsert.RequiresUniqueKey())
	assert.True(t, OperationUpdate.RequiresUniqueKey())
}

func TestMappingEntryColumns(t *testing.T) {
	e := MappingEntry{CSVFieldName: "First,Last", IsComposite: true}
	assert.Equal(t, []string{"First", "Last"}, e.Columns())

	e = MappingEntry{CSVFieldName: "First,Last"}
	assert.Equal(t, []string{"First,Last"}, e.Columns())
}

func TestMappingEntryCloneIsDeep(t *testing.T) {
	e := MappingEntry{
		SelectedLookupFields: []string{"Name"},
		PartLookupFields:     map[string]string{"A": "Name"},
	}
	c := e.Clone()
	c.SelectedLookupFields[0] = "Email"
	c.PartLookupFields["A"] = "Email"

	assert.Equal(t, "Name", e.SelectedLookupFields[0])
	assert.Equal(t, "Name", e.PartLookupFields["A"])
}
