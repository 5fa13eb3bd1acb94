package csvfile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	h := ParseHeader("Id, Name ,Email\r\n1,Acme,a@b.co\r\n\r\n2,Beta,c@d.co\n")
	assert.Equal(t, []string{"Id", "Name", "Email"}, h.Columns)
	assert.Equal(t, 2, h.TotalRecords)
}

func TestParseHeaderEmpty(t *testing.T) {
	h := ParseHeader("\n  \n")
	assert.Empty(t, h.Columns)
	assert.Equal(t, 0, h.TotalRecords)
}

func TestParseEmptyFile(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse(" \n\n")
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestParseSkipsMalformedRows(t *testing.T) {
	text := "Id,Name\n1,Acme\n2,\"Beta, Inc\"\n3,Gamma\n4\n"

	f, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, 4, f.TotalRecords)
	require.Len(t, f.Rows, 2)
	assert.Equal(t, 2, f.Skipped)
	assert.Equal(t, []int{3, 5}, f.SkippedLines)

	for _, r := range f.Rows {
		assert.Equal(t, len(f.Columns), r.Len())
	}
	name, ok := f.Rows[1].Get("Name")
	require.True(t, ok)
	assert.Equal(t, "Gamma", name)
}

func TestParseHeaderOnly(t *testing.T) {
	f, err := Parse("Id,Name\n")
	require.NoError(t, err)
	assert.Equal(t, 0, f.TotalRecords)
	assert.Empty(t, f.Rows)
}

func TestRecordFilterAndJSON(t *testing.T) {
	f, err := Parse("Id,Name,Email\n1,Acme,ops@acme.io\n")
	require.NoError(t, err)

	rec := f.Rows[0].Filter([]string{"Email", "Id", "Missing"})
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"Id":"1","Email":"ops@acme.io"}`, string(data))

	assert.Equal(t, 3, f.Rows[0].Filter(nil).Len())
}

func TestRecordDuplicateColumnKeepsLastValue(t *testing.T) {
	f, err := Parse("Name,Name\nfirst,second\n")
	require.NoError(t, err)

	require.Len(t, f.Rows, 1)
	v, _ := f.Rows[0].Get("Name")
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, f.Rows[0].Len())
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "myaccounts.csv", SanitizeFileName("my_accounts.csv"))
	assert.Equal(t, "accounts.v2.csv", SanitizeFileName("C:\\tmp\\accounts.v2.csv"))
	assert.Equal(t, "plain", SanitizeFileName("plain"))
}
