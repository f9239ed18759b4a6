package loaders

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateAndRead_CSV(t *testing.T) {
	path := writeFile(t, "contacts.csv", "\ufeffid,name,email\n1,Ada,ada@example.com\n2,\"Lovelace, A\",\n")

	ok, log, ds := ValidateAndRead(path, "csv", DefaultOptions())
	require.True(t, ok, log.Strings())

	assert.Equal(t, []string{"id", "name", "email"}, ds.Columns())
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, "Lovelace, A", ds.Value(1, "name"))
	assert.Equal(t, "", ds.Value(1, "email"))

	assert.Equal(t, []string{
		"<" + path + ", passed, Verify File Exists: Passed for " + path + ">",
		"<" + path + ", passed, Verify File Extension: Passed for extension csv for file " + path + ">",
		"<" + path + ", passed, Verify File Read: Passed for " + path + ">",
	}, log.Strings())
}

func TestValidateAndRead_PSV(t *testing.T) {
	path := writeFile(t, "orders.psv", "id|qty\n1|5\n2\n")

	ok, _, ds := ValidateAndRead(path, "PSV", DefaultOptions())
	require.True(t, ok)
	assert.Equal(t, "5", ds.Value(0, "qty"))
	assert.Nil(t, ds.Value(1, "qty"), "short rows are padded")
}

func TestValidateAndRead_JSON(t *testing.T) {
	path := writeFile(t, "people.json", `[
		{"zeta": "z", "id": 1, "active": true},
		{"id": 2, "extra": null}
	]`)

	ok, _, ds := ValidateAndRead(path, "json", DefaultOptions())
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "id", "active", "extra"}, ds.Columns())
	assert.Equal(t, 1.0, ds.Value(0, "id"))
	assert.Equal(t, true, ds.Value(0, "active"))
	assert.Nil(t, ds.Value(1, "zeta"))
}

func TestValidateAndRead_Excel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"id", "name"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"1", "Ada"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"2", "Grace"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ok, _, ds := ValidateAndRead(path, "xlsx", DefaultOptions())
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name"}, ds.Columns())
	assert.Equal(t, "Grace", ds.Value(1, "name"))

	ok, log, _ := ValidateAndRead(path, "xlsx", Options{CheckExtension: true, Sheet: "Nope"})
	assert.False(t, ok)
	assert.False(t, log.Passed())
}

func TestValidateAndRead_Failures(t *testing.T) {
	csvPath := writeFile(t, "data.csv", "a\n1\n")

	tests := []struct {
		name     string
		path     string
		fileType string
		opts     Options
		contains string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.csv"), "csv", DefaultOptions(), "Verify File Exists: Failed"},
		{"wrong extension", csvPath, "psv", DefaultOptions(), "Verify File Extension: Failed for extension psv"},
		{"unknown type", csvPath, "xml", DefaultOptions(), "Verify File Extension: Failed"},
		{"unknown type without extension check", csvPath, "xml", Options{}, "unsupported file type"},
		{"empty file", writeFile(t, "empty.csv", ""), "csv", DefaultOptions(), "no header row"},
		{"bad json", writeFile(t, "bad.json", "{"), "json", DefaultOptions(), "Verify File Read: Failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, log, ds := ValidateAndRead(tt.path, tt.fileType, tt.opts)
			assert.False(t, ok)
			assert.Nil(t, ds)
			failed := log.Failed()
			require.Len(t, failed, 1)
			assert.Contains(t, failed[0].Message, tt.contains)
			assert.Equal(t, tt.path, failed[0].Subject)
		})
	}
}

func TestReadDelimited_NoHeader(t *testing.T) {
	_, err := ReadDelimited(strings.NewReader(""), ',')
	assert.True(t, errors.Is(err, ErrNoHeader))
}

func TestReadSchemaDocument(t *testing.T) {
	path := writeFile(t, "schema.json", `{"fields": ["a"], "unique": "a", "validations": {"required": {"fields": ["a"]}}}`)
	ok, log, doc := ReadSchemaDocument(path)
	require.True(t, ok)
	assert.True(t, log.Passed())
	assert.Equal(t, []string{"a"}, doc.Fields)
	assert.Equal(t, []string{"required"}, doc.Validations.Keys())

	yamlPath := writeFile(t, "schema.yaml", "fields: [a]\nunique: a\nvalidations:\n  required:\n    fields: [a]\n")
	ok, _, doc = ReadSchemaDocument(yamlPath)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, doc.Unique)

	ok, _, doc = ReadSchemaDocument(writeFile(t, "broken.json", "{"))
	assert.False(t, ok)
	assert.True(t, doc.Invalid)

	ok, _, doc = ReadSchemaDocument(filepath.Join(t.TempDir(), "absent.json"))
	assert.False(t, ok)
	assert.True(t, doc.Invalid)
	assert.NotEmpty(t, doc.Messages)
}
