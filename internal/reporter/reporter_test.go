package reporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"file-validator-service/internal/dataset"
	"file-validator-service/internal/engine"
	"file-validator-service/internal/rules"
	"file-validator-service/internal/schema"
)

var fixedTime = time.Date(2024, 3, 13, 23, 2, 37, 0, time.UTC)

func validate(t *testing.T, doc string, ds *dataset.Dataset, path string) *engine.Run {
	t.Helper()
	s, err := schema.NewCompiler(nil, schema.DefaultOptions()).Compile("CONTACTS", schema.ParseDocument([]byte(doc), schema.FormatJSON))
	require.NoError(t, err)
	v := engine.NewValidator(engine.Options{Now: func() time.Time { return fixedTime }})
	return v.Validate(ds, s, rules.Context{FilePath: path, FileType: "csv"})
}

func TestBuild_AttributeFailures(t *testing.T) {
	run := validate(t, `{
		"fields":["id","email","gender"],"unique":"id",
		"validations":{
			"required":{"fields":["email"]},
			"match_enum":{"fields":["gender"],"constraint":["M","F"],"message":"{} is not one of {}"}
		}
	}`, dataset.New([]string{"id", "email", "gender"}, [][]any{
		{"1", "a@example.com", "M"},
		{"2", "", "F"},
		{"3", "c@example.com", "X"},
	}), "contacts.csv")

	report := New().Build(run, Options{FilePath: "contacts.csv", FileType: "csv"})

	assert.False(t, report.Passed)
	assert.False(t, report.FileFailed)
	assert.Equal(t, "CONTACTS", report.SchemaType)

	assert.Equal(t, []string{ColSummary, ColDetails}, report.Summary.Columns)
	assert.Equal(t, [][]string{
		{"File path", "contacts.csv"},
		{"File Type", "CONTACTS"},
		{"Ran at", "2024-03-13 23:02:37"},
		{"Validated Attributes", "[id, email, gender]"},
		{"Total Number of Records", "3"},
		{"", ""},
		{"Rule Summary", ""},
		{"", ""},
		{"FV_009: Failures", "1"},
		{"FV_009: Passes", "2"},
		{"FV_014: Failures", "1"},
		{"FV_014: Passes", "2"},
	}, report.Summary.Rows)

	assert.Equal(t, DetailedColumns, report.Detailed.Columns)
	require.Equal(t, 2, report.Detailed.Len())
	assert.Equal(t, []string{
		"FV_009", "Attribute", "Completeness", "CONTACTS", "2", "email", "", "email is required",
	}, report.Detailed.Rows[0])
	assert.Equal(t, []string{
		"FV_014", "Attribute", "Allowed Values", "CONTACTS", "3", "gender", "X", "X is not one of [M, F]",
	}, report.Detailed.Rows[1])

	recs := report.Detailed.Records()
	assert.Equal(t, "gender", recs[1]["Attribute"])
}

func TestBuild_PassingRunHasNoRuleLines(t *testing.T) {
	run := validate(t, `{"fields":["id"],"unique":"id","validations":{"required":{"fields":["id"]}}}`,
		dataset.New([]string{"id"}, [][]any{{"1"}, {"2"}}), "ids.csv")

	report := New().Build(run, Options{FilePath: "ids.csv", RecordCount: 10})

	assert.True(t, report.Passed)
	assert.Len(t, report.Summary.Rows, 8)
	assert.Equal(t, "10", report.Summary.Rows[4][1], "explicit record count wins")
	assert.Equal(t, 0, report.Detailed.Len())
	require.Len(t, report.RuleCounts, 1)
	assert.Equal(t, RuleCount{ID: "FV_009", Type: "RequiredAttributeValidation", Passes: 2}, report.RuleCounts[0])
}

func TestBuild_FileLevelFailure(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		ds   *dataset.Dataset
	}{
		{
			name: "missing columns",
			doc:  `{"fields":["id","email"],"unique":"id","validations":{"check_column_headers":{"fields":["FILE"]},"required":{"fields":["id"]}}}`,
			ds:   dataset.New([]string{"id"}, [][]any{{"1"}}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := validate(t, tt.doc, tt.ds, "data.csv")
			report := New().Build(run, Options{FilePath: "data.csv"})

			assert.False(t, report.Passed)
			assert.True(t, report.FileFailed)
			assert.Equal(t, []string{ColName, ColStatus, ColDescription}, report.Summary.Columns)
			assert.NotEmpty(t, report.Summary.Rows)
			assert.Equal(t, 0, report.Detailed.Len())

			var failed bool
			for _, row := range report.Summary.Rows {
				if row[0] == "data.csv" && row[1] == "failed" {
					failed = true
				}
			}
			assert.True(t, failed, "the file failure is listed")
		})
	}
}

func TestBuild_FileRuleFailuresAreDetailed(t *testing.T) {
	run := validate(t, `{
		"fields":["id","name"],"unique":"id",
		"validations":{
			"file_type":{"fields":["FILE"],"constraint":["psv"]},
			"check_unique":{"fields":["id"]},
			"required":{"fields":["name"]}
		}
	}`, dataset.New([]string{"id", "name"}, [][]any{
		{"1", "Ann"},
		{"2", "Bob"},
		{"2", ""},
		{"3", "Dan"},
	}), "data.csv")

	report := New().Build(run, Options{FilePath: "data.csv"})

	assert.False(t, report.Passed)
	assert.False(t, report.FileFailed)
	assert.Equal(t, []string{ColSummary, ColDetails}, report.Summary.Columns)
	assert.Contains(t, report.Summary.Rows, []string{"FV_002: Failures", "1"})
	assert.Contains(t, report.Summary.Rows, []string{"FV_004: Failures", "1"})
	assert.Contains(t, report.Summary.Rows, []string{"FV_009: Failures", "1"})

	require.Equal(t, 3, report.Detailed.Len())
	fileType, unique, required := report.Detailed.Rows[0], report.Detailed.Rows[1], report.Detailed.Rows[2]

	assert.Equal(t, "FV_002", fileType[0])
	assert.Equal(t, []string{"data.csv", "FILE", NotApplicable}, fileType[4:7])

	assert.Equal(t, "FV_004", unique[0])
	assert.Equal(t, []string{"data.csv", "id", NotApplicable}, unique[4:7])

	assert.Equal(t, "FV_009", required[0])
	assert.Equal(t, []string{"2", "name", ""}, required[4:7])
}

func TestBuild_NilRun(t *testing.T) {
	report := New(WithClock(func() time.Time { return fixedTime })).Build(nil, Options{FilePath: "x.csv"})
	assert.True(t, report.FileFailed)
	assert.Equal(t, fixedTime, report.RanAt)
	assert.Equal(t, 0, report.Summary.Len())
}

func TestMessageMap(t *testing.T) {
	custom := rules.New(rules.Definition{
		Kind:  rules.KindCustom,
		Type:  "PostcodeValidation",
		Check: func(any) (bool, error) { return true, nil },
	}, rules.Params{ValidateKey: "postcode", Attribute: "zip"})
	required := rules.New(rules.Definition{Kind: rules.KindRequired}, rules.Params{ValidateKey: "required", Attribute: "id"})

	m := DefaultMessageMap()
	assert.Equal(t, "FV_009", m.ID(required))
	assert.Equal(t, "PostcodeValidation", m.ID(custom), "unknown types fall back to the type name")

	r := New(WithMessageMap(MessageMap{"PostcodeValidation": "CDP_AT_051", "RequiredAttributeValidation": "CDP_AT_001"}))
	assert.Equal(t, "CDP_AT_051", r.messages.ID(custom))
	assert.Equal(t, "CDP_AT_001", r.messages.ID(required))
	assert.Equal(t, "FV_001", r.messages.ID(rules.New(rules.Definition{Kind: rules.KindFileName}, rules.Params{})))
}
