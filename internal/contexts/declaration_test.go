package contexts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmin-pingu/ihcl/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseDelimited(t *testing.T) {
	input := "skills, skills.txt\n\n  experience ,resume.pdf  \njob posting,https://jobs.example.com/1\n"

	entries, err := ParseDelimited(strings.NewReader(input), "contexts.csv", ",")
	require.NoError(t, err)
	assert.Equal(t, []types.Entry{
		{Description: "skills", Path: "skills.txt"},
		{Description: "experience", Path: "resume.pdf"},
		{Description: "job posting", Path: "https://jobs.example.com/1"},
	}, entries)
}

func TestParseDelimited_CustomDelimiter(t *testing.T) {
	entries, err := ParseDelimited(strings.NewReader("skills|a, b.txt"), "contexts", "|")
	require.NoError(t, err)
	assert.Equal(t, []types.Entry{{Description: "skills", Path: "a, b.txt"}}, entries)
}

func TestParseDelimited_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{"one field", "onlyonefield", 1},
		{"three fields", "skills, a.txt\nexp, b.txt, extra", 2},
		{"empty path", "skills,   ", 1},
		{"empty description", "\n , resume.pdf", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDelimited(strings.NewReader(tt.input), "contexts.csv", ",")
			require.Error(t, err)

			var malformed *MalformedInputError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.wantLine, malformed.Line)
			assert.Equal(t, "description, path", malformed.Expected)
			assert.Contains(t, err.Error(), "description, path")
			assert.Contains(t, err.Error(), "contexts.csv")
		})
	}
}

func TestParseDelimited_Empty(t *testing.T) {
	_, err := ParseDelimited(strings.NewReader("\n   \n"), "contexts.csv", ",")

	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "no entries")
}

func TestLoadDeclaration_Delimited(t *testing.T) {
	path := writeFile(t, "contexts.txt", "skills;skills.txt\nexperience;resume.pdf\n")

	decl, err := LoadDeclaration(path, ";")
	require.NoError(t, err)

	runs := decl.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, DefaultRunName, runs[0].Name)
	assert.Len(t, runs[0].Entries, 2)
}

func TestLoadDeclaration_YAML(t *testing.T) {
	path := writeFile(t, "contexts.yaml", `
fixed:
  - description: skills
    path: skills.txt
variable:
  bob:
    - description: job posting
      path: https://jobs.example.com/bob
  alice:
    - description: job posting
      path: https://jobs.example.com/alice
    - description: referral
      path: referral.docx
`)

	decl, err := LoadDeclaration(path, "")
	require.NoError(t, err)

	runs := decl.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, "alice", runs[0].Name)
	assert.Equal(t, []types.Entry{
		{Description: "skills", Path: "skills.txt"},
		{Description: "job posting", Path: "https://jobs.example.com/alice"},
		{Description: "referral", Path: "referral.docx"},
	}, runs[0].Entries)
	assert.Equal(t, "bob", runs[1].Name)
	assert.Len(t, runs[1].Entries, 2)
}

func TestLoadDeclaration_YAMLUnknownField(t *testing.T) {
	path := writeFile(t, "contexts.yml", "fixed:\n  - description: skills\n    file: skills.txt\n")

	_, err := LoadDeclaration(path, "")
	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
}

func TestLoadDeclaration_YAMLMissingPath(t *testing.T) {
	path := writeFile(t, "contexts.yaml", "fixed:\n  - description: skills\n")

	_, err := LoadDeclaration(path, "")
	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 1, malformed.Line)
}

func TestLoadDeclaration_BadVariableSetFailsOnlyItsRun(t *testing.T) {
	path := writeFile(t, "contexts.yaml", `
variable:
  good:
    - description: skills
      path: skills.txt
  bad:
    - description: referral
`)

	decl, err := LoadDeclaration(path, "")
	require.NoError(t, err)

	runs := decl.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, "bad", runs[0].Name)
	assert.Equal(t, "good", runs[1].Name)

	var malformed *MalformedInputError
	require.ErrorAs(t, ValidateEntries(runs[0].Entries), &malformed)
	assert.Equal(t, 1, malformed.Line)
	assert.NoError(t, ValidateEntries(runs[1].Entries))
}

func TestLoadDeclaration_YAMLEmpty(t *testing.T) {
	path := writeFile(t, "contexts.yaml", "")

	_, err := LoadDeclaration(path, "")
	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "no entries")
}

func TestLoadDeclaration_TOML(t *testing.T) {
	path := writeFile(t, "contexts.toml", `
[[fixed]]
description = "skills"
path = "skills.txt"

[[variable.data-role]]
description = "job posting"
path = "https://jobs.example.com/1"
`)

	decl, err := LoadDeclaration(path, "")
	require.NoError(t, err)

	runs := decl.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "data-role", runs[0].Name)
	assert.Equal(t, []types.Entry{
		{Description: "skills", Path: "skills.txt"},
		{Description: "job posting", Path: "https://jobs.example.com/1"},
	}, runs[0].Entries)
}

func TestLoadDeclaration_TOMLUnknownField(t *testing.T) {
	path := writeFile(t, "contexts.toml", "[[fixed]]\ndescription = \"skills\"\nsource = \"skills.txt\"\n")

	_, err := LoadDeclaration(path, "")
	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
}

func TestLoadDeclaration_MissingFile(t *testing.T) {
	_, err := LoadDeclaration(filepath.Join(t.TempDir(), "nope.csv"), ",")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRuns_DoNotShareBackingArrays(t *testing.T) {
	decl := &Declaration{
		Fixed: make([]types.Entry, 1, 4),
		Variable: map[string][]types.Entry{
			"a": {{Description: "x", Path: "a.txt"}},
			"b": {{Description: "y", Path: "b.txt"}},
		},
	}
	decl.Fixed[0] = types.Entry{Description: "f", Path: "f.txt"}

	runs := decl.Runs()
	assert.Equal(t, "a.txt", runs[0].Entries[1].Path)
	assert.Equal(t, "b.txt", runs[1].Entries[1].Path)
}
