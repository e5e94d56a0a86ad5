package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchVerb(t *testing.T) {
	tables := Default()

	tests := []struct {
		token string
		want  string
	}{
		{"search", "search"},
		{"searches", "search"},
		{"searching", "search"},
		{"sends", "send"},
		{"generating", "generate"},
		{"generated", "generate"},
		{"analyzes", "analyze"},
		{"notifies", "notify"},
		{"frobnicate", ""},
		{"email", ""},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, tables.MatchVerb(tt.token))
		})
	}
}

func TestMatchDomain(t *testing.T) {
	tables := Default()

	assert.Equal(t, "email", tables.MatchDomain("email"))
	assert.Equal(t, "email", tables.MatchDomain("emails"))
	assert.Equal(t, "memory", tables.MatchDomain("memory"))
	assert.Equal(t, "", tables.MatchDomain("spaceship"))
}

func TestIsDependencySection(t *testing.T) {
	tables := Default()

	assert.True(t, tables.IsDependencySection("Dependencies"))
	assert.True(t, tables.IsDependencySection("Integration Points"))
	assert.False(t, tables.IsDependencySection("Usage"))
}

func TestIsStopWord(t *testing.T) {
	tables := Default()

	assert.True(t, tables.IsStopWord("the"))
	assert.False(t, tables.IsStopWord("email"))
}

func TestParse_OverridesOnlyGivenLists(t *testing.T) {
	tables, err := Parse([]byte("verbs: [launch, land]\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"launch", "land"}, tables.Verbs)
	assert.Equal(t, Default().Domains, tables.Domains)
	assert.Equal(t, "launch", tables.MatchVerb("launching"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domains:\n  - rocket\n"), 0644))

	tables, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "rocket", tables.MatchDomain("rockets"))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("verbs: [unterminated"))
	assert.Error(t, err)
}

func TestParse_DropsBlankEntries(t *testing.T) {
	tables, err := Parse([]byte("verbs: [\"\", \"  Search \", launch]\nconjunctions: [\" \", \" plus \"]\ndomains: [\"\"]\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"search", "launch"}, tables.Verbs)
	assert.Equal(t, []string{" plus "}, tables.Conjunctions)
	assert.Equal(t, Default().Domains, tables.Domains)

	assert.Equal(t, "search", tables.MatchVerb("searching"))
	assert.Equal(t, "", tables.MatchVerb(""))
	assert.Equal(t, "", tables.MatchVerb("unknown"))
}

func TestMatchVerb_EmptyVerbInTable(t *testing.T) {
	tables := &Tables{Verbs: []string{"", "send"}}
	assert.NotPanics(t, func() {
		assert.Equal(t, "send", tables.MatchVerb("sends"))
	})
}
