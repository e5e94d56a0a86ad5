package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/skillroute/pkg/models"
)

const emailDoc = `---
name: email-integration
description: Send and search email through an SMTP bridge.
status: production
version: 1.2.0
dependencies: [memory-search, not-loaded]
tags: [domain:email, action:send]
---

Intro text.

## Capabilities
- send email
- search inbox
- send email

## Dependencies
Uses memory-search for threading.
`

func writeSkill(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestMarkdownParser_Parse(t *testing.T) {
	rec, err := MarkdownParser{}.Parse([]byte(emailDoc))
	require.NoError(t, err)

	assert.Equal(t, "email-integration", rec.Name)
	assert.Equal(t, "production", rec.Status)
	assert.Equal(t, "1.2.0", rec.Version)
	assert.Equal(t, []string{"memory-search", "not-loaded"}, rec.Dependencies)
	assert.Equal(t, []string{"domain:email", "action:send"}, rec.Tags)

	require.Len(t, rec.Sections, 3)
	assert.Equal(t, "", rec.Sections[0].Heading)
	assert.Equal(t, "Intro text.", rec.Sections[0].Content)
	assert.Equal(t, "Capabilities", rec.Sections[1].Heading)
	assert.Equal(t, "Dependencies", rec.Sections[2].Heading)
}

func TestMarkdownParser_CommaSeparatedTags(t *testing.T) {
	doc := "---\nname: x\ndescription: d\ntags: alpha, beta\n---\n"
	rec, err := MarkdownParser{}.Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, rec.Tags)
}

func TestMarkdownParser_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no front-matter", "# Title\nbody"},
		{"unterminated", "---\nname: x\n"},
		{"bad yaml", "---\nname: [x\n---\n"},
		{"no description", "---\nname: x\n---\nbody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarkdownParser{}.Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestIndexer_Build(t *testing.T) {
	rec, err := MarkdownParser{}.Parse([]byte(emailDoc))
	require.NoError(t, err)

	s := NewIndexer(nil).Build(rec, Source{ID: "email", Path: "/skills/email/SKILL.md"}, 42)

	assert.Equal(t, models.SkillStatusProduction, s.Status)
	assert.Equal(t, []string{"send email", "search inbox"}, s.Capabilities)
	assert.True(t, s.HasTag("domain:email"))
	assert.True(t, s.HasTag("action:send"))
	assert.True(t, s.HasTag("action:search"))
	assert.Equal(t, "email", s.SourceID)
	assert.Equal(t, uint64(42), s.ContentHash)
	// 1 + 2 caps/2 + 2 deps
	assert.Equal(t, 4, s.ComplexityScore)
}

func TestIndexer_NameFallsBackToSourceID(t *testing.T) {
	rec := &Record{Description: "does things"}
	s := NewIndexer(nil).Build(rec, Source{ID: "thing"}, 0)
	assert.Equal(t, "thing", s.Name)
	assert.Equal(t, models.SkillStatusUnknown, s.Status)
	assert.Equal(t, 1, s.ComplexityScore)
}

func TestComplexity_Clamped(t *testing.T) {
	s := &models.Skill{DeclaredDependencies: make([]string, 20)}
	assert.Equal(t, 10, Complexity(s))
}

func TestSourceID(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"email/SKILL.md", "email"},
		{"email/scripts/run.sh", "email"},
		{"email", "email"},
		{"notes.md", "notes"},
		{".git/HEAD", ""},
		{".", ""},
		{"../outside.md", ""},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, SourceID(tt.rel))
		})
	}
}

func TestLoader_LoadAll(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "email/SKILL.md", emailDoc)
	writeSkill(t, root, "memory.md", "---\nname: memory-search\ndescription: Search long-term memory.\n---\n")
	writeSkill(t, root, "broken/SKILL.md", "no front matter here")
	writeSkill(t, root, "zz-dupe.md", "---\nname: memory-search\ndescription: Another one.\n---\n")

	loader := NewLoader(LoaderOptions{Root: root})
	skills, warnings, err := loader.LoadAll(context.Background())
	require.NoError(t, err)

	var names []string
	for _, s := range skills {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"email-integration", "memory-search"}, names)
	assert.Len(t, warnings, 2)
}

func TestLoader_InaccessibleRoot(t *testing.T) {
	loader := NewLoader(LoaderOptions{Root: filepath.Join(t.TempDir(), "missing")})
	_, _, err := loader.LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrSourceInaccessible)
}

func TestLoader_LoadSingle(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "email/SKILL.md", emailDoc)
	loader := NewLoader(LoaderOptions{Root: root})

	s, err := loader.Load("email")
	require.NoError(t, err)
	assert.Equal(t, "email-integration", s.Name)

	_, err = loader.Load("absent")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestLoader_HashStableForSameContent(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "email/SKILL.md", emailDoc)
	loader := NewLoader(LoaderOptions{Root: root})

	src, ok := loader.Resolve("email")
	require.True(t, ok)
	h1, err := loader.Hash(src)
	require.NoError(t, err)

	s, err := loader.Load("email")
	require.NoError(t, err)
	assert.Equal(t, h1, s.ContentHash)
}
