package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/skillroute/pkg/models"
)

func sk(name, source string, status models.SkillStatus, tags ...string) *models.Skill {
	return &models.Skill{
		Name:        name,
		Description: "the " + name + " skill",
		Status:      status,
		Tags:        tags,
		SourceID:    source,
		SourcePath:  "/skills/" + source + "/SKILL.md",
	}
}

func fixture() []*models.Skill {
	return []*models.Skill{
		sk("email-integration", "email", models.SkillStatusProduction, "domain:email"),
		sk("memory-search", "memory", models.SkillStatusDevelopment, "domain:memory"),
		sk("webhook-relay", "webhook", models.SkillStatusExperimental),
	}
}

func TestStore_NotLoaded(t *testing.T) {
	st := NewStore()
	_, err := st.Current()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, st.Loaded())

	snap := st.Publish(NewSnapshot(fixture(), nil, nil))
	assert.Equal(t, uint64(1), snap.Version())

	cur, err := st.Current()
	require.NoError(t, err)
	assert.Same(t, snap, cur)

	next := st.Publish(NewSnapshot(fixture(), nil, nil))
	assert.Equal(t, uint64(2), next.Version())
}

func TestSnapshot_Lookup(t *testing.T) {
	snap := NewSnapshot(append(fixture(), sk("email-integration", "dupe", models.SkillStatusUnknown)), nil, nil)

	assert.Equal(t, 3, snap.Len())
	got, ok := snap.Get("memory-search")
	require.True(t, ok)
	assert.Equal(t, "memory", got.SourceID)

	bySrc, ok := snap.BySource("webhook")
	require.True(t, ok)
	assert.Equal(t, "webhook-relay", bySrc.Name)

	_, ok = snap.BySource("dupe")
	assert.False(t, ok)
}

func TestSnapshot_Filter(t *testing.T) {
	snap := NewSnapshot(fixture(), nil, nil)

	tests := []struct {
		expr string
		want []string
	}{
		{"", []string{"email-integration", "memory-search", "webhook-relay"}},
		{"status:production", []string{"email-integration"}},
		{"status:dev", []string{"memory-search"}},
		{"tag:domain:memory", []string{"memory-search"}},
		{"RELAY", []string{"webhook-relay"}},
		{"nothing-here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			var names []string
			for _, s := range snap.Filter(tt.expr) {
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSnapshot_ApplyMatchesFreshBuild(t *testing.T) {
	base := NewSnapshot(fixture(), nil, nil)

	updated := sk("memory-search", "memory", models.SkillStatusProduction)
	added := sk("calendar-sync", "calendar", models.SkillStatusDevelopment)
	next := base.Apply(map[string]*models.Skill{"memory": updated, "calendar": added}, []string{"webhook"}, nil, nil)

	var names []string
	for _, s := range next.Skills() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"calendar-sync", "email-integration", "memory-search"}, names)

	got, _ := next.Get("memory-search")
	assert.Equal(t, models.SkillStatusProduction, got.Status)
	_, ok := next.Get("webhook-relay")
	assert.False(t, ok)

	// The original snapshot is untouched.
	assert.Equal(t, 3, base.Len())
	_, ok = base.Get("webhook-relay")
	assert.True(t, ok)
}

func TestPersistRoundTrip(t *testing.T) {
	skills := fixture()
	skills[0].DeclaredDependencies = []string{"memory-search"}
	snap := NewSnapshot(skills, nil, nil)

	data, err := json.Marshal(snap.Persist())
	require.NoError(t, err)

	var p Persisted
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, FormatVersion, p.Format)

	restored := FromPersisted(p, nil)
	assert.Equal(t, snap.Len(), restored.Len())
	assert.Equal(t, []string{"memory-search"}, restored.Graph().Dependencies("email-integration"))
	assert.True(t, restored.LoadedAt().Equal(snap.LoadedAt()))
}
