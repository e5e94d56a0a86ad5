package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkillStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status SkillStatus
		want   bool
	}{
		{"production is valid", SkillStatusProduction, true},
		{"development is valid", SkillStatusDevelopment, true},
		{"experimental is valid", SkillStatusExperimental, true},
		{"deprecated is valid", SkillStatusDeprecated, true},
		{"unknown is valid", SkillStatusUnknown, true},
		{"empty string is invalid", SkillStatus(""), false},
		{"typo is invalid", SkillStatus("prodution"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Valid())
		})
	}
}

func TestParseSkillStatus(t *testing.T) {
	tests := []struct {
		in   string
		want SkillStatus
	}{
		{"production", SkillStatusProduction},
		{"  Production ", SkillStatusProduction},
		{"stable", SkillStatusProduction},
		{"beta", SkillStatusDevelopment},
		{"alpha", SkillStatusExperimental},
		{"deprecated", SkillStatusDeprecated},
		{"", SkillStatusUnknown},
		{"retired", SkillStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSkillStatus(tt.in))
		})
	}
}

func TestComplexityBucket(t *testing.T) {
	assert.Equal(t, "low", ComplexityBucket(1))
	assert.Equal(t, "low", ComplexityBucket(3))
	assert.Equal(t, "medium", ComplexityBucket(4))
	assert.Equal(t, "medium", ComplexityBucket(7))
	assert.Equal(t, "high", ComplexityBucket(8))
	assert.Equal(t, "high", ComplexityBucket(10))
}

func TestSkill_HasTagAndBody(t *testing.T) {
	s := &Skill{
		Name: "email-integration",
		Tags: []string{"domain:email", "action:send"},
		Sections: []Section{
			{Heading: "Overview", Content: "Sends mail."},
			{Heading: "Usage", Content: "Call send."},
		},
	}

	assert.True(t, s.HasTag("domain:email"))
	assert.False(t, s.HasTag("domain"))
	assert.Equal(t, "Sends mail.\nCall send.", s.Body())
}

func TestExecutionPlan_StepLookup(t *testing.T) {
	p := &ExecutionPlan{
		Steps: []Step{
			{ID: 1, Status: StepMatched, SkillName: "a"},
			{ID: 2, Status: StepMissing},
		},
	}

	assert.Equal(t, "a", p.Step(1).SkillName)
	assert.Nil(t, p.Step(3))
	assert.Equal(t, 1, p.MatchedSteps())
}

func TestRole_Valid(t *testing.T) {
	for _, r := range AllRoles {
		assert.True(t, r.Valid(), "role %s", r)
	}
	assert.False(t, Role("communicator").Valid())
}

func TestAgentLoadState_Available(t *testing.T) {
	s := AgentLoadState{Role: RoleResearcher, Active: 2}
	assert.True(t, s.Available(3))
	assert.False(t, s.Available(2))
}
