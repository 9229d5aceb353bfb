package validation

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/portfolio-sync/internal/models"
)

func TestIsValidSkills(t *testing.T) {
	react := models.Skill{Name: "React", Icon: "Atom"}
	docker := models.Skill{Name: "Docker", Icon: "Container"}

	tests := []struct {
		name string
		doc  *models.SkillsDocument
		want bool
	}{
		{"nil document", nil, false},
		{"both populated", &models.SkillsDocument{Stacks: []models.Skill{react}, Tools: []models.Skill{docker}}, true},
		{"empty stacks", &models.SkillsDocument{Stacks: []models.Skill{}, Tools: []models.Skill{docker}}, false},
		{"empty tools", &models.SkillsDocument{Stacks: []models.Skill{react}, Tools: []models.Skill{}}, false},
		{"missing stacks", &models.SkillsDocument{Tools: []models.Skill{docker}}, false},
		{"missing tools", &models.SkillsDocument{Stacks: []models.Skill{react}}, false},
		{"both missing", &models.SkillsDocument{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidSkills(tt.doc))
		})
	}
}

func TestIsValidSkills_DecodedPayloads(t *testing.T) {
	t.Run("empty stacks with one tool", func(t *testing.T) {
		var doc models.SkillsDocument
		require.NoError(t, json.Unmarshal([]byte(`{"stacks":[],"tools":[{"name":"Docker","icon":"Container"}]}`), &doc))
		assert.False(t, IsValidSkills(&doc))
	})

	t.Run("absent tools key", func(t *testing.T) {
		var doc models.SkillsDocument
		require.NoError(t, json.Unmarshal([]byte(`{"stacks":[{"name":"Go","icon":"Code"}]}`), &doc))
		assert.False(t, IsValidSkills(&doc))
	})

	t.Run("null tools", func(t *testing.T) {
		var doc models.SkillsDocument
		require.NoError(t, json.Unmarshal([]byte(`{"stacks":[{"name":"Go","icon":"Code"}],"tools":null}`), &doc))
		assert.False(t, IsValidSkills(&doc))
	})

	t.Run("non-array stacks never decodes", func(t *testing.T) {
		var doc models.SkillsDocument
		err := json.Unmarshal([]byte(`{"stacks":"React","tools":[{"name":"Docker","icon":"Container"}]}`), &doc)
		assert.Error(t, err)
	})
}

func TestStruct_ReportsSerializedNames(t *testing.T) {
	err := Struct(&models.SkillsDocument{})
	require.Error(t, err)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("stacks"))
	assert.True(t, verr.Has("tools"))
	assert.Contains(t, err.Error(), "stacks failed required")
}

func TestSanitizeProjectAnalysis(t *testing.T) {
	t.Run("valid values untouched", func(t *testing.T) {
		a := &models.ProjectAnalysis{ComplexityScore: 7, Difficulty: "Hard", Architecture: "Monolith"}
		assert.Empty(t, SanitizeProjectAnalysis(a))
		assert.Equal(t, 7, a.ComplexityScore)
		assert.Equal(t, "Hard", a.Difficulty)
	})

	t.Run("zero values are allowed", func(t *testing.T) {
		a := &models.ProjectAnalysis{}
		assert.Empty(t, SanitizeProjectAnalysis(a))
	})

	t.Run("out of range score reset", func(t *testing.T) {
		a := &models.ProjectAnalysis{ComplexityScore: 42, Difficulty: "Medium"}
		reset := SanitizeProjectAnalysis(a)
		assert.Equal(t, []string{"complexityScore"}, reset)
		assert.Equal(t, 0, a.ComplexityScore)
		assert.Equal(t, "Medium", a.Difficulty)
	})

	t.Run("unknown difficulty reset", func(t *testing.T) {
		a := &models.ProjectAnalysis{ComplexityScore: 3, Difficulty: "Insane"}
		reset := SanitizeProjectAnalysis(a)
		assert.Equal(t, []string{"difficulty"}, reset)
		assert.Equal(t, "", a.Difficulty)
		assert.Equal(t, 3, a.ComplexityScore)
	})

	t.Run("nil analysis", func(t *testing.T) {
		assert.Nil(t, SanitizeProjectAnalysis(nil))
	})
}
