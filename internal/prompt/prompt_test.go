package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarworks/tasting-cli/internal/model"
)

func TestBuild_Deterministic(t *testing.T) {
	capture := &model.RawCapture{
		ID:      "cap-1",
		RawText: "2019 Puligny from Leflaive, tense and saline, long finish. Would buy again.",
	}
	hints := model.Hints{
		"vintage":  "2019",
		"producer": "Domaine Leflaive",
		"label":    "Puligny-Montrachet",
	}

	first, err := Build(capture, hints)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Build(capture, hints)
		require.NoError(t, err)
		assert.Equal(t, first, again, "identical inputs must render byte-identical prompts")
	}
}

func TestBuild_EmbedsRawTextVerbatim(t *testing.T) {
	raw := "weird   spacing\tand\nnewlines — kept exactly"
	p, err := Build(&model.RawCapture{RawText: raw}, nil)
	require.NoError(t, err)
	assert.Contains(t, p.User, raw)
	assert.Contains(t, p.User, "version "+Version)
	assert.Contains(t, p.System, "NEVER invent")
}

func TestBuild_HintsSortedByKey(t *testing.T) {
	p, err := Build(&model.RawCapture{RawText: "x"}, model.Hints{
		"zebra": "1", "alpha": "2", "mid": "3",
	})
	require.NoError(t, err)

	a := indexOf(t, p.User, "- alpha: 2")
	m := indexOf(t, p.User, "- mid: 3")
	z := indexOf(t, p.User, "- zebra: 1")
	assert.Less(t, a, m)
	assert.Less(t, m, z)
}

func TestBuild_NoHintsOmitsSection(t *testing.T) {
	p, err := Build(&model.RawCapture{RawText: "x"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, p.User, "VERIFIED HINTS")
}

func TestBuildRepair_CarriesViolationsVerbatim(t *testing.T) {
	prev := Prompt{System: "sys", User: "user"}
	violations := []model.Violation{
		{Field: "scores.subscores.nose", Kind: "range", Message: `subscore "nose" must be between 0 and 12, got 13`},
		{Field: "wine.color", Kind: "enum", Message: `wine.color value "purple" is not one of [red, white, rose, orange, sparkling, fortified, other]`},
	}

	p := BuildRepair(prev, `{"scores": {}}`, "", violations)
	assert.Equal(t, "sys", p.System)
	assert.Contains(t, p.User, `{"scores": {}}`)
	assert.Contains(t, p.User, `subscore "nose" must be between 0 and 12, got 13`)
	assert.Contains(t, p.User, "wine.color (enum)")
	assert.Contains(t, p.User, "nothing else")
}

func TestBuildRepair_ParseDiagnostic(t *testing.T) {
	p := BuildRepair(Prompt{}, "not json at all", "invalid character 'n' looking for beginning of value", nil)
	assert.Contains(t, p.User, "invalid JSON: invalid character 'n'")
	assert.Contains(t, p.User, "not json at all")
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	idx := strings.Index(s, sub)
	require.GreaterOrEqual(t, idx, 0, "expected %q in prompt", sub)
	return idx
}
