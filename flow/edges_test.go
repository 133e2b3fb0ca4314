package flow

import (
	"testing"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func branchFlow(labels ...string) *Flow {
	f := &Flow{}
	for i, label := range labels {
		f.Edges = append(f.Edges, Edge{
			Source: "cond",
			Target: "t" + string(rune('a'+i)),
			Label:  label,
		})
	}
	return f
}

func TestFirstEdgeTarget(t *testing.T) {
	f := &Flow{Edges: []Edge{
		{Source: "start", Target: "msg1"},
		{Source: "msg1", Target: "end"},
	}}

	target, ok := FirstEdgeTarget(f, "start")
	require.True(t, ok)
	assert.Equal(t, "msg1", target)

	_, ok = FirstEdgeTarget(f, "end")
	assert.False(t, ok)
}

func TestBranchTargetTruthyLabels(t *testing.T) {
	for _, label := range []string{"true", "yes", "sim", "TRUE", "Sim", " yes "} {
		f := branchFlow(label, "false")
		target, err := BranchTarget(f, "cond", true)
		require.NoError(t, err, "label %q", label)
		assert.Equal(t, "ta", target)
	}
}

func TestBranchTargetFalsyLabels(t *testing.T) {
	for _, label := range []string{"false", "no", "não", "nao", "NO", "Não"} {
		f := branchFlow("true", label)
		target, err := BranchTarget(f, "cond", false)
		require.NoError(t, err, "label %q", label)
		assert.Equal(t, "tb", target)
	}
}

func TestBranchTargetDeadEnd(t *testing.T) {
	f := &Flow{}

	_, err := BranchTarget(f, "cond", true)
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeBusiness))
}

func TestBranchTargetNoMatchingLabel(t *testing.T) {
	// edges exist but none carry the wanted label
	f := branchFlow("true", "maybe")

	_, err := BranchTarget(f, "cond", false)
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeBusiness))
}
