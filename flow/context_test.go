package flow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionContextVariables(t *testing.T) {
	ctx := NewExecutionContext()

	ctx.Set("nome", "Maria")
	ctx.Set("idade", 30)

	assert.Equal(t, "Maria", ctx.Get("nome"))
	assert.Nil(t, ctx.Get("missing"))

	v, ok := ctx.Lookup("idade")
	require.True(t, ok)
	assert.Equal(t, 30, v)

	_, ok = ctx.Lookup("missing")
	assert.False(t, ok)

	ctx.Delete("nome")
	assert.Nil(t, ctx.Get("nome"))
}

func TestExecutionContextSetOnZeroValue(t *testing.T) {
	// un contexto deserializado puede venir con el mapa nil
	var ctx ExecutionContext

	ctx.Set("x", 1)
	assert.Equal(t, 1, ctx.Get("x"))
}

func TestExecutionContextPathCap(t *testing.T) {
	ctx := NewExecutionContext()

	for i := 0; i < MaxPathEntries+10; i++ {
		ctx.AppendPath(fmt.Sprintf("n%d", i))
	}

	assert.Len(t, ctx.Path, MaxPathEntries)
	// oldest entries were dropped, newest kept
	assert.Equal(t, "n10", ctx.Path[0])
	assert.Equal(t, fmt.Sprintf("n%d", MaxPathEntries+9), ctx.Path[MaxPathEntries-1])
}

func TestExecutionContextVisitCount(t *testing.T) {
	ctx := NewExecutionContext()
	ctx.AppendPath("a")
	ctx.AppendPath("b")
	ctx.AppendPath("a")

	assert.Equal(t, 2, ctx.VisitCount("a"))
	assert.Equal(t, 1, ctx.VisitCount("b"))
	assert.Equal(t, 0, ctx.VisitCount("c"))

	ctx.ClearPath()
	assert.Equal(t, 0, ctx.VisitCount("a"))
}

func TestExecutionContextAttempts(t *testing.T) {
	ctx := NewExecutionContext()

	assert.Equal(t, 0, ctx.Attempts("q1"))
	assert.Equal(t, 1, ctx.IncrementAttempts("q1"))
	assert.Equal(t, 2, ctx.IncrementAttempts("q1"))
	assert.Equal(t, 2, ctx.Attempts("q1"))

	// counters are per node
	assert.Equal(t, 0, ctx.Attempts("q2"))

	ctx.ClearAttempts("q1")
	assert.Equal(t, 0, ctx.Attempts("q1"))
}

func TestExecutionContextAttemptsAfterJSONRoundTrip(t *testing.T) {
	ctx := NewExecutionContext()
	// JSON deserialization turns ints into float64
	ctx.Set("__attempts_q1", float64(2))

	assert.Equal(t, 2, ctx.Attempts("q1"))
	assert.Equal(t, 3, ctx.IncrementAttempts("q1"))
}

func TestLoopGuardTripsAboveCeiling(t *testing.T) {
	ctx := NewExecutionContext()
	var guard LoopGuard

	for i := 0; i < MaxNodeVisits; i++ {
		assert.False(t, guard.Visit(&ctx, "n1"), "visit %d must pass", i+1)
	}

	// visit MaxNodeVisits+1 crosses the ceiling
	assert.True(t, guard.Visit(&ctx, "n1"))
}

func TestLoopGuardCountsPerNode(t *testing.T) {
	ctx := NewExecutionContext()
	var guard LoopGuard

	for i := 0; i < MaxNodeVisits; i++ {
		guard.Visit(&ctx, "n1")
	}

	// a different node starts its own count
	assert.False(t, guard.Visit(&ctx, "n2"))
}
