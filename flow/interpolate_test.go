package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolatorText(t *testing.T) {
	i := NewInterpolator()
	vars := map[string]any{
		"nome":  "Maria",
		"idade": 30,
		"order": map[string]any{"total": 99.9, "status": "paid"},
	}

	assert.Equal(t, "Olá Maria!", i.Text("Olá {{nome}}!", vars))
	assert.Equal(t, "Total: 99.9", i.Text("Total: {{order.total}}", vars))
	assert.Equal(t, "Maria tem 30 anos", i.Text("{{nome}} tem {{idade}} anos", vars))
}

func TestInterpolatorTextUnresolvedTokenLeftIntact(t *testing.T) {
	i := NewInterpolator()

	// un token roto queda visible en vez de desaparecer
	assert.Equal(t, "Olá {{sobrenome}}", i.Text("Olá {{sobrenome}}", map[string]any{"nome": "Ana"}))
}

func TestInterpolatorCELFallback(t *testing.T) {
	i := NewInterpolator()
	vars := map[string]any{"idade": 20, "nome": "Jo"}

	result, err := i.Value("{{idade >= 18}}", vars)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = i.Value("{{idade * 2}}", vars)
	require.NoError(t, err)
	assert.EqualValues(t, 40, result)
}

func TestInterpolatorValueKeepsNativeType(t *testing.T) {
	i := NewInterpolator()
	vars := map[string]any{
		"total": 42.5,
		"ativo": true,
		"itens": []any{"a", "b"},
	}

	result, err := i.Value("{{total}}", vars)
	require.NoError(t, err)
	assert.Equal(t, 42.5, result)

	result, err = i.Value("{{ativo}}", vars)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = i.Value("{{itens}}", vars)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, result)

	// mixed text renders to string
	result, err = i.Value("total: {{total}}", vars)
	require.NoError(t, err)
	assert.Equal(t, "total: 42.5", result)
}

func TestInterpolatorMap(t *testing.T) {
	i := NewInterpolator()
	vars := map[string]any{"id": "abc", "qty": 3}

	out := i.Map(map[string]any{
		"order_id": "{{id}}",
		"quantity": "{{qty}}",
		"nested":   map[string]any{"ref": "{{id}}"},
		"list":     []any{"{{id}}", "static"},
		"static":   true,
	}, vars)

	assert.Equal(t, "abc", out["order_id"])
	assert.EqualValues(t, 3, out["quantity"])
	assert.Equal(t, "abc", out["nested"].(map[string]any)["ref"])
	assert.Equal(t, []any{"abc", "static"}, out["list"])
	assert.Equal(t, true, out["static"])
}

func TestInterpolatorSkipsInvalidCELIdents(t *testing.T) {
	i := NewInterpolator()
	// attempt counters use names CEL cannot declare; they must not break
	// unrelated interpolation
	vars := map[string]any{"nome": "Ana", "__attempts_n1": 2}

	assert.Equal(t, "Ana", i.Text("{{nome}}", vars))
}
