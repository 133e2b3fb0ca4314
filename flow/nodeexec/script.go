package nodeexec

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/dop251/goja"
	"github.com/xkayo32/pytake-flow/flow"
)

// ScriptHandler ejecuta JavaScript en un sandbox goja. El script ve una copia
// de las variables del contexto en `variables` y el último mensaje recibido en
// `message`; no tiene acceso a red, disco ni require. El valor de la última
// expresión va a la variable de salida.
type ScriptHandler struct{}

var _ flow.NodeHandler = (*ScriptHandler)(nil)

func NewScriptHandler() *ScriptHandler {
	return &ScriptHandler{}
}

func (h *ScriptHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractScriptConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	result, runErr := h.run(cfg, exec, inbound)
	if runErr != nil {
		if cfg.ErrorHandling.ShouldStop() {
			return flow.Outcome{}, runErr
		}

		logx.Error("script failed, continuing with fallback: %v", runErr)
		if cfg.OutputVariable != "" {
			exec.Conversation.Context.Set(cfg.OutputVariable, cfg.ErrorHandling.FallbackValue)
		}
		return flow.Advance(), nil
	}

	if cfg.OutputVariable != "" {
		exec.Conversation.Context.Set(cfg.OutputVariable, result)
	}
	return flow.Advance(), nil
}

func (h *ScriptHandler) run(cfg *flow.ScriptConfig, exec *flow.Execution, inbound *flow.InboundMessage) (any, error) {
	vm := goja.New()

	// copia: el script no muta el contexto directamente
	vars := make(map[string]any, len(exec.Conversation.Context.Variables))
	for k, v := range exec.Conversation.Context.Variables {
		vars[k] = v
	}
	if err := vm.Set("variables", vars); err != nil {
		return nil, flow.ErrNodeExecutionFailed().WithCause(err)
	}
	if inbound != nil {
		if err := vm.Set("message", inbound.Text); err != nil {
			return nil, flow.ErrNodeExecutionFailed().WithCause(err)
		}
	}

	timeout := time.Duration(cfg.GetTimeoutSeconds()) * time.Second
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("timeout")
	})
	defer timer.Stop()

	value, err := vm.RunString(cfg.Code)
	if err != nil {
		if _, interrupted := err.(*goja.InterruptedError); interrupted {
			return nil, flow.ErrScriptTimeout().
				WithDetail("timeout_seconds", cfg.GetTimeoutSeconds())
		}
		return nil, flow.ErrNodeExecutionFailed().
			WithDetail("reason", "script error").
			WithCause(err)
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

func (h *ScriptHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeScript
}

func (h *ScriptHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractScriptConfig(data)
	return err
}
