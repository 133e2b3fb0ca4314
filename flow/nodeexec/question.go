package nodeexec

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/xkayo32/pytake-flow/flow"
)

// aviso enviado cuando se agotan los intentos de una pregunta
const questionFinalNotice = "Tudo bem, vamos seguir em frente. 🙂"

// QuestionHandler pregunta y espera la respuesta del contato. La ejecución se
// suspende con el puntero en este nodo; la respuesta llega en el próximo tick.
// Respuestas inválidas repiten la pregunta hasta agotar los intentos, y ahí se
// manda un aviso final y el flow sigue adelante con la variable sin definir.
type QuestionHandler struct {
	sender *MessageSender
}

var _ flow.NodeHandler = (*QuestionHandler)(nil)

func NewQuestionHandler(sender *MessageSender) *QuestionHandler {
	return &QuestionHandler{sender: sender}
}

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9\s\-\(\)]{6,}$`)
)

func (h *QuestionHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractQuestionConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	conv := exec.Conversation

	// Fase de pregunta: todavía no hay respuesta pendiente.
	if conv.AwaitingSince == nil || inbound == nil {
		if err := h.ask(ctx, exec, node, cfg); err != nil {
			return flow.Outcome{}, err
		}
		conv.MarkAwaiting()
		return flow.Suspend(), nil
	}

	// Fase de respuesta.
	answer, valid := h.validateAnswer(cfg, inbound)
	if valid {
		conv.Context.Set(cfg.OutputVariable, answer)
		conv.Context.ClearAttempts(node.ID)
		conv.ClearAwaiting()
		return flow.Advance(), nil
	}

	attempts := conv.Context.IncrementAttempts(node.ID)
	if attempts >= cfg.GetMaxAttempts() {
		// intentos agotados: aviso final best-effort, la respuesta se
		// descarta y el flow sigue con la variable sin definir
		if err := h.sender.SendText(ctx, exec, node.ID, questionFinalNotice); err != nil {
			logx.Error("failed to send final notice for node %s: %v", node.ID, err)
		}
		conv.Context.ClearAttempts(node.ID)
		conv.ClearAwaiting()
		return flow.Advance(), nil
	}

	errorMessage := cfg.Validation.ErrorMessage
	if errorMessage == "" {
		errorMessage = "Desculpe, não entendi. Pode tentar novamente?"
	}
	if err := h.sender.SendText(ctx, exec, node.ID, errorMessage); err != nil {
		return flow.Outcome{}, err
	}
	if err := h.ask(ctx, exec, node, cfg); err != nil {
		return flow.Outcome{}, err
	}
	conv.MarkAwaiting()
	return flow.Suspend(), nil
}

func (h *QuestionHandler) ask(ctx context.Context, exec *flow.Execution, node flow.Node, cfg *flow.QuestionConfig) error {
	text := cfg.Text
	if cfg.GetResponseType() == "options" {
		var sb strings.Builder
		sb.WriteString(text)
		for i, opt := range cfg.Options {
			sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, opt))
		}
		text = sb.String()
	}
	return h.sender.SendText(ctx, exec, node.ID, text)
}

// validateAnswer checks the reply against the configured response type and
// returns the value to store. Options accept the option text or its number.
func (h *QuestionHandler) validateAnswer(cfg *flow.QuestionConfig, inbound *flow.InboundMessage) (any, bool) {
	text := strings.TrimSpace(inbound.Text)

	if text == "" {
		if cfg.Validation.Required {
			return nil, false
		}
		return "", true
	}

	switch cfg.GetResponseType() {
	case "text":
		return text, true

	case "number":
		n, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
		if err != nil {
			return nil, false
		}
		return n, true

	case "email":
		if !emailRegex.MatchString(text) {
			return nil, false
		}
		return strings.ToLower(text), true

	case "phone":
		if !phoneRegex.MatchString(text) {
			return nil, false
		}
		return text, true

	case "options":
		if idx, err := strconv.Atoi(text); err == nil && idx >= 1 && idx <= len(cfg.Options) {
			return cfg.Options[idx-1], true
		}
		for _, opt := range cfg.Options {
			if strings.EqualFold(opt, text) {
				return opt, true
			}
		}
		return nil, false

	default:
		return text, true
	}
}

func (h *QuestionHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeQuestion
}

func (h *QuestionHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractQuestionConfig(data)
	return err
}
