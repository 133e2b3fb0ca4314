package nodeexec

import (
	"context"
	"fmt"
	"time"

	"github.com/xkayo32/pytake-flow/flow"
)

// DatetimeHandler operaciones de fecha/hora sobre el contexto. La operación
// compare ramifica; las demás escriben la variable de salida y avanzan.
type DatetimeHandler struct {
	interpolator *flow.Interpolator
	now          func() time.Time
}

var _ flow.NodeHandler = (*DatetimeHandler)(nil)

func NewDatetimeHandler(interpolator *flow.Interpolator) *DatetimeHandler {
	return &DatetimeHandler{interpolator: interpolator, now: time.Now}
}

// layoutAliases traduce formatos comunes del builder a layouts de Go.
var layoutAliases = map[string]string{
	"iso8601":             time.RFC3339,
	"rfc3339":             time.RFC3339,
	"date":                "2006-01-02",
	"time":                "15:04:05",
	"datetime":            "2006-01-02 15:04:05",
	"DD/MM/YYYY":          "02/01/2006",
	"DD/MM/YYYY HH:mm":    "02/01/2006 15:04",
	"YYYY-MM-DD":          "2006-01-02",
	"YYYY-MM-DD HH:mm:ss": "2006-01-02 15:04:05",
}

func resolveLayout(format, fallback string) string {
	if format == "" {
		return fallback
	}
	if layout, ok := layoutAliases[format]; ok {
		return layout
	}
	return format
}

func (h *DatetimeHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractDatetimeConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		if parsed, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = parsed
		}
	}

	source := h.sourceTime(exec, cfg, loc)

	switch cfg.Operation {
	case "get_current":
		exec.Conversation.Context.Set(cfg.OutputVariable, h.now().In(loc).Format(resolveLayout(cfg.OutputFormat, time.RFC3339)))
		return flow.Advance(), nil

	case "format":
		exec.Conversation.Context.Set(cfg.OutputVariable, source.Format(resolveLayout(cfg.OutputFormat, time.RFC3339)))
		return flow.Advance(), nil

	case "parse":
		exec.Conversation.Context.Set(cfg.OutputVariable, source.Format(time.RFC3339))
		return flow.Advance(), nil

	case "add":
		shifted := addDuration(source, cfg.AddAmount, cfg.AddUnit)
		exec.Conversation.Context.Set(cfg.OutputVariable, shifted.Format(resolveLayout(cfg.OutputFormat, time.RFC3339)))
		return flow.Advance(), nil

	case "compare":
		other := h.parseOrNow(h.interpolator.Text(cfg.CompareWith, exec.Conversation.Context.Variables), cfg, loc)
		result := source.Before(other)
		exec.Conversation.Context.Set(cfg.OutputVariable, result)
		return flow.BranchTo(result), nil

	default:
		return flow.Outcome{}, flow.ErrInvalidFlowNode().
			WithDetail("reason", "unknown datetime operation: "+cfg.Operation)
	}
}

// sourceTime resolves the operand: the source variable when set, now
// otherwise. Malformed values fall back to now instead of failing the flow.
func (h *DatetimeHandler) sourceTime(exec *flow.Execution, cfg *flow.DatetimeConfig, loc *time.Location) time.Time {
	if cfg.SourceVariable == "" {
		return h.now().In(loc)
	}
	raw, ok := exec.Conversation.Context.Lookup(cfg.SourceVariable)
	if !ok {
		return h.now().In(loc)
	}
	return h.parseOrNow(fmt.Sprintf("%v", raw), cfg, loc)
}

func (h *DatetimeHandler) parseOrNow(value string, cfg *flow.DatetimeConfig, loc *time.Location) time.Time {
	layouts := []string{resolveLayout(cfg.Format, time.RFC3339), time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "02/01/2006"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t
		}
	}
	return h.now().In(loc)
}

func addDuration(t time.Time, amount int, unit string) time.Time {
	switch unit {
	case "minutes":
		return t.Add(time.Duration(amount) * time.Minute)
	case "hours":
		return t.Add(time.Duration(amount) * time.Hour)
	case "days":
		return t.AddDate(0, 0, amount)
	case "months":
		return t.AddDate(0, amount, 0)
	default:
		return t
	}
}

func (h *DatetimeHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeDatetime
}

func (h *DatetimeHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractDatetimeConfig(data)
	return err
}
