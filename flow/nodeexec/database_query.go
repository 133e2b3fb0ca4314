package nodeexec

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/xkayo32/pytake-flow/flow"
)

// DatabaseQueryHandler consulta una base externa del tenant y guarda el
// resultado formateado en el contexto.
type DatabaseQueryHandler struct {
	backends     map[string]flow.DatabaseBackend
	interpolator *flow.Interpolator
}

var _ flow.NodeHandler = (*DatabaseQueryHandler)(nil)

func NewDatabaseQueryHandler(interpolator *flow.Interpolator, backends ...flow.DatabaseBackend) *DatabaseQueryHandler {
	registry := make(map[string]flow.DatabaseBackend, len(backends))
	for _, b := range backends {
		registry[b.Type()] = b
	}
	return &DatabaseQueryHandler{backends: registry, interpolator: interpolator}
}

func (h *DatabaseQueryHandler) Execute(ctx context.Context, exec *flow.Execution, node flow.Node, inbound *flow.InboundMessage) (flow.Outcome, error) {
	cfg, err := flow.ExtractDatabaseQueryConfig(node.Data)
	if err != nil {
		return flow.Outcome{}, err
	}

	backend, ok := h.backends[cfg.DatabaseType]
	if !ok {
		return flow.Outcome{}, flow.ErrBackendNotFound().WithDetail("database_type", cfg.DatabaseType)
	}

	vars := exec.Conversation.Context.Variables
	connectionString := h.interpolator.Text(cfg.ConnectionString, vars)
	query := h.interpolator.Text(cfg.Query, vars)

	params := make([]any, 0, len(cfg.Parameters))
	for _, p := range cfg.Parameters {
		if s, ok := p.(string); ok {
			resolved, err := h.interpolator.Value(s, vars)
			if err == nil {
				params = append(params, resolved)
				continue
			}
		}
		params = append(params, p)
	}

	rows, queryErr := h.queryWithRetries(ctx, backend, cfg, connectionString, query, params)
	if queryErr != nil {
		if cfg.ErrorHandling.ShouldStop() {
			return flow.Outcome{}, flow.ErrExternalCallExhausted().
				WithDetail("node_id", node.ID).
				WithDetail("database_type", cfg.DatabaseType).
				WithCause(queryErr)
		}

		logx.Error("database_query failed, continuing with fallback: %v", queryErr)
		exec.Conversation.Context.Set(cfg.ResultVariable, cfg.ErrorHandling.FallbackValue)
		return flow.Advance(), nil
	}

	exec.Conversation.Context.Set(cfg.ResultVariable, formatResult(rows, cfg.GetResultFormat()))
	return flow.Advance(), nil
}

func (h *DatabaseQueryHandler) queryWithRetries(
	ctx context.Context,
	backend flow.DatabaseBackend,
	cfg *flow.DatabaseQueryConfig,
	connectionString, query string,
	params []any,
) ([]map[string]any, error) {
	maxRetries := cfg.ErrorHandling.GetMaxRetries()
	retryDelay := time.Duration(cfg.ErrorHandling.GetRetryDelaySeconds()) * time.Second

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		queryCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.GetTimeoutSeconds())*time.Second)
		rows, err := backend.Query(queryCtx, connectionString, query, params)
		cancel()
		if err == nil {
			return rows, nil
		}
		lastErr = err
		logx.Error("database_query attempt %d/%d failed: %v", attempt+1, maxRetries+1, err)
	}
	return nil, lastErr
}

// formatResult projects the uniform row list into the configured shape.
func formatResult(rows []map[string]any, format string) any {
	switch format {
	case "first":
		if len(rows) == 0 {
			return nil
		}
		return rows[0]
	case "count":
		return len(rows)
	case "scalar":
		if len(rows) == 0 {
			return nil
		}
		for _, v := range rows[0] {
			return v
		}
		return nil
	default: // list
		return rows
	}
}

func (h *DatabaseQueryHandler) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeTypeDatabaseQuery
}

func (h *DatabaseQueryHandler) ValidateConfig(data map[string]any) error {
	_, err := flow.ExtractDatabaseQueryConfig(data)
	return err
}
