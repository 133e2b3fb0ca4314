package flowinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/jmoiron/sqlx"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

type PostgresFlowRepository struct {
	db *sqlx.DB
}

var _ flow.FlowRepository = (*PostgresFlowRepository)(nil)

func NewPostgresFlowRepository(db *sqlx.DB) *PostgresFlowRepository {
	return &PostgresFlowRepository{db: db}
}

// dbFlow fila de la tabla flows; nodes y edges son JSONB
type dbFlow struct {
	ID         string    `db:"id"`
	TenantID   string    `db:"tenant_id"`
	ChatbotID  string    `db:"chatbot_id"`
	Name       string    `db:"name"`
	Nodes      []byte    `db:"nodes"`
	Edges      []byte    `db:"edges"`
	IsMain     bool      `db:"is_main"`
	IsFallback bool      `db:"is_fallback"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func toDBFlow(f flow.Flow) (dbFlow, error) {
	nodesJSON, err := json.Marshal(f.Nodes)
	if err != nil {
		return dbFlow{}, errx.Wrap(err, "failed to marshal flow nodes", errx.TypeInternal)
	}
	edgesJSON, err := json.Marshal(f.Edges)
	if err != nil {
		return dbFlow{}, errx.Wrap(err, "failed to marshal flow edges", errx.TypeInternal)
	}
	return dbFlow{
		ID:         f.ID.String(),
		TenantID:   f.TenantID.String(),
		ChatbotID:  f.ChatbotID.String(),
		Name:       f.Name,
		Nodes:      nodesJSON,
		Edges:      edgesJSON,
		IsMain:     f.IsMain,
		IsFallback: f.IsFallback,
		IsActive:   f.IsActive,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}, nil
}

func (d dbFlow) toDomain() (*flow.Flow, error) {
	var nodes []flow.Node
	if len(d.Nodes) > 0 {
		if err := json.Unmarshal(d.Nodes, &nodes); err != nil {
			return nil, errx.Wrap(err, "failed to unmarshal flow nodes", errx.TypeInternal)
		}
	}
	var edges []flow.Edge
	if len(d.Edges) > 0 {
		if err := json.Unmarshal(d.Edges, &edges); err != nil {
			return nil, errx.Wrap(err, "failed to unmarshal flow edges", errx.TypeInternal)
		}
	}
	return &flow.Flow{
		ID:         kernel.NewFlowID(d.ID),
		TenantID:   kernel.NewTenantID(d.TenantID),
		ChatbotID:  kernel.NewChatbotID(d.ChatbotID),
		Name:       d.Name,
		Nodes:      nodes,
		Edges:      edges,
		IsMain:     d.IsMain,
		IsFallback: d.IsFallback,
		IsActive:   d.IsActive,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

const flowColumns = `id, tenant_id, chatbot_id, name, nodes, edges, is_main, is_fallback, is_active, created_at, updated_at`

func (r *PostgresFlowRepository) Save(ctx context.Context, f flow.Flow) error {
	row, err := toDBFlow(f)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO flows (
			id, tenant_id, chatbot_id, name, nodes, edges,
			is_main, is_fallback, is_active, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :chatbot_id, :name, :nodes, :edges,
			:is_main, :is_fallback, :is_active, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			is_main = EXCLUDED.is_main,
			is_fallback = EXCLUDED.is_fallback,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return errx.Wrap(err, "failed to save flow", errx.TypeInternal).
			WithDetail("flow_id", f.ID.String())
	}

	return nil
}

func (r *PostgresFlowRepository) FindByID(ctx context.Context, id kernel.FlowID) (*flow.Flow, error) {
	query := fmt.Sprintf(`SELECT %s FROM flows WHERE id = $1`, flowColumns)

	var row dbFlow
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, flow.ErrFlowNotFound().WithDetail("flow_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find flow by id", errx.TypeInternal).
			WithDetail("flow_id", id.String())
	}

	return row.toDomain()
}

// FindMainByChannel resuelve el flow de entrada para un mensaje nuevo: el flow
// principal activo del chatbot que atiende el canal.
func (r *PostgresFlowRepository) FindMainByChannel(ctx context.Context, tenantID kernel.TenantID, channelID kernel.ChannelID) (*flow.Flow, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM flows f
		WHERE f.tenant_id = $1
		  AND f.is_main = true
		  AND f.is_active = true
		  AND f.chatbot_id = (SELECT chatbot_id FROM channels WHERE id = $2)
		LIMIT 1`, prefixedFlowColumns("f"))

	var row dbFlow
	err := r.db.GetContext(ctx, &row, query, tenantID.String(), channelID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, flow.ErrFlowNotFound().
				WithDetail("channel_id", channelID.String()).
				WithDetail("reason", "no active main flow for channel")
		}
		return nil, errx.Wrap(err, "failed to find main flow for channel", errx.TypeInternal).
			WithDetail("channel_id", channelID.String())
	}

	return row.toDomain()
}

func (r *PostgresFlowRepository) FindFallback(ctx context.Context, tenantID kernel.TenantID, chatbotID kernel.ChatbotID) (*flow.Flow, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM flows
		WHERE tenant_id = $1 AND chatbot_id = $2 AND is_fallback = true AND is_active = true
		LIMIT 1`, flowColumns)

	var row dbFlow
	err := r.db.GetContext(ctx, &row, query, tenantID.String(), chatbotID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, flow.ErrFlowNotFound().
				WithDetail("chatbot_id", chatbotID.String()).
				WithDetail("reason", "no fallback flow")
		}
		return nil, errx.Wrap(err, "failed to find fallback flow", errx.TypeInternal).
			WithDetail("chatbot_id", chatbotID.String())
	}

	return row.toDomain()
}

func (r *PostgresFlowRepository) FindByChatbot(ctx context.Context, tenantID kernel.TenantID, chatbotID kernel.ChatbotID) ([]*flow.Flow, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM flows
		WHERE tenant_id = $1 AND chatbot_id = $2
		ORDER BY name ASC`, flowColumns)

	var rows []dbFlow
	err := r.db.SelectContext(ctx, &rows, query, tenantID.String(), chatbotID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find flows by chatbot", errx.TypeInternal).
			WithDetail("chatbot_id", chatbotID.String())
	}

	result := make([]*flow.Flow, 0, len(rows))
	for _, row := range rows {
		f, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, nil
}

func (r *PostgresFlowRepository) Delete(ctx context.Context, id kernel.FlowID, tenantID kernel.TenantID) error {
	query := `DELETE FROM flows WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete flow", errx.TypeInternal).
			WithDetail("flow_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}

	if rowsAffected == 0 {
		return flow.ErrFlowNotFound().WithDetail("flow_id", id.String())
	}

	return nil
}

func (r *PostgresFlowRepository) List(ctx context.Context, req flow.FlowListRequest) (flow.FlowListResponse, error) {
	var conditions []string
	var args []any
	argPos := 1

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argPos))
	args = append(args, req.TenantID.String())
	argPos++

	if !req.ChatbotID.IsEmpty() {
		conditions = append(conditions, fmt.Sprintf("chatbot_id = $%d", argPos))
		args = append(args, req.ChatbotID.String())
		argPos++
	}

	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}

	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM flows WHERE %s", whereClause)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return flow.FlowListResponse{}, errx.Wrap(err, "failed to count flows", errx.TypeInternal)
	}

	dataQuery := fmt.Sprintf(`
		SELECT %s FROM flows
		WHERE %s
		ORDER BY name ASC
		LIMIT $%d OFFSET $%d`,
		flowColumns, whereClause, argPos, argPos+1)

	args = append(args, req.PageSize, req.GetOffset())

	var rows []dbFlow
	err = r.db.SelectContext(ctx, &rows, dataQuery, args...)
	if err != nil {
		return flow.FlowListResponse{}, errx.Wrap(err, "failed to list flows", errx.TypeInternal)
	}

	list := make([]flow.Flow, 0, len(rows))
	for _, row := range rows {
		f, err := row.toDomain()
		if err != nil {
			return flow.FlowListResponse{}, err
		}
		list = append(list, *f)
	}

	return storex.NewPaginated(list, total, req.Page, req.PageSize), nil
}

func prefixedFlowColumns(alias string) string {
	cols := strings.Split(flowColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
