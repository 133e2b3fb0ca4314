package flowinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

type PostgresConversationRepository struct {
	db *sqlx.DB
}

var _ flow.ConversationRepository = (*PostgresConversationRepository)(nil)

func NewPostgresConversationRepository(db *sqlx.DB) *PostgresConversationRepository {
	return &PostgresConversationRepository{db: db}
}

// dbConversation fila de la tabla conversations; context es JSONB
type dbConversation struct {
	ID            string     `db:"id"`
	TenantID      string     `db:"tenant_id"`
	ChannelID     string     `db:"channel_id"`
	ContactID     string     `db:"contact_id"`
	ActiveFlowID  string     `db:"active_flow_id"`
	CurrentNodeID *string    `db:"current_node_id"`
	Context       []byte     `db:"context"`
	IsBotActive   bool       `db:"is_bot_active"`
	Status        string     `db:"status"`
	QueueID       string     `db:"queue_id"`
	Priority      string     `db:"priority"`
	AwaitingSince *time.Time `db:"awaiting_since"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func toDBConversation(c flow.Conversation) (dbConversation, error) {
	contextJSON, err := json.Marshal(c.Context)
	if err != nil {
		return dbConversation{}, errx.Wrap(err, "failed to marshal conversation context", errx.TypeInternal)
	}
	return dbConversation{
		ID:            c.ID.String(),
		TenantID:      c.TenantID.String(),
		ChannelID:     c.ChannelID.String(),
		ContactID:     c.ContactID,
		ActiveFlowID:  c.ActiveFlowID.String(),
		CurrentNodeID: c.CurrentNodeID,
		Context:       contextJSON,
		IsBotActive:   c.IsBotActive,
		Status:        string(c.Status),
		QueueID:       c.QueueID.String(),
		Priority:      string(c.Priority),
		AwaitingSince: c.AwaitingSince,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}, nil
}

func (d dbConversation) toDomain() (*flow.Conversation, error) {
	execContext := flow.NewExecutionContext()
	if len(d.Context) > 0 {
		if err := json.Unmarshal(d.Context, &execContext); err != nil {
			return nil, errx.Wrap(err, "failed to unmarshal conversation context", errx.TypeInternal)
		}
	}
	return &flow.Conversation{
		ID:            kernel.NewConversationID(d.ID),
		TenantID:      kernel.NewTenantID(d.TenantID),
		ChannelID:     kernel.NewChannelID(d.ChannelID),
		ContactID:     d.ContactID,
		ActiveFlowID:  kernel.NewFlowID(d.ActiveFlowID),
		CurrentNodeID: d.CurrentNodeID,
		Context:       execContext,
		IsBotActive:   d.IsBotActive,
		Status:        flow.ConversationStatus(d.Status),
		QueueID:       kernel.NewQueueID(d.QueueID),
		Priority:      flow.Priority(d.Priority),
		AwaitingSince: d.AwaitingSince,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

const conversationColumns = `id, tenant_id, channel_id, contact_id, active_flow_id, current_node_id, context, is_bot_active, status, queue_id, priority, awaiting_since, created_at, updated_at`

func (r *PostgresConversationRepository) Save(ctx context.Context, conv flow.Conversation) error {
	row, err := toDBConversation(conv)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO conversations (
			id, tenant_id, channel_id, contact_id, active_flow_id,
			current_node_id, context, is_bot_active, status, queue_id,
			priority, awaiting_since, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :channel_id, :contact_id, :active_flow_id,
			:current_node_id, :context, :is_bot_active, :status, :queue_id,
			:priority, :awaiting_since, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			active_flow_id = EXCLUDED.active_flow_id,
			current_node_id = EXCLUDED.current_node_id,
			context = EXCLUDED.context,
			is_bot_active = EXCLUDED.is_bot_active,
			status = EXCLUDED.status,
			queue_id = EXCLUDED.queue_id,
			priority = EXCLUDED.priority,
			awaiting_since = EXCLUDED.awaiting_since,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return errx.Wrap(err, "failed to save conversation", errx.TypeInternal).
			WithDetail("conversation_id", conv.ID.String())
	}

	return nil
}

func (r *PostgresConversationRepository) FindByID(ctx context.Context, id kernel.ConversationID) (*flow.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE id = $1`, conversationColumns)

	var row dbConversation
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, flow.ErrConversationNotFound().WithDetail("conversation_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find conversation by id", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}

	return row.toDomain()
}

// FindByChannelAndContact localiza la conversación abierta de un contato en un
// canal. Hay a lo sumo una: el par (channel_id, contact_id) es único.
func (r *PostgresConversationRepository) FindByChannelAndContact(ctx context.Context, channelID kernel.ChannelID, contactID string) (*flow.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM conversations
		WHERE channel_id = $1 AND contact_id = $2
		LIMIT 1`, conversationColumns)

	var row dbConversation
	err := r.db.GetContext(ctx, &row, query, channelID.String(), contactID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, flow.ErrConversationNotFound().
				WithDetail("channel_id", channelID.String()).
				WithDetail("contact_id", contactID)
		}
		return nil, errx.Wrap(err, "failed to find conversation by channel and contact", errx.TypeInternal).
			WithDetail("channel_id", channelID.String())
	}

	return row.toDomain()
}

func (r *PostgresConversationRepository) FindAwaitingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*flow.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM conversations
		WHERE awaiting_since IS NOT NULL
		  AND awaiting_since < $1
		  AND is_bot_active = true
		ORDER BY awaiting_since ASC
		LIMIT $2`, conversationColumns)

	var rows []dbConversation
	err := r.db.SelectContext(ctx, &rows, query, cutoff, limit)
	if err != nil {
		return nil, errx.Wrap(err, "failed to find awaiting conversations", errx.TypeInternal)
	}

	result := make([]*flow.Conversation, 0, len(rows))
	for _, row := range rows {
		conv, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, conv)
	}
	return result, nil
}

func (r *PostgresConversationRepository) Delete(ctx context.Context, id kernel.ConversationID) error {
	query := `DELETE FROM conversations WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete conversation", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}

	if rowsAffected == 0 {
		return flow.ErrConversationNotFound().WithDetail("conversation_id", id.String())
	}

	return nil
}
