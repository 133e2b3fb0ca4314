package flowinfra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

// PostgresMessageRepository persiste el rastro de mensajes del engine:
// entrantes normalizados y salientes con su ID de proveedor.
type PostgresMessageRepository struct {
	db *sqlx.DB
}

var _ flow.MessageRepository = (*PostgresMessageRepository)(nil)

func NewPostgresMessageRepository(db *sqlx.DB) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

type dbInboundMessage struct {
	ID             string    `db:"id"`
	TenantID       string    `db:"tenant_id"`
	ConversationID string    `db:"conversation_id"`
	ChannelID      string    `db:"channel_id"`
	Sender         string    `db:"sender"`
	Type           string    `db:"type"`
	Body           string    `db:"body"`
	Metadata       []byte    `db:"metadata"`
	ReceivedAt     time.Time `db:"received_at"`
}

func (r *PostgresMessageRepository) SaveInbound(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, msg flow.InboundMessage) error {
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return errx.Wrap(err, "failed to marshal message metadata", errx.TypeInternal)
	}

	row := dbInboundMessage{
		ID:             msg.ID.String(),
		TenantID:       tenantID.String(),
		ConversationID: conversationID.String(),
		ChannelID:      msg.ChannelID.String(),
		Sender:         msg.From,
		Type:           msg.Type,
		Body:           msg.Text,
		Metadata:       metadataJSON,
		ReceivedAt:     msg.Timestamp,
	}

	query := `
		INSERT INTO inbound_messages (
			id, tenant_id, conversation_id, channel_id, sender, type, body, metadata, received_at
		) VALUES (
			:id, :tenant_id, :conversation_id, :channel_id, :sender, :type, :body, :metadata, :received_at
		)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return errx.Wrap(err, "failed to save inbound message", errx.TypeInternal).
			WithDetail("message_id", msg.ID.String())
	}

	return nil
}

func (r *PostgresMessageRepository) CreateOutboundRecord(ctx context.Context, rec flow.OutboundRecord) error {
	query := `
		INSERT INTO outbound_messages (
			id, tenant_id, conversation_id, node_id, kind, body, provider_msg_id, created_at
		) VALUES (
			:id, :tenant_id, :conversation_id, :node_id, :kind, :body, :provider_msg_id, :created_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return errx.Wrap(err, "failed to create outbound record", errx.TypeInternal).
			WithDetail("message_id", rec.ID.String())
	}

	return nil
}

func (r *PostgresMessageRepository) CountOutboundByConversation(ctx context.Context, conversationID kernel.ConversationID) (int, error) {
	query := `SELECT COUNT(*) FROM outbound_messages WHERE conversation_id = $1`

	var count int
	err := r.db.GetContext(ctx, &count, query, conversationID.String())
	if err != nil {
		return 0, errx.Wrap(err, "failed to count outbound messages", errx.TypeInternal).
			WithDetail("conversation_id", conversationID.String())
	}

	return count, nil
}
