package channelsinfra

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
	"github.com/lib/pq"
	"github.com/xkayo32/pytake-flow/channels"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

type PostgresChannelRepository struct {
	db *sqlx.DB
}

var _ channels.ChannelRepository = (*PostgresChannelRepository)(nil)

func NewPostgresChannelRepository(db *sqlx.DB) *PostgresChannelRepository {
	return &PostgresChannelRepository{db: db}
}

// dbChannel fila de la tabla channels; config es JSONB
type dbChannel struct {
	ID          string    `db:"id"`
	TenantID    string    `db:"tenant_id"`
	ChatbotID   string    `db:"chatbot_id"`
	Mode        string    `db:"mode"`
	Name        string    `db:"name"`
	PhoneNumber string    `db:"phone_number"`
	Config      []byte    `db:"config"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func toDBChannel(c channels.Channel) (dbChannel, error) {
	configJSON, err := json.Marshal(c.Config)
	if err != nil {
		return dbChannel{}, errx.Wrap(err, "failed to marshal channel config", errx.TypeInternal)
	}
	return dbChannel{
		ID:          c.ID.String(),
		TenantID:    c.TenantID.String(),
		ChatbotID:   c.ChatbotID.String(),
		Mode:        string(c.Mode),
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Config:      configJSON,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}, nil
}

func (d dbChannel) toDomain() (*channels.Channel, error) {
	var config map[string]any
	if len(d.Config) > 0 {
		if err := json.Unmarshal(d.Config, &config); err != nil {
			return nil, errx.Wrap(err, "failed to unmarshal channel config", errx.TypeInternal)
		}
	}
	return &channels.Channel{
		ID:          kernel.NewChannelID(d.ID),
		TenantID:    kernel.NewTenantID(d.TenantID),
		ChatbotID:   kernel.NewChatbotID(d.ChatbotID),
		Mode:        channels.ChannelMode(d.Mode),
		Name:        d.Name,
		PhoneNumber: d.PhoneNumber,
		Config:      config,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

const channelColumns = `id, tenant_id, chatbot_id, mode, name, phone_number, config, is_active, created_at, updated_at`

func (r *PostgresChannelRepository) Save(ctx context.Context, channel channels.Channel) error {
	row, err := toDBChannel(channel)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO channels (
			id, tenant_id, chatbot_id, mode, name, phone_number, config,
			is_active, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :chatbot_id, :mode, :name, :phone_number, :config,
			:is_active, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			mode = EXCLUDED.mode,
			name = EXCLUDED.name,
			phone_number = EXCLUDED.phone_number,
			config = EXCLUDED.config,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "channels_name_tenant_id_key" {
				return channels.ErrChannelAlreadyExists().
					WithDetail("name", channel.Name).
					WithDetail("tenant_id", channel.TenantID.String())
			}
		}
		return errx.Wrap(err, "failed to save channel", errx.TypeInternal).
			WithDetail("channel_id", channel.ID.String())
	}

	return nil
}

func (r *PostgresChannelRepository) FindByID(ctx context.Context, id kernel.ChannelID, tenantID kernel.TenantID) (*channels.Channel, error) {
	query := fmt.Sprintf(`SELECT %s FROM channels WHERE id = $1 AND tenant_id = $2`, channelColumns)

	var row dbChannel
	err := r.db.GetContext(ctx, &row, query, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, channels.ErrChannelNotFound().WithDetail("channel_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find channel by id", errx.TypeInternal).
			WithDetail("channel_id", id.String())
	}

	return row.toDomain()
}

// FindByPhoneNumberID localiza el canal que atiende un webhook: para canales
// Cloud API por config->>'phone_number_id', para bridge por session_id.
func (r *PostgresChannelRepository) FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*channels.Channel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM channels
		WHERE config->>'phone_number_id' = $1 OR config->>'session_id' = $1
		LIMIT 1`, channelColumns)

	var row dbChannel
	err := r.db.GetContext(ctx, &row, query, phoneNumberID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, channels.ErrChannelNotFound().WithDetail("phone_number_id", phoneNumberID)
		}
		return nil, errx.Wrap(err, "failed to find channel by phone number id", errx.TypeInternal).
			WithDetail("phone_number_id", phoneNumberID)
	}

	return row.toDomain()
}

func (r *PostgresChannelRepository) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*channels.Channel, error) {
	query := fmt.Sprintf(`SELECT %s FROM channels WHERE tenant_id = $1 ORDER BY name ASC`, channelColumns)

	var rows []dbChannel
	err := r.db.SelectContext(ctx, &rows, query, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find channels by tenant", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}

	return toDomainList(rows)
}

func (r *PostgresChannelRepository) FindActive(ctx context.Context, tenantID kernel.TenantID) ([]*channels.Channel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM channels
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY name ASC`, channelColumns)

	var rows []dbChannel
	err := r.db.SelectContext(ctx, &rows, query, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find active channels", errx.TypeInternal)
	}

	return toDomainList(rows)
}

func (r *PostgresChannelRepository) List(ctx context.Context, req channels.ListChannelsRequest) (channels.ChannelListResponse, error) {
	var conditions []string
	var args []any
	argPos := 1

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argPos))
	args = append(args, req.TenantID.String())
	argPos++

	if req.Mode != nil {
		conditions = append(conditions, fmt.Sprintf("mode = $%d", argPos))
		args = append(args, string(*req.Mode))
		argPos++
	}

	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}

	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR phone_number ILIKE $%d)", argPos, argPos+1))
		searchPattern := "%" + req.Search + "%"
		args = append(args, searchPattern, searchPattern)
		argPos += 2
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM channels WHERE %s", whereClause)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return channels.ChannelListResponse{}, errx.Wrap(err, "failed to count channels", errx.TypeInternal)
	}

	dataQuery := fmt.Sprintf(`
		SELECT %s FROM channels
		WHERE %s
		ORDER BY name ASC
		LIMIT $%d OFFSET $%d`,
		channelColumns, whereClause, argPos, argPos+1)

	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)

	var rows []dbChannel
	err = r.db.SelectContext(ctx, &rows, dataQuery, args...)
	if err != nil {
		return channels.ChannelListResponse{}, errx.Wrap(err, "failed to list channels", errx.TypeInternal)
	}

	list := make([]channels.Channel, 0, len(rows))
	for _, row := range rows {
		channel, err := row.toDomain()
		if err != nil {
			return channels.ChannelListResponse{}, err
		}
		list = append(list, *channel)
	}

	return storex.NewPaginated(list, total, req.Page, req.PageSize), nil
}

func (r *PostgresChannelRepository) Delete(ctx context.Context, id kernel.ChannelID, tenantID kernel.TenantID) error {
	query := `DELETE FROM channels WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete channel", errx.TypeInternal).
			WithDetail("channel_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}

	if rowsAffected == 0 {
		return channels.ErrChannelNotFound().WithDetail("channel_id", id.String())
	}

	return nil
}

func (r *PostgresChannelRepository) ExistsByName(ctx context.Context, name string, tenantID kernel.TenantID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM channels WHERE name = $1 AND tenant_id = $2)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, name, tenantID.String())
	if err != nil {
		return false, errx.Wrap(err, "failed to check channel existence by name", errx.TypeInternal).
			WithDetail("name", name)
	}

	return exists, nil
}

func toDomainList(rows []dbChannel) ([]*channels.Channel, error) {
	result := make([]*channels.Channel, 0, len(rows))
	for _, row := range rows {
		channel, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, channel)
	}
	return result, nil
}
