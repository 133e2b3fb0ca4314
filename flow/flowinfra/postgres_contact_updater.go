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

// contactColumns campos conocidos de la tabla contacts; todo lo demás va al
// JSONB custom_fields
var knownContactFields = map[string]bool{
	"name":  true,
	"email": true,
	"tags":  true,
}

// PostgresContactUpdater escribe los datos recolectados durante un flow en el
// registro CRM del contato. El contato se crea si no existe: un flow puede
// correr antes de que el operador lo registre.
type PostgresContactUpdater struct {
	db *sqlx.DB
}

var _ flow.ContactUpdater = (*PostgresContactUpdater)(nil)

func NewPostgresContactUpdater(db *sqlx.DB) *PostgresContactUpdater {
	return &PostgresContactUpdater{db: db}
}

func (u *PostgresContactUpdater) UpdateContact(ctx context.Context, tenantID kernel.TenantID, contactID string, fields map[string]any, custom map[string]any) error {
	merged := make(map[string]any)
	known := make(map[string]any)
	for k, v := range fields {
		if knownContactFields[k] {
			known[k] = v
		} else {
			merged[k] = v
		}
	}
	for k, v := range custom {
		merged[k] = v
	}

	customJSON, err := json.Marshal(merged)
	if err != nil {
		return errx.Wrap(err, "failed to marshal custom fields", errx.TypeInternal)
	}

	name, _ := known["name"].(string)
	email, _ := known["email"].(string)

	query := `
		INSERT INTO contacts (tenant_id, phone, name, email, custom_fields, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $6)
		ON CONFLICT (tenant_id, phone) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), contacts.email),
			custom_fields = contacts.custom_fields || EXCLUDED.custom_fields,
			updated_at = EXCLUDED.updated_at`

	_, err = u.db.ExecContext(ctx, query, tenantID.String(), contactID, name, email, customJSON, time.Now())
	if err != nil {
		return errx.Wrap(err, "failed to update contact", errx.TypeInternal).
			WithDetail("contact_id", contactID).
			WithDetail("tenant_id", tenantID.String())
	}

	return nil
}
