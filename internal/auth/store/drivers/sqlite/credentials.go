package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/patronhq/patron/internal/auth/domain"
)

type credentialsRepo struct {
	db *sql.DB
}

const credentialColumns = `id, creator_id, client_id, secret_enc, label,
	is_active, revoked_at, created_at`

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.APICredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_credentials (id, creator_id, client_id, secret_enc, label, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CreatorID, c.ClientID, c.SecretEnc, c.Label, c.IsActive, c.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *credentialsRepo) GetCredentialByClientID(ctx context.Context, clientID string) (domain.APICredential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM api_credentials WHERE client_id = ?`, clientID)

	var c domain.APICredential
	var revokedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.CreatorID, &c.ClientID, &c.SecretEnc, &c.Label,
		&c.IsActive, &revokedAt, &c.CreatedAt,
	)
	if err != nil {
		return domain.APICredential{}, mapNotFound(err)
	}
	c.RevokedAt = mapNullTimePtr(revokedAt)
	return c, nil
}

func (r *credentialsRepo) ListCredentialsByCreator(ctx context.Context, creatorID string) ([]domain.APICredential, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+credentialColumns+` FROM api_credentials
		WHERE creator_id = ?
		ORDER BY created_at DESC`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.APICredential
	for rows.Next() {
		var c domain.APICredential
		var revokedAt sql.NullTime
		if err := rows.Scan(
			&c.ID, &c.CreatorID, &c.ClientID, &c.SecretEnc, &c.Label,
			&c.IsActive, &revokedAt, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		c.RevokedAt = mapNullTimePtr(revokedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *credentialsRepo) RevokeCredential(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE api_credentials SET is_active = 0, revoked_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *credentialsRepo) DeleteRevokedCredentialsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM api_credentials
		WHERE is_active = 0 AND revoked_at IS NOT NULL AND revoked_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
