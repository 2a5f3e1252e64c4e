package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pixel-storefront/internal/domain"
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepo struct {
	db  DB
	ttl time.Duration
	now func() time.Time
}

func NewPostgres(db DB, ttl time.Duration) Repository {
	return &postgresRepo{db: db, ttl: ttl, now: time.Now}
}

func (r *postgresRepo) Save(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO browser_sessions (id, access_token, refresh_token, expires_at, identity_id, email, is_anonymous, merge_source, theme_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    expires_at = EXCLUDED.expires_at,
    identity_id = EXCLUDED.identity_id,
    email = EXCLUDED.email,
    is_anonymous = EXCLUDED.is_anonymous,
    merge_source = EXCLUDED.merge_source,
    theme_id = EXCLUDED.theme_id,
    updated_at = EXCLUDED.updated_at
`
	_, err := r.db.Exec(ctx, q,
		rec.ID,
		rec.AccessToken,
		rec.RefreshToken,
		rec.ExpiresAt,
		rec.IdentityID,
		rec.Email,
		rec.Anonymous,
		rec.MergeSource,
		rec.ThemeID,
		r.now().UTC(),
	)
	return err
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*Record, error) {
	const q = `
SELECT id, access_token, refresh_token, expires_at, identity_id, email, is_anonymous, merge_source, theme_id, created_at, updated_at
FROM browser_sessions
WHERE id = $1 AND updated_at > $2
LIMIT 1
`
	var out Record
	if err := r.db.QueryRow(ctx, q, id, r.now().UTC().Add(-r.ttl)).Scan(
		&out.ID,
		&out.AccessToken,
		&out.RefreshToken,
		&out.ExpiresAt,
		&out.IdentityID,
		&out.Email,
		&out.Anonymous,
		&out.MergeSource,
		&out.ThemeID,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM browser_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Purge(ctx context.Context) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM browser_sessions WHERE updated_at <= $1`, r.now().UTC().Add(-r.ttl))
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
