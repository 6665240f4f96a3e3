package auth

import (
	"context"

	"github.com/2beens/vitalsync/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	db *pgxpool.Pool
}

func NewUsersRepo(db *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{
		db: db,
	}
}

// Upsert creates the user on first login and refreshes updated_at on
// subsequent ones.
func (r *UsersRepo) Upsert(ctx context.Context, id, email string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.upsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(ctx, `
		INSERT INTO vs_user (id, email)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			updated_at = now()`,
		id, email,
	)
	return err
}

func (r *UsersRepo) Exists(ctx context.Context, id string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.exists")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var exists bool
	row := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vs_user WHERE id = $1)`, id)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
