package auditlog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/platform/db"
)

type entryRepoPG struct{ pool *pgxpool.Pool }

func NewEntryRepoPG(pool *pgxpool.Pool) EntryRepository {
	return &entryRepoPG{pool: pool}
}

func (r *entryRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *entryRepoPG) Create(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_log (id, user_id, action, target_id, ip_address)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING timestamp`,
		e.ID, e.UserID, e.Action, e.TargetID, e.IPAddress,
	).Scan(&e.Timestamp)
}

func (r *entryRepoPG) ListRecent(ctx context.Context, limit int) ([]*EntryView, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.user_id, a.action, a.target_id, a.ip_address, a.timestamp,
			COALESCE(u.name, ''), COALESCE(u.role, '')
		FROM audit_log a LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*EntryView
	for rows.Next() {
		var v EntryView
		if err := rows.Scan(&v.ID, &v.UserID, &v.Action, &v.TargetID, &v.IPAddress, &v.Timestamp,
			&v.UserName, &v.UserRole); err != nil {
			return nil, err
		}
		items = append(items, &v)
	}
	return items, rows.Err()
}
