package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/conecta-ies/solicitation-service/internal/domain"
)

// HistoryRepository stores the append-only audit ledger. There is no update
// or delete: entries are written once and read in timestamp order.
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.HistoryEntry) error
	ListBySolicitation(ctx context.Context, solicitationID string) ([]domain.HistoryEntry, error)
	WithTx(tx pgx.Tx) HistoryRepository
}

type historyRepository struct {
	db DBTX
}

// NewHistoryRepository builds the repository.
func NewHistoryRepository(db DBTX) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) WithTx(tx pgx.Tx) HistoryRepository {
	return &historyRepository{db: tx}
}

func (r *historyRepository) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO history_entries (solicitation_id, kind, description, actor_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, timestamp`
	return r.db.QueryRow(ctx, query,
		entry.SolicitationID,
		entry.Kind,
		entry.Description,
		entry.ActorID,
	).Scan(&entry.ID, &entry.Timestamp)
}

// ListBySolicitation returns entries oldest first, each annotated with the
// acting user's display name when the user still exists.
func (r *historyRepository) ListBySolicitation(ctx context.Context, solicitationID string) ([]domain.HistoryEntry, error) {
	const query = `
        SELECT h.id, h.solicitation_id, h.kind, h.description, h.actor_id, u.name, h.timestamp
        FROM history_entries h
        LEFT JOIN users u ON u.id = h.actor_id
        WHERE h.solicitation_id=$1
        ORDER BY h.timestamp ASC`
	rows, err := r.db.Query(ctx, query, solicitationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.SolicitationID,
			&entry.Kind,
			&entry.Description,
			&entry.ActorID,
			&entry.ActorName,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
