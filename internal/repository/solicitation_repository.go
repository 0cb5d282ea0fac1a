package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/conecta-ies/solicitation-service/internal/domain"
)

// SolicitationRepository encapsulates solicitation persistence. Status and
// first-response stamping go through dedicated update methods; everything
// else on a stored solicitation is immutable.
type SolicitationRepository interface {
	Create(ctx context.Context, s *domain.Solicitation) error
	GetByID(ctx context.Context, id string) (*domain.Solicitation, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Solicitation, error)
	ListByStatusIn(ctx context.Context, statuses []domain.SolicitationStatus, orderBy StatusListOrder) ([]domain.Solicitation, error)
	UpdateStatus(ctx context.Context, id string, status domain.SolicitationStatus) error
	SetFirstResponse(ctx context.Context, id string, status domain.SolicitationStatus, respondedAt time.Time) error
	CountCreatedInYear(ctx context.Context, year int) (int64, error)
	WithTx(tx pgx.Tx) SolicitationRepository
}

// StatusListOrder selects the sort column for status-filtered listings.
type StatusListOrder string

const (
	OrderByCreatedDesc StatusListOrder = "created_at DESC"
	OrderByUpdatedDesc StatusListOrder = "updated_at DESC"
)

type solicitationRepository struct {
	db DBTX
}

// NewSolicitationRepository instantiates the repository over a pool or tx.
func NewSolicitationRepository(db DBTX) SolicitationRepository {
	return &solicitationRepository{db: db}
}

func (r *solicitationRepository) WithTx(tx pgx.Tx) SolicitationRepository {
	return &solicitationRepository{db: tx}
}

const solicitationColumns = `s.id, s.protocol, s.title, s.description, s.category, s.status,
       s.owner_id, u.name, s.created_at, s.updated_at, s.first_response_at`

func (r *solicitationRepository) Create(ctx context.Context, s *domain.Solicitation) error {
	const query = `
        INSERT INTO solicitations (protocol, title, description, category, status, owner_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		s.Protocol,
		s.Title,
		s.Description,
		s.Category,
		s.Status,
		s.OwnerID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *solicitationRepository) GetByID(ctx context.Context, id string) (*domain.Solicitation, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM solicitations s
        LEFT JOIN users u ON u.id = s.owner_id
        WHERE s.id=$1`, solicitationColumns)
	var s domain.Solicitation
	if err := scanSolicitation(r.db.QueryRow(ctx, query, id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *solicitationRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Solicitation, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM solicitations s
        LEFT JOIN users u ON u.id = s.owner_id
        WHERE s.owner_id=$1
        ORDER BY s.created_at DESC`, solicitationColumns)
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSolicitations(rows)
}

func (r *solicitationRepository) ListByStatusIn(ctx context.Context, statuses []domain.SolicitationStatus, orderBy StatusListOrder) ([]domain.Solicitation, error) {
	if len(statuses) == 0 {
		return []domain.Solicitation{}, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	if orderBy == "" {
		orderBy = OrderByCreatedDesc
	}
	query := fmt.Sprintf(`
        SELECT %s FROM solicitations s
        LEFT JOIN users u ON u.id = s.owner_id
        WHERE s.status IN (%s)
        ORDER BY s.%s`, solicitationColumns, strings.Join(placeholders, ","), orderBy)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSolicitations(rows)
}

func (r *solicitationRepository) UpdateStatus(ctx context.Context, id string, status domain.SolicitationStatus) error {
	const query = `UPDATE solicitations SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetFirstResponse stamps first_response_at only when it is still null, so
// the timestamp survives repeated first-response calls unchanged.
func (r *solicitationRepository) SetFirstResponse(ctx context.Context, id string, status domain.SolicitationStatus, respondedAt time.Time) error {
	const query = `
        UPDATE solicitations
        SET status=$1,
            first_response_at=COALESCE(first_response_at, $2),
            updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.db.Exec(ctx, query, status, respondedAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *solicitationRepository) CountCreatedInYear(ctx context.Context, year int) (int64, error) {
	const query = `SELECT COUNT(*) FROM solicitations WHERE EXTRACT(YEAR FROM created_at) = $1`
	var count int64
	if err := r.db.QueryRow(ctx, query, year).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanSolicitation(row pgx.Row, s *domain.Solicitation) error {
	return row.Scan(
		&s.ID,
		&s.Protocol,
		&s.Title,
		&s.Description,
		&s.Category,
		&s.Status,
		&s.OwnerID,
		&s.OwnerName,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.FirstResponseAt,
	)
}

func scanSolicitations(rows pgx.Rows) ([]domain.Solicitation, error) {
	var result []domain.Solicitation
	for rows.Next() {
		var s domain.Solicitation
		if err := scanSolicitation(rows, &s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
