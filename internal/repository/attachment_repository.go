package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/conecta-ies/solicitation-service/internal/domain"
)

// AttachmentRepository persists attachment metadata. Rows are written only
// during solicitation creation and never updated.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	ListBySolicitation(ctx context.Context, solicitationID string) ([]domain.Attachment, error)
	WithTx(tx pgx.Tx) AttachmentRepository
}

type attachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository constructs the repository.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) WithTx(tx pgx.Tx) AttachmentRepository {
	return &attachmentRepository{db: tx}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (solicitation_id, name, url, mime_type)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		attachment.SolicitationID,
		attachment.Name,
		attachment.URL,
		attachment.MimeType,
	).Scan(&attachment.ID, &attachment.CreatedAt)
}

func (r *attachmentRepository) ListBySolicitation(ctx context.Context, solicitationID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, solicitation_id, name, url, mime_type, created_at
        FROM attachments WHERE solicitation_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, solicitationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.SolicitationID,
			&attachment.Name,
			&attachment.URL,
			&attachment.MimeType,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}
