package handlers

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/conecta-ies/solicitation-service/internal/api/dto"
	"github.com/conecta-ies/solicitation-service/internal/auth"
	"github.com/conecta-ies/solicitation-service/internal/domain"
	"github.com/conecta-ies/solicitation-service/internal/service"
	"github.com/conecta-ies/solicitation-service/internal/storage"
	apperrors "github.com/conecta-ies/solicitation-service/pkg/util"
)

// allowedUploadType reports whether the MIME type is accepted for attachments.
func allowedUploadType(mime string) bool {
	switch mime {
	case "image/jpeg",
		"image/png",
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	}
	return false
}

// SolicitationsHandler exposes the solicitation lifecycle over HTTP.
type SolicitationsHandler struct {
	service      *service.SolicitationService
	blobs        storage.BlobStore
	maxFileBytes int64
}

// NewSolicitationsHandler constructs the handler.
func NewSolicitationsHandler(solicitationService *service.SolicitationService, blobs storage.BlobStore, maxFileBytes int64) *SolicitationsHandler {
	return &SolicitationsHandler{service: solicitationService, blobs: blobs, maxFileBytes: maxFileBytes}
}

// Create handles POST /solicitations. The body is multipart: form fields
// title, description and category plus up to three files under "attachments".
func (h *SolicitationsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}

	var req dto.CreateSolicitationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	files, err := h.formFiles(c)
	if err != nil {
		return err
	}
	attachments, err := h.storeFiles(c, files)
	if err != nil {
		return err
	}

	solicitation, err := h.service.Create(c.UserContext(), service.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		OwnerID:     principal.User.ID,
		Attachments: attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.NewSolicitationResponse(solicitation, h.service.Now().Now()),
	})
}

// ListMine handles GET /solicitations/mine.
func (h *SolicitationsHandler) ListMine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	list, err := h.service.ListMine(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSolicitationResponses(list, h.service.Now().Now())})
}

// ListNew handles GET /solicitations/admin/new: every non-resolved request.
func (h *SolicitationsHandler) ListNew(c *fiber.Ctx) error {
	list, err := h.service.ListNew(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSolicitationResponses(list, h.service.Now().Now())})
}

// ListResolved handles GET /solicitations/admin/resolved.
func (h *SolicitationsHandler) ListResolved(c *fiber.Ctx) error {
	list, err := h.service.ListResolved(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSolicitationResponses(list, h.service.Now().Now())})
}

// Get handles GET /solicitations/:id. A missing id yields 200 with null data.
func (h *SolicitationsHandler) Get(c *fiber.Ctx) error {
	solicitation, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if solicitation == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": dto.NewSolicitationResponse(solicitation, h.service.Now().Now())})
}

// History handles GET /solicitations/:id/history.
func (h *SolicitationsHandler) History(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}

// AddComment handles POST /solicitations/:id/comments.
func (h *SolicitationsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entry, err := h.service.AddComment(c.UserContext(), c.Params("id"), req.Text, principal.User.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.NewHistoryResponses([]domain.HistoryEntry{*entry})[0],
	})
}

// Assign handles PATCH /solicitations/:id/assign (admin only).
func (h *SolicitationsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.AssigneeID) == "" {
		return apperrors.NewValidationError("assigneeId is required", nil)
	}
	solicitation, err := h.service.Assign(c.UserContext(), c.Params("id"), req.AssigneeID, req.Note, principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSolicitationResponse(solicitation, h.service.Now().Now())})
}

// FirstResponse handles POST /solicitations/:id/first-response (admin only).
func (h *SolicitationsHandler) FirstResponse(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.FirstResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	solicitation, err := h.service.FirstResponse(c.UserContext(), c.Params("id"), req.Text, principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSolicitationResponse(solicitation, h.service.Now().Now())})
}

// Resolve handles PATCH /solicitations/:id/resolve.
func (h *SolicitationsHandler) Resolve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	solicitation, err := h.service.Resolve(c.UserContext(), c.Params("id"), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSolicitationResponse(solicitation, h.service.Now().Now())})
}

// formFiles extracts and validates the multipart attachments before any file
// is written to disk.
func (h *SolicitationsHandler) formFiles(c *fiber.Ctx) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// Plain JSON bodies without files are accepted.
		return nil, nil
	}
	files := form.File["attachments"]
	if len(files) > domain.MaxAttachments {
		return nil, apperrors.NewValidationError("at most 3 attachments allowed", map[string]any{"attachments": len(files)})
	}
	for _, file := range files {
		if file.Size > h.maxFileBytes {
			return nil, apperrors.NewValidationError("attachment exceeds 5MB limit", map[string]any{"file": file.Filename})
		}
		if !allowedUploadType(mimeType(file)) {
			return nil, apperrors.NewValidationError("unsupported attachment type", map[string]any{"file": file.Filename, "mimeType": mimeType(file)})
		}
	}
	return files, nil
}

func (h *SolicitationsHandler) storeFiles(c *fiber.Ctx, files []*multipart.FileHeader) ([]service.AttachmentInput, error) {
	inputs := make([]service.AttachmentInput, 0, len(files))
	for _, file := range files {
		src, err := file.Open()
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		stored, err := h.blobs.Save(c.UserContext(), file.Filename, mimeType(file), src)
		_ = src.Close()
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		inputs = append(inputs, service.AttachmentInput{
			Name:     file.Filename,
			URL:      stored.PublicURL,
			MimeType: stored.MimeType,
		})
	}
	return inputs, nil
}

func mimeType(file *multipart.FileHeader) string {
	ct := file.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
