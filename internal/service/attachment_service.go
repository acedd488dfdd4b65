package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/storage"
)

type attachmentRepository interface {
	Create(ctx context.Context, att *models.Attachment) error
	FindByID(ctx context.Context, id string) (*models.Attachment, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.Attachment, error)
	Delete(ctx context.Context, id string) error
}

// AttachmentOptions bounds what uploads are accepted.
type AttachmentOptions struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// SignedDownload is a time-limited download grant for one attachment.
type SignedDownload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AttachmentService stores request attachments on disk and hands out signed
// download tokens so files are never served from a guessable path.
type AttachmentService struct {
	repo   attachmentRepository
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
	opts   AttachmentOptions
	logger *zap.Logger
}

// NewAttachmentService constructs an AttachmentService.
func NewAttachmentService(repo attachmentRepository, store *storage.LocalStorage, signer *storage.SignedURLSigner, opts AttachmentOptions, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxFileSizeBytes <= 0 {
		opts.MaxFileSizeBytes = 20 << 20
	}
	return &AttachmentService{repo: repo, store: store, signer: signer, opts: opts, logger: logger}
}

// Upload validates and persists one file against a request.
func (s *AttachmentService) Upload(ctx context.Context, requestID, filename, mimeType string, data []byte, uploaderID string) (*models.Attachment, error) {
	if requestID == "" || filename == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request id and filename are required")
	}
	if int64(len(data)) > s.opts.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds maximum size of %d bytes", s.opts.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
	}

	id := uuid.NewString()
	relPath := filepath.Join(requestID, id+filepath.Ext(filename))
	if _, err := s.store.Save(relPath, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}

	att := &models.Attachment{
		ID:         id,
		RequestID:  requestID,
		Filename:   filepath.Base(filename),
		Path:       relPath,
		MimeType:   mimeType,
		SizeBytes:  int64(len(data)),
		UploadedBy: uploaderID,
	}
	if err := s.repo.Create(ctx, att); err != nil {
		if removeErr := s.store.Delete(relPath); removeErr != nil {
			s.logger.Warn("failed to remove orphaned attachment file", zap.String("path", relPath), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attachment metadata")
	}
	return att, nil
}

// List returns attachments for a request.
func (s *AttachmentService) List(ctx context.Context, requestID string) ([]models.Attachment, error) {
	atts, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attachments")
	}
	return atts, nil
}

// SignDownload issues a signed token for one attachment.
func (s *AttachmentService) SignDownload(ctx context.Context, attachmentID string) (*SignedDownload, error) {
	att, err := s.find(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(att.RequestID, att.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &SignedDownload{Token: token, ExpiresAt: expiresAt}, nil
}

// Open validates a signed token and returns the file handle plus metadata.
func (s *AttachmentService) Open(ctx context.Context, token string) (*os.File, *models.Attachment, error) {
	requestID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	atts, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachments")
	}
	var match *models.Attachment
	for i := range atts {
		if atts[i].Path == relPath {
			match = &atts[i]
			break
		}
	}
	if match == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment")
	}
	return file, match, nil
}

// Delete removes the metadata row and the stored file.
func (s *AttachmentService) Delete(ctx context.Context, attachmentID string) error {
	att, err := s.find(ctx, attachmentID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, attachmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attachment")
	}
	if err := s.store.Delete(att.Path); err != nil {
		s.logger.Warn("failed to delete attachment file", zap.String("path", att.Path), zap.Error(err))
	}
	return nil
}

func (s *AttachmentService) find(ctx context.Context, id string) (*models.Attachment, error) {
	att, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	return att, nil
}

func (s *AttachmentService) mimeAllowed(mimeType string) bool {
	if len(s.opts.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowedMIMEs {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}
