package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/kb-api/internal/dto"
	"github.com/noah-isme/kb-api/internal/models"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
	"github.com/noah-isme/kb-api/pkg/storage"
)

type blobStore interface {
	SaveStream(name string, r io.Reader, limit int64) (int64, error)
	Open(name string) (*os.File, error)
	Exists(name string) bool
}

type downloadSigner interface {
	Generate(ref string) (string, time.Time, error)
	Parse(token string) (string, time.Time, error)
}

// AttachmentConfig holds upload limits and URL layout.
type AttachmentConfig struct {
	MaxFileSize int64
	APIPrefix   string
}

// AttachmentDownload bundles an opened attachment for streaming.
type AttachmentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// AttachmentService stores uploaded blobs and hands back opaque references. Questions and answers
// only ever carry the reference string.
type AttachmentService struct {
	store  blobStore
	signer downloadSigner
	cfg    AttachmentConfig
	logger *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(store blobStore, signer downloadSigner, cfg AttachmentConfig, logger *zap.Logger) *AttachmentService {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{store: store, signer: signer, cfg: cfg, logger: logger}
}

// Upload persists r and returns its reference.
func (s *AttachmentService) Upload(ctx context.Context, actor models.Actor, filename string, r io.Reader) (*dto.AttachmentResponse, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}

	ref := fmt.Sprintf("att_%s_%s", strings.ReplaceAll(uuid.NewString(), "-", ""), sanitizeFilename(filename))
	size, err := s.store.SaveStream(ref, r, s.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
		}
		return nil, internalError(err, "failed to store attachment")
	}
	if size == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty file")
	}

	s.logger.Info("attachment stored", zap.String("ref", ref), zap.Int64("size", size), zap.String("actor_id", actor.ID))
	return &dto.AttachmentResponse{Ref: ref, Name: filename, Size: size}, nil
}

// SignedURL returns a time-limited download URL for ref.
func (s *AttachmentService) SignedURL(ctx context.Context, actor models.Actor, ref string) (*dto.SignedURLResponse, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	if !s.store.Exists(ref) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	token, expiresAt, err := s.signer.Generate(ref)
	if err != nil {
		return nil, internalError(err, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &dto.SignedURLResponse{
		URL:       fmt.Sprintf("%s/attachments/download?token=%s", base, url.QueryEscape(token)),
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// Download validates token and opens the referenced file. The caller closes File.
func (s *AttachmentService) Download(ctx context.Context, token string) (*AttachmentDownload, error) {
	ref, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	file, err := s.store.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return nil, internalError(err, "failed to open attachment")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, internalError(err, "failed to read attachment metadata")
	}

	mimeType := "application/octet-stream"
	if head, err := bufio.NewReader(file).Peek(512); err == nil || errors.Is(err, io.EOF) {
		mimeType = http.DetectContentType(head)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close() //nolint:errcheck
		return nil, internalError(err, "failed to rewind attachment")
	}

	return &AttachmentDownload{
		File:      file,
		Filename:  originalName(ref),
		MimeType:  mimeType,
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func sanitizeFilename(raw string) string {
	base := filepath.Base(strings.TrimSpace(raw))
	if base == "." || base == "/" || base == "" {
		return "file.bin"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	result := strings.TrimLeft(b.String(), ".")
	if result == "" {
		result = "file.bin"
	}
	if len(result) > 100 {
		result = result[len(result)-100:]
	}
	return result
}

// originalName strips the att_<id>_ prefix from a reference.
func originalName(ref string) string {
	parts := strings.SplitN(ref, "_", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return ref
}
