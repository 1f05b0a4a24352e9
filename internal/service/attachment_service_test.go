package service

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kb-api/internal/models"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
	"github.com/noah-isme/kb-api/pkg/storage"
)

func newAttachmentFixture(t *testing.T, maxSize int64) *AttachmentService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewAttachmentService(store, storage.NewSignedURLSigner("secret", time.Minute), AttachmentConfig{MaxFileSize: maxSize, APIPrefix: "/api/v1/"}, nil)
}

func TestAttachmentUploadAndDownload(t *testing.T) {
	svc := newAttachmentFixture(t, 1024)
	ctx := context.Background()

	uploaded, err := svc.Upload(ctx, supervisor, "../jam log.txt", strings.NewReader("feeder jammed at tray 2"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uploaded.Ref, "att_"))
	assert.True(t, strings.HasSuffix(uploaded.Ref, "_jam_log.txt"))
	assert.NotContains(t, uploaded.Ref, "/")
	assert.Equal(t, int64(23), uploaded.Size)

	signed, err := svc.SignedURL(ctx, user1, uploaded.Ref)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed.URL, "/api/v1/attachments/download?token="))

	parsed, err := url.Parse(signed.URL)
	require.NoError(t, err)
	download, err := svc.Download(ctx, parsed.Query().Get("token"))
	require.NoError(t, err)
	defer download.File.Close() //nolint:errcheck

	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "feeder jammed at tray 2", string(body))
	assert.Equal(t, "jam_log.txt", download.Filename)
	assert.Contains(t, download.MimeType, "text/plain")
	assert.Equal(t, int64(23), download.SizeBytes)
}

func TestAttachmentUploadLimits(t *testing.T) {
	svc := newAttachmentFixture(t, 4)
	ctx := context.Background()

	_, err := svc.Upload(ctx, admin, "big.bin", strings.NewReader("0123456789"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Upload(ctx, admin, "empty.txt", strings.NewReader(""))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Upload(ctx, models.Actor{}, "a.txt", strings.NewReader("a"))
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAttachmentSignedURLAndDownloadErrors(t *testing.T) {
	svc := newAttachmentFixture(t, 1024)
	ctx := context.Background()

	_, err := svc.SignedURL(ctx, admin, "att_missing_file.txt")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Download(ctx, "not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report_1_.pdf", sanitizeFilename("report(1).pdf"))
	assert.Equal(t, "file.bin", sanitizeFilename("   "))
	assert.Equal(t, "passwd", sanitizeFilename("/etc/passwd"))
	assert.Equal(t, "file.bin", sanitizeFilename("..."))
}
