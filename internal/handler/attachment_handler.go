package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kb-api/internal/dto"
	"github.com/noah-isme/kb-api/internal/models"
	"github.com/noah-isme/kb-api/internal/service"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
	"github.com/noah-isme/kb-api/pkg/response"
)

type attachmentService interface {
	Upload(ctx context.Context, actor models.Actor, filename string, r io.Reader) (*dto.AttachmentResponse, error)
	SignedURL(ctx context.Context, actor models.Actor, ref string) (*dto.SignedURLResponse, error)
	Download(ctx context.Context, token string) (*service.AttachmentDownload, error)
}

// AttachmentHandler stores blobs and serves signed downloads.
type AttachmentHandler struct {
	service attachmentService
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(svc attachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: svc}
}

// Upload godoc
// @Summary Upload an attachment
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file"))
		return
	}
	defer file.Close() //nolint:errcheck

	uploaded, err := h.service.Upload(c.Request.Context(), actor, header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, uploaded)
}

// SignedURL godoc
// @Summary Signed download URL
// @Tags Attachments
// @Produce json
// @Param ref path string true "Attachment reference"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attachments/{ref}/url [get]
func (h *AttachmentHandler) SignedURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	signed, err := h.service.SignedURL(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signed, nil)
}

// Download godoc
// @Summary Download an attachment
// @Tags Attachments
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /attachments/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	c.Header("Content-Type", download.MimeType)
	c.Header("Content-Length", strconv.FormatInt(download.SizeBytes, 10))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Cache-Control", "private, max-age=0")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, download.File); err != nil {
		_ = c.Error(err)
	}
}
