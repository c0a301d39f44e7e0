package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"photo-review-backend/internal/ledger"
	"photo-review-backend/internal/models"
	"photo-review-backend/internal/services"
)

var photoFields = []string{"photo", "image", "file"}

type UploadHandler struct {
	uploads  *services.UploadService
	maxBytes int64
}

func NewUploadHandler(uploads *services.UploadService, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		uploads:  uploads,
		maxBytes: maxBytes,
	}
}

// Upload godoc
// @Summary     Submit a photo for review
// @Description Stores the photo, opens a pending request and asks reviewers for a verdict.
// @Description Poll /status/{id} for the result.
// @Tags        upload
// @Accept      multipart/form-data
// @Produce     json
// @Param       photo    formData file   true  "Photo (field may also be named image or file)"
// @Param       score    formData string false "Client-side score"
// @Param       percent  formData string false "Client-side percentage"
// @Param       feedback formData string false "Client-side feedback"
// @Success     200 {object} models.UploadResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Failure     415 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Failure     502 {object} models.NotifyFailedResponse
// @Router      /upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.uploads == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "upload service not available"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error:   "photo too large",
				Message: fmt.Sprintf("limit is %d bytes", h.maxBytes),
			})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse multipart form",
			Message: err.Error(),
		})
		return
	}

	file := findPhoto(c.Request.MultipartForm)
	if file == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no photo uploaded",
			Message: fmt.Sprintf("please provide a file in one of these fields: %v", photoFields),
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to open photo", Message: err.Error()})
		return
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read photo", Message: err.Error()})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "photo is empty"})
		return
	}

	contentType := photoContentType(file.Header.Get("Content-Type"), data)
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusUnsupportedMediaType, models.ErrorResponse{
			Error:   "unsupported media type",
			Message: "expected an image, got " + contentType,
		})
		return
	}

	sub, err := h.uploads.Submit(c.Request.Context(), services.Photo{
		Filename:    file.Filename,
		ContentType: contentType,
		Data:        data,
		Metadata: ledger.Metadata{
			Score:    strings.TrimSpace(c.PostForm("score")),
			Percent:  strings.TrimSpace(c.PostForm("percent")),
			Feedback: strings.TrimSpace(c.PostForm("feedback")),
		},
	})
	if err != nil {
		if errors.Is(err, services.ErrNotifyFailed) {
			c.JSON(http.StatusBadGateway, models.NotifyFailedResponse{
				Error: "failed to notify reviewers",
				ID:    sub.ID,
			})
			return
		}
		log.Error().Err(err).Str("filename", file.Filename).Msg("upload failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to save photo",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		ID:       sub.ID,
		Status:   string(sub.Status),
		ImageURL: sub.ImageURL,
	})
}

func findPhoto(form *multipart.Form) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	for _, field := range photoFields {
		if files := form.File[field]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

// photoContentType trusts the part's declared type unless it is missing or
// generic, in which case the bytes decide.
func photoContentType(declared string, data []byte) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = ct[:i]
		}
	}
	return ct
}
