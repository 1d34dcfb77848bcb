package handlers

import (
	"net/http"

	"relay-service/internal/adapters/storage"
	"relay-service/internal/api/middleware"
	"relay-service/pkg/apperror"
	"relay-service/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultMaxUploadSize = 10 << 20

type MediaHandler struct {
	store   storage.MediaStore
	maxSize int64
}

func NewMediaHandler(store storage.MediaStore, maxSize int64) *MediaHandler {
	if maxSize <= 0 {
		maxSize = defaultMaxUploadSize
	}
	return &MediaHandler{store: store, maxSize: maxSize}
}

type UploadResponse struct {
	URL string `json:"url"`
}

// Upload godoc
// @Summary Upload a message attachment
// @Description Stores a file and returns the URL to send in the medias list of a private message
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Attachment"
// @Success 201 {object} UploadResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 500 {object} response.ErrorBody
// @Router /media [post]
func (h *MediaHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, apperror.Validation("file is required"))
		return
	}
	if file.Size <= 0 || file.Size > h.maxSize {
		response.Error(c, apperror.Validation("file size must be between 1 and %d bytes", h.maxSize))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, apperror.Validation("unreadable file"))
		return
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := h.store.Upload(c.Request.Context(), middleware.UserID(c), file.Filename, contentType, src, file.Size)
	if err != nil {
		response.Error(c, apperror.Wrap(apperror.KindInternal, "upload failed", err))
		return
	}

	c.JSON(http.StatusCreated, UploadResponse{URL: url})
}
