package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/upload"
	"go.uber.org/zap"
)

type UploadHandler struct {
	Uploads upload.Store
}

func (h *UploadHandler) Register(r chi.Router) {
	r.Post("/upload/image", h.image)
}

func (h *UploadHandler) image(w http.ResponseWriter, r *http.Request) {
	// leave room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, h.Uploads.MaxBytes+64<<10)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, apperr.Validation("file exceeds %d bytes", h.Uploads.MaxBytes))
			return
		}
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, r, apperr.Fields("invalid upload", map[string]string{"file": "is required"}))
			return
		}
		writeError(w, r, apperr.Validation("invalid multipart upload"))
		return
	}
	defer file.Close()

	url, err := h.Uploads.Save(file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loggerFrom(r.Context()).Info("image uploaded",
		zap.String("user_id", currentUser(r).ID),
		zap.String("filename", hdr.Filename),
		zap.String("url", url),
	)
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
