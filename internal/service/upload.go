package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/appdevjohn/Social-Network-Backend/internal/attachments"
	"github.com/appdevjohn/Social-Network-Backend/internal/auth"
	"github.com/appdevjohn/Social-Network-Backend/internal/middleware"
	"github.com/appdevjohn/Social-Network-Backend/pkg/api"
)

// UploadFormField is the multipart field carrying the image.
const UploadFormField = "image"

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// AttachmentRecorder binds an uploaded ref to the account that uploaded it.
type AttachmentRecorder interface {
	RecordAttachment(ctx context.Context, ref, ownerID string) error
}

// UploadHandler accepts image uploads and serves stored attachments back.
type UploadHandler struct {
	store     attachments.Store
	records   AttachmentRecorder
	jwt       *auth.JWTManager
	maxBytes  int64
	urlPrefix string
	logger    *slog.Logger
}

// NewUploadHandler creates an upload handler. Every stored file is recorded
// in records under its uploader. Uploads larger than maxBytes are rejected.
func NewUploadHandler(store attachments.Store, records AttachmentRecorder, jwt *auth.JWTManager, maxBytes int64, urlPrefix string, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{
		store:     store,
		records:   records,
		jwt:       jwt,
		maxBytes:  maxBytes,
		urlPrefix: urlPrefix,
		logger:    logger,
	}
}

// Upload stores a PNG or JPEG from the multipart "image" field and returns
// its ref. The caller must present a bearer token, and only the caller can
// later attach the ref to a message.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	claims, err := h.jwt.Validate(token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, _, err := r.FormFile(UploadFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "missing image field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}
	head = head[:n]

	ext, ok := imageExtensions[http.DetectContentType(head)]
	if !ok {
		http.Error(w, "only png and jpeg images are accepted", http.StatusUnsupportedMediaType)
		return
	}

	ref, err := h.store.Save(r.Context(), ext, io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		h.logger.Error("Attachment upload failed", "user_id", claims.UserID(), "error", err)
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	if err := h.records.RecordAttachment(r.Context(), ref, claims.UserID()); err != nil {
		h.logger.Error("Attachment record failed", "user_id", claims.UserID(), "ref", ref, "error", err)
		if err := h.store.Delete(context.WithoutCancel(r.Context()), ref); err != nil {
			h.logger.Warn("Unrecorded attachment left behind", "ref", ref, "error", err)
		}
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Attachment uploaded", "user_id", claims.UserID(), "ref", ref)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(api.UploadResponse{Ref: ref, URL: attachments.URL(h.urlPrefix, ref)})
}

// Serve writes the attachment named by the {ref} path value.
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	rc, err := h.store.Open(r.Context(), ref)
	if err != nil {
		h.logger.Debug("Attachment not served", "ref", ref, "error", err)
		http.NotFound(w, r)
		return
	}
	defer rc.Close()

	switch path.Ext(ref) {
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".jpg":
		w.Header().Set("Content-Type", "image/jpeg")
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Attachment write interrupted", "ref", ref, "error", err)
	}
}
