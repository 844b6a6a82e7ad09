package server

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/christlifeministries/portal/internal/applications"
	"github.com/christlifeministries/portal/internal/forms"
	"github.com/christlifeministries/portal/internal/storage"
	"github.com/christlifeministries/portal/internal/uploads"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var uploadDestinations = map[string]bool{
	uploads.DestinationIDDocuments:   true,
	uploads.DestinationPaymentProofs: true,
}

// handleSubmitApplication accepts the final wizard step as multipart form
// data: form_type, current_step, form_data (JSON) and the optional
// id_document and payment_proof files.
func (h *httpHandler) handleSubmitApplication(c *gin.Context) {
	formType, err := forms.ParseFormType(c.PostForm("form_type"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	step, err := strconv.Atoi(strings.TrimSpace(c.PostForm("current_step")))
	if err != nil {
		h.respondError(c, forms.ErrInvalidStep)
		return
	}
	values := forms.Values{}
	if raw := strings.TrimSpace(c.PostForm("form_data")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			h.respondBadRequest(c)
			return
		}
	}

	current := currentSession(c)
	submission := applications.Submission{
		User:  *current.UploadUser(),
		State: forms.State{FormType: formType, CurrentStep: step, Values: values},
	}
	idDocument, closeID, err := h.formFile(c, "id_document")
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closeID()
	submission.IDDocument = idDocument

	paymentProof, closeProof, err := h.formFile(c, "payment_proof")
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closeProof()
	submission.PaymentProof = paymentProof

	result, err := h.submitter.Submit(c.Request.Context(), submission)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// formFile opens an optional multipart file. A declared size over the limit
// is rejected before the body is read.
func (h *httpHandler) formFile(c *gin.Context, field string) (*uploads.Request, func(), error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, uploads.ErrMissingFile
	}
	if header.Size > h.maxUpload {
		return nil, func() {}, uploads.ErrFileTooLarge
	}
	file, err := header.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &uploads.Request{
		File:        file,
		Size:        header.Size,
		Filename:    header.Filename,
		ContentType: contentType(header),
	}, func() { _ = file.Close() }, nil
}

func contentType(header *multipart.FileHeader) string {
	if value := header.Header.Get("Content-Type"); value != "" {
		return value
	}
	if value := mime.TypeByExtension(strings.ToLower(path.Ext(header.Filename))); value != "" {
		return value
	}
	return "application/octet-stream"
}

func (h *httpHandler) handleListOwnApplications(c *gin.Context) {
	list, err := h.reviewer.ListForUser(c.Request.Context(), currentSession(c).UserID())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": list})
}

func (h *httpHandler) handleUpload(c *gin.Context) {
	destination := strings.TrimSpace(c.DefaultPostForm("destination", uploads.DestinationIDDocuments))
	if !uploadDestinations[destination] {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_destination"})
		return
	}
	request, closeFile, err := h.formFile(c, "file")
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closeFile()
	if request == nil {
		h.respondError(c, uploads.ErrMissingFile)
		return
	}
	request.Destination = destination
	request.User = currentSession(c).UploadUser()
	result, err := h.uploader.Upload(c.Request.Context(), *request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// handleServeFile streams a stored object. Keys are laid out as
// <destination>/<user_id>/...; members may read only their own.
func (h *httpHandler) handleServeFile(c *gin.Context) {
	key, err := storage.CleanKey(strings.TrimPrefix(c.Param("key"), "/"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	current := currentSession(c)
	segments := strings.Split(key, "/")
	if !current.IsAdmin() && (len(segments) < 3 || segments[1] != current.UserID()) {
		h.respondError(c, storage.ErrObjectNotFound)
		return
	}
	reader, err := h.storage.Get(c.Request.Context(), key)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			h.logger.Debug("file close failed", zap.String("key", key), zap.Error(closeErr))
		}
	}()
	kind := mime.TypeByExtension(strings.ToLower(path.Ext(key)))
	if kind == "" {
		kind = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, kind, reader, map[string]string{
		"Content-Disposition": `inline; filename="` + path.Base(key) + `"`,
	})
}
