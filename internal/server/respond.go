package server

import (
	"errors"
	"net/http"

	"github.com/christlifeministries/portal/internal/apperrors"
	"github.com/christlifeministries/portal/internal/applications"
	"github.com/christlifeministries/portal/internal/broadcast"
	"github.com/christlifeministries/portal/internal/certificates"
	"github.com/christlifeministries/portal/internal/donations"
	"github.com/christlifeministries/portal/internal/drafts"
	"github.com/christlifeministries/portal/internal/events"
	"github.com/christlifeministries/portal/internal/forms"
	"github.com/christlifeministries/portal/internal/notifications"
	"github.com/christlifeministries/portal/internal/payments"
	"github.com/christlifeministries/portal/internal/storage"
	"github.com/christlifeministries/portal/internal/uploads"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{drafts.ErrDraftNotFound, http.StatusNotFound, "draft_not_found"},
	{applications.ErrApplicationNotFound, http.StatusNotFound, "application_not_found"},
	{notifications.ErrNotificationNotFound, http.StatusNotFound, "notification_not_found"},
	{certificates.ErrCertificateNotFound, http.StatusNotFound, "certificate_not_found"},
	{events.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
	{events.ErrRegistrationNotFound, http.StatusNotFound, "registration_not_found"},
	{payments.ErrPaymentNotFound, http.StatusNotFound, "payment_not_found"},
	{storage.ErrObjectNotFound, http.StatusNotFound, "file_not_found"},

	{events.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
	{events.ErrEventFull, http.StatusConflict, "event_full"},
	{certificates.ErrDuplicateNumber, http.StatusConflict, "duplicate_certificate_number"},
	{certificates.ErrCertificateRevoked, http.StatusConflict, "certificate_revoked"},
	{forms.ErrAlreadySubmitted, http.StatusConflict, "already_submitted"},

	{uploads.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},

	{uploads.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{donations.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{events.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},

	{forms.ErrUnknownFormType, http.StatusBadRequest, "unknown_form_type"},
	{forms.ErrInvalidStep, http.StatusBadRequest, "invalid_step"},
	{forms.ErrNotFinalStep, http.StatusBadRequest, "not_final_step"},
	{forms.ErrFinalStep, http.StatusBadRequest, "final_step"},
	{applications.ErrIDDocumentRequired, http.StatusBadRequest, "id_document_required"},
	{applications.ErrUnknownCourse, http.StatusBadRequest, "unknown_course"},
	{applications.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{donations.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{broadcast.ErrInvalidBroadcast, http.StatusBadRequest, "invalid_broadcast"},
	{broadcast.ErrUnknownMode, http.StatusBadRequest, "unknown_mode"},
	{broadcast.ErrNoRecipients, http.StatusBadRequest, "no_recipients"},
	{certificates.ErrInvalidRequest, http.StatusBadRequest, "invalid_certificate"},
	{payments.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{uploads.ErrMissingFile, http.StatusBadRequest, "missing_file"},
	{storage.ErrInvalidKey, http.StatusBadRequest, "invalid_key"},
}

// respondError writes {"error": code, "message": text}. Validation failures
// carry the failing fields and use 422.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var formErr *forms.ValidationError
	if errors.As(err, &formErr) {
		fields := make(map[string]string, len(formErr.Fields))
		for name, fieldErr := range formErr.Fields {
			fields[name] = fieldErr.Message
		}
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"message": apperrors.FriendlyMessage(err),
			"step":    formErr.Step,
			"fields":  fields,
		})
		return
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"message": apperrors.FriendlyMessage(err),
			"fields":  reqErr.Fields,
		})
		return
	}
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			c.AbortWithStatusJSON(mapping.status, gin.H{
				"error":   mapping.code,
				"message": apperrors.FriendlyMessage(err),
			})
			return
		}
	}

	code := apperrors.Code(err)
	if code == "" {
		code = "internal_error"
	}
	message := apperrors.FriendlyMessage(err)
	h.logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.String("code", code),
		zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": code, "message": message})
}

func (h *httpHandler) respondBadRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}
