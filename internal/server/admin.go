package server

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/christlifeministries/portal/internal/applications"
	"github.com/christlifeministries/portal/internal/broadcast"
	"github.com/christlifeministries/portal/internal/certificates"
	"github.com/christlifeministries/portal/internal/documents"
	"github.com/christlifeministries/portal/internal/models"
	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
}

type broadcastRequest struct {
	Mode      string   `json:"mode" validate:"required,oneof=all admins specific course event"`
	UserIDs   []string `json:"user_ids" validate:"required_if=Mode specific"`
	CourseID  string   `json:"course_id" validate:"required_if=Mode course"`
	EventID   string   `json:"event_id" validate:"required_if=Mode event"`
	Type      string   `json:"type" validate:"max=64"`
	Title     string   `json:"title" validate:"required,max=320"`
	Message   string   `json:"message" validate:"required"`
	SendEmail bool     `json:"send_email"`
}

type certificateRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	CourseID string `json:"course_id"`
	Number   string `json:"certificate_number" validate:"max=64"`
	Status   string `json:"status" validate:"omitempty,oneof=issued pending revoked"`
}

func (h *httpHandler) bindJSON(c *gin.Context, request interface{}) bool {
	if err := c.ShouldBindJSON(request); err != nil {
		h.respondBadRequest(c)
		return false
	}
	if err := h.validator.Struct(request); err != nil {
		h.respondError(c, err)
		return false
	}
	return true
}

func (h *httpHandler) applicationFilter(c *gin.Context) applications.Filter {
	return applications.Filter{
		Status:      models.ApplicationStatus(strings.TrimSpace(c.Query("status"))),
		ProgramType: models.ProgramType(strings.TrimSpace(c.Query("program_type"))),
		Search:      c.Query("q"),
	}
}

func (h *httpHandler) handleAdminListApplications(c *gin.Context) {
	list, err := h.reviewer.List(c.Request.Context(), h.applicationFilter(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": list, "total": len(list)})
}

func (h *httpHandler) handleAdminGetApplication(c *gin.Context) {
	application, err := h.reviewer.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"application": application,
		"sections":    documents.ApplicationSections(application),
	})
}

func (h *httpHandler) handleAdminApplicationPDF(c *gin.Context) {
	application, err := h.reviewer.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := documents.ApplicationPDF(&buf, application); err != nil {
		h.respondError(c, err)
		return
	}
	servePDF(c, "application-"+application.ID+".pdf", buf.Bytes())
}

func (h *httpHandler) handleAdminChangeStatus(c *gin.Context) {
	var request statusRequest
	if !h.bindJSON(c, &request) {
		return
	}
	application, err := h.reviewer.ChangeStatus(c.Request.Context(), currentSession(c).UserID(), c.Param("id"),
		models.ApplicationStatus(request.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, application)
}

func (h *httpHandler) handleAdminExportCSV(c *gin.Context) {
	list, err := h.reviewer.List(c.Request.Context(), h.applicationFilter(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := applications.ExportCSV(&buf, list); err != nil {
		h.respondError(c, err)
		return
	}
	filename := "applications-" + time.Now().UTC().Format("20060102") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *httpHandler) handleAdminBroadcast(c *gin.Context) {
	var request broadcastRequest
	if !h.bindJSON(c, &request) {
		return
	}
	sent, err := h.broadcasts.Send(c.Request.Context(), broadcast.Request{
		Mode:      broadcast.Mode(request.Mode),
		UserIDs:   request.UserIDs,
		CourseID:  request.CourseID,
		EventID:   request.EventID,
		Type:      request.Type,
		Title:     request.Title,
		Message:   request.Message,
		SendEmail: request.SendEmail,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipients": sent})
}

func (h *httpHandler) handleAdminIssueCertificate(c *gin.Context) {
	var request certificateRequest
	if !h.bindJSON(c, &request) {
		return
	}
	certificate, err := h.certificates.Issue(c.Request.Context(), certificates.IssueRequest{
		UserID:   request.UserID,
		CourseID: request.CourseID,
		Number:   request.Number,
		Status:   models.CertificateStatus(request.Status),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, certificate)
}

func (h *httpHandler) handleAdminPublishCertificate(c *gin.Context) {
	certificate, err := h.certificates.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, certificate)
}

func (h *httpHandler) handleAdminRevokeCertificate(c *gin.Context) {
	certificate, err := h.certificates.Revoke(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, certificate)
}

func (h *httpHandler) handleListCertificates(c *gin.Context) {
	list, err := h.certificates.ListForUser(c.Request.Context(), currentSession(c).UserID())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": list})
}

// handleCertificatePDF renders a certificate for its holder or an admin.
// Revoked and pending certificates are only visible to admins.
func (h *httpHandler) handleCertificatePDF(c *gin.Context) {
	current := currentSession(c)
	pdf, certificate, err := h.certificates.Render(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !current.IsAdmin() && (certificate.UserID != current.UserID() || certificate.Status != models.CertificateIssued) {
		h.respondError(c, certificates.ErrCertificateNotFound)
		return
	}
	servePDF(c, "certificate-"+certificate.CertificateNumber+".pdf", pdf)
}
