package server

import (
	"net/http"
	"strings"

	"github.com/christlifeministries/portal/internal/events"
	"github.com/gin-gonic/gin"
)

type registrationRequest struct {
	Name  string         `json:"name" validate:"max=320"`
	Email string         `json:"email" validate:"omitempty,email"`
	Data  map[string]any `json:"data"`
}

func (h *httpHandler) handleListEvents(c *gin.Context) {
	upcoming, err := h.events.Upcoming(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": upcoming})
}

func (h *httpHandler) handleGetEvent(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registrationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			h.respondBadRequest(c)
			return
		}
	}
	if err := h.validator.Struct(request); err != nil {
		h.respondError(c, err)
		return
	}
	current := currentSession(c)
	name := strings.TrimSpace(request.Name)
	if name == "" {
		name = current.Profile.FullName
	}
	email := strings.TrimSpace(request.Email)
	if email == "" {
		email = current.Profile.Email
	}
	registration, err := h.events.Register(c.Request.Context(), events.RegisterRequest{
		UserID:  current.UserID(),
		Name:    name,
		Email:   email,
		EventID: c.Param("id"),
		Data:    request.Data,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registration)
}

func (h *httpHandler) handleListRegistrations(c *gin.Context) {
	list, err := h.events.ListForUser(c.Request.Context(), currentSession(c).UserID())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": list})
}

func (h *httpHandler) handleTicket(c *gin.Context) {
	current := currentSession(c)
	pdf, registration, err := h.events.Ticket(c.Request.Context(), current.UserID(), c.Param("id"), current.IsAdmin())
	if err != nil {
		h.respondError(c, err)
		return
	}
	servePDF(c, "ticket-"+registration.TicketNumber+".pdf", pdf)
}

func servePDF(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", body)
}
