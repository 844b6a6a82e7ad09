package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/christlifeministries/portal/internal/donations"
	"github.com/christlifeministries/portal/internal/payments"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type confirmPaymentRequest struct {
	Reference string `json:"reference"`
	Signature string `json:"signature"`
}

type donationRequest struct {
	Amount      string `json:"amount" validate:"required,positive_decimal"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	Designation string `json:"designation" validate:"max=120"`
	Message     string `json:"message" validate:"max=1000"`
	DonorName   string `json:"donor_name" validate:"max=320"`
	DonorEmail  string `json:"donor_email" validate:"omitempty,email"`
}

// handleGetPayment renders the confirmation page data. A payment that does
// not resolve for the caller sends them back to the dashboard.
func (h *httpHandler) handleGetPayment(c *gin.Context) {
	receipt, err := h.payments.Get(c.Request.Context(), currentSession(c).UserID(), c.Param("id"))
	if errors.Is(err, payments.ErrPaymentNotFound) {
		c.Redirect(http.StatusSeeOther, h.dashboardURL)
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// handleConfirmPayment accepts the provider reference and return signature
// from the JSON body or the query of the return URL. A payment that does not
// resolve for the caller sends them back to the dashboard.
func (h *httpHandler) handleConfirmPayment(c *gin.Context) {
	var request confirmPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			h.respondBadRequest(c)
			return
		}
	}
	providerReturn := payments.ProviderReturn{
		Reference: firstNonEmpty(request.Reference, c.Query("reference")),
		Signature: firstNonEmpty(request.Signature, c.Query("signature")),
	}
	receipt, err := h.payments.Confirm(c.Request.Context(), currentSession(c).UserID(), c.Param("id"), providerReturn)
	if errors.Is(err, payments.ErrPaymentNotFound) {
		c.Redirect(http.StatusSeeOther, h.dashboardURL)
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (h *httpHandler) handleDonate(c *gin.Context) {
	var request donationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBadRequest(c)
		return
	}
	if err := h.validator.Struct(request); err != nil {
		h.respondError(c, err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(request.Amount))
	if err != nil {
		h.respondError(c, donations.ErrInvalidAmount)
		return
	}
	current := currentSession(c)
	donorName := strings.TrimSpace(request.DonorName)
	if donorName == "" {
		donorName = current.Profile.FullName
	}
	donorEmail := strings.TrimSpace(request.DonorEmail)
	if donorEmail == "" {
		donorEmail = current.Profile.Email
	}
	result, err := h.donations.Donate(c.Request.Context(), donations.Request{
		UserID:      current.UserID(),
		DonorName:   donorName,
		DonorEmail:  donorEmail,
		Amount:      amount,
		Currency:    request.Currency,
		Designation: request.Designation,
		Message:     request.Message,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *httpHandler) handleListDonations(c *gin.Context) {
	list, err := h.donations.ListForUser(c.Request.Context(), currentSession(c).UserID())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"donations": list})
}
