package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/christlifeministries/portal/internal/drafts"
	"github.com/christlifeministries/portal/internal/forms"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type formTypeURI struct {
	FormType string `uri:"type" validate:"required,form_type"`
}

type wizardRequest struct {
	CurrentStep int          `json:"current_step" validate:"gte=1"`
	FormData    forms.Values `json:"form_data"`
}

type wizardResponse struct {
	State     forms.State `json:"state"`
	StepCount int         `json:"step_count"`
	Saved     bool        `json:"saved"`
}

func (h *httpHandler) formType(c *gin.Context) (forms.FormType, bool) {
	var uri formTypeURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.respondBadRequest(c)
		return "", false
	}
	if err := h.validator.Struct(uri); err != nil {
		h.respondError(c, forms.ErrUnknownFormType)
		return "", false
	}
	formType, err := forms.ParseFormType(uri.FormType)
	if err != nil {
		h.respondError(c, err)
		return "", false
	}
	return formType, true
}

func (h *httpHandler) bindWizard(c *gin.Context) (wizardRequest, bool) {
	var request wizardRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBadRequest(c)
		return wizardRequest{}, false
	}
	if err := h.validator.Struct(request); err != nil {
		h.respondError(c, err)
		return wizardRequest{}, false
	}
	if request.FormData == nil {
		request.FormData = forms.Values{}
	}
	return request, true
}

// handleLoadDraft resumes a saved wizard or starts a fresh one at step 1.
func (h *httpHandler) handleLoadDraft(c *gin.Context) {
	formType, ok := h.formType(c)
	if !ok {
		return
	}
	state, err := h.drafts.Load(c.Request.Context(), currentSession(c).UserID(), formType)
	saved := true
	if errors.Is(err, drafts.ErrDraftNotFound) {
		state, saved, err = forms.State{FormType: formType, CurrentStep: 1}, false, nil
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	machine, err := forms.Restore(state)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wizardResponse{
		State:     machine.Snapshot(),
		StepCount: machine.Definition().StepCount(),
		Saved:     saved,
	})
}

func (h *httpHandler) handleSaveDraft(c *gin.Context) {
	formType, ok := h.formType(c)
	if !ok {
		return
	}
	request, ok := h.bindWizard(c)
	if !ok {
		return
	}
	machine, err := forms.Restore(forms.State{FormType: formType, CurrentStep: request.CurrentStep, Values: request.FormData})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.drafts.Save(c.Request.Context(), currentSession(c).UserID(), machine.Snapshot()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wizardResponse{State: machine.Snapshot(), StepCount: machine.Definition().StepCount(), Saved: true})
}

func (h *httpHandler) handleValidateStep(c *gin.Context) {
	formType, ok := h.formType(c)
	if !ok {
		return
	}
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		h.respondError(c, forms.ErrInvalidStep)
		return
	}
	var request wizardRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBadRequest(c)
		return
	}
	definition, err := forms.Lookup(formType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := definition.ValidateStep(step, request.FormData); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "step": step})
}

// handleNextStep validates the current step, advances and autosaves. A
// failed autosave does not fail the transition.
func (h *httpHandler) handleNextStep(c *gin.Context) {
	h.transition(c, func(machine *forms.Machine, values forms.Values) error {
		return machine.Next(values)
	})
}

func (h *httpHandler) handlePreviousStep(c *gin.Context) {
	h.transition(c, func(machine *forms.Machine, values forms.Values) error {
		machine.Update(values)
		return machine.Previous()
	})
}

func (h *httpHandler) transition(c *gin.Context, move func(*forms.Machine, forms.Values) error) {
	formType, ok := h.formType(c)
	if !ok {
		return
	}
	request, ok := h.bindWizard(c)
	if !ok {
		return
	}
	machine, err := forms.Restore(forms.State{FormType: formType, CurrentStep: request.CurrentStep})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := move(machine, request.FormData); err != nil {
		h.respondError(c, err)
		return
	}
	state := machine.Snapshot()
	saved := true
	userID := currentSession(c).UserID()
	if err := h.drafts.Save(c.Request.Context(), userID, state); err != nil {
		saved = false
		h.logger.Warn("draft autosave failed",
			zap.String("user_id", userID),
			zap.String("form_type", string(formType)),
			zap.Error(err))
	}
	c.JSON(http.StatusOK, wizardResponse{State: state, StepCount: machine.Definition().StepCount(), Saved: saved})
}
