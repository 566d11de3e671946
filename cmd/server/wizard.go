package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Simplici0/homebuild/internal/pricing"
	"github.com/Simplici0/homebuild/internal/submission"
	"github.com/Simplici0/homebuild/internal/wizard"
)

// wizardView is the estimator state as returned to the page.
type wizardView struct {
	wizard.State
	StepName      string            `json:"stepName"`
	ProjectLabel  string            `json:"projectLabel,omitempty"`
	Estimate      *pricing.Bands    `json:"estimate,omitempty"`
	ContactErrors map[string]string `json:"contactErrors,omitempty"`
	AddressErrors map[string]string `json:"addressErrors,omitempty"`
	CanSubmit     bool              `json:"canSubmit"`
}

type wizardErrorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
	Wizard wizardView          `json:"wizard"`
}

func viewOf(c *wizard.Controller) wizardView {
	v := wizardView{
		State:     c.State(),
		StepName:  c.Step().String(),
		Estimate:  c.Estimate(),
		CanSubmit: c.CanSubmit(),
	}
	if p := c.Project(); p != "" {
		v.ProjectLabel = p.Label()
	}
	if c.Step() == wizard.StepEnterContact {
		v.ContactErrors = c.ContactErrors()
		v.AddressErrors = c.AddressErrors()
	}
	return v
}

// loadWizard restores the visitor's flow from the session cookie. A missing,
// tampered or stale cookie starts a fresh flow.
func (s *server) loadWizard(r *http.Request) *wizard.Controller {
	cookie, err := r.Cookie(wizardCookieName)
	if err != nil || cookie.Value == "" {
		return wizard.New()
	}

	st, ok := s.sessions.decode(cookie.Value)
	if !ok {
		s.log.Debug("discarding wizard cookie with bad signature")
		return wizard.New()
	}
	c, err := wizard.Restore(st)
	if err != nil {
		s.log.Debug("discarding unusable wizard state", zap.Error(err))
		return wizard.New()
	}
	return c
}

// finishWizard stores c in the cookie and writes the response for an
// operation that ended with err.
func (s *server) finishWizard(w http.ResponseWriter, r *http.Request, c *wizard.Controller, err error) {
	if cerr := s.sessions.setCookie(w, c.State()); cerr != nil {
		s.log.Error("store wizard state", zap.Error(cerr))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	if err == nil {
		s.writeJSON(w, http.StatusOK, viewOf(c))
		return
	}

	resp := wizardErrorResponse{Error: err.Error(), Wizard: viewOf(c)}
	var (
		fe   pricing.FieldErrors
		verr *submission.ValidationError
		cerr *submission.ConfigError
		uerr *submission.UpstreamError
	)
	switch {
	case errors.Is(err, wizard.ErrInvalidTransition), errors.Is(err, wizard.ErrNoProject):
		s.writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, submission.ErrInProgress):
		resp.Error = c.State().Error
		s.writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, wizard.ErrIncomplete):
		resp.Fields = map[string][]string{}
		for k, msg := range c.ContactErrors() {
			resp.Fields["contact."+k] = []string{msg}
		}
		for k, msg := range c.AddressErrors() {
			resp.Fields["address."+k] = []string{msg}
		}
		s.writeJSON(w, http.StatusBadRequest, resp)
	case errors.As(err, &fe):
		resp.Error = "Please correct the project details"
		resp.Fields = detailsErrorResponse(fe).Fields
		s.writeJSON(w, http.StatusBadRequest, resp)
	case errors.As(err, &verr):
		resp.Error = c.State().Error
		resp.Fields = verr.Fields
		s.writeJSON(w, http.StatusBadRequest, resp)
	case errors.As(err, &cerr), errors.As(err, &uerr):
		resp.Error = c.State().Error
		s.writeJSON(w, http.StatusInternalServerError, resp)
	default:
		s.log.Error("wizard operation failed", zap.Error(err))
		resp.Error = "internal error"
		s.writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func (s *server) handleWizardGet(w http.ResponseWriter, r *http.Request) {
	s.finishWizard(w, r, s.loadWizard(r), nil)
}

func (s *server) handleWizardProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Project string `json:"project"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	c := s.loadWizard(r)

	project, err := pricing.ParseProject(req.Project)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, wizardErrorResponse{
			Error:  "Unknown project",
			Fields: map[string][]string{"project": {err.Error()}},
			Wizard: viewOf(c),
		})
		return
	}
	s.finishWizard(w, r, c, c.SelectProject(project))
}

func (s *server) handleWizardDetails(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Details map[string]any `json:"details"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	// Nulls clear a field here rather than being skipped.
	values := submission.DetailStrings(req.Details)
	for k, v := range req.Details {
		if v == nil {
			values[k] = ""
		}
	}

	c := s.loadWizard(r)
	s.finishWizard(w, r, c, c.SetDetails(values))
}

func (s *server) handleWizardContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contact *wizard.ContactInfo `json:"contact"`
		Address *wizard.AddressInfo `json:"address"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	c := s.loadWizard(r)
	if req.Contact != nil {
		c.SetContact(*req.Contact)
	}
	if req.Address != nil {
		c.SetAddress(*req.Address)
	}
	s.finishWizard(w, r, c, nil)
}

func (s *server) handleWizardNext(w http.ResponseWriter, r *http.Request) {
	c := s.loadWizard(r)
	s.finishWizard(w, r, c, c.Next())
}

func (s *server) handleWizardBack(w http.ResponseWriter, r *http.Request) {
	c := s.loadWizard(r)
	s.finishWizard(w, r, c, c.Back())
}

func (s *server) handleWizardSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Meta submission.Meta `json:"meta"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Meta.URL == "" {
		req.Meta.URL = r.Referer()
	}

	c := s.loadWizard(r)
	_, err := c.Submit(r.Context(), s.gateway, req.Meta)
	s.finishWizard(w, r, c, err)
}

func (s *server) handleWizardReset(w http.ResponseWriter, r *http.Request) {
	c := s.loadWizard(r)
	c.StartOver()
	s.finishWizard(w, r, c, nil)
}
