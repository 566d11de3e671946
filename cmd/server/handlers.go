package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Simplici0/homebuild/internal/pricing"
	"github.com/Simplici0/homebuild/internal/submission"
)

type successResponse struct {
	Success  bool `json:"success"`
	Replayed bool `json:"replayed,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleContact(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	receipt, err := s.gateway.SubmitContactJSON(r.Context(), r.Header.Get(idempotencyKeyHeader), body)
	if err != nil {
		s.writeSubmissionError(w, r, err)
		return
	}
	w.Header().Set(idempotencyKeyHeader, receipt.Key)
	s.writeJSON(w, http.StatusOK, successResponse{Success: true, Replayed: receipt.Replayed})
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	receipt, err := s.gateway.SubmitEstimateJSON(r.Context(), r.Header.Get(idempotencyKeyHeader), body)
	if err != nil {
		s.writeSubmissionError(w, r, err)
		return
	}
	w.Header().Set(idempotencyKeyHeader, receipt.Key)
	s.writeJSON(w, http.StatusOK, successResponse{Success: true, Replayed: receipt.Replayed})
}

type previewRequest struct {
	Project string         `json:"project"`
	Details map[string]any `json:"details"`
}

type previewResponse struct {
	Project  pricing.Project `json:"project"`
	Label    string          `json:"label"`
	Estimate *pricing.Bands  `json:"estimate"`
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	project, err := pricing.ParseProject(req.Project)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "Unknown project",
			Fields: map[string][]string{"project": {err.Error()}},
		})
		return
	}

	details, err := pricing.ParseDetails(project, submission.DetailStrings(req.Details))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, detailsErrorResponse(err))
		return
	}

	s.writeJSON(w, http.StatusOK, previewResponse{
		Project:  project,
		Label:    project.Label(),
		Estimate: pricing.Estimate(details),
	})
}

func (s *server) handleReviews(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	s.writeJSON(w, http.StatusOK, s.reviews.Summary(r.Context()))
}

func detailsErrorResponse(err error) errorResponse {
	resp := errorResponse{Error: "Please correct the project details"}
	var fe pricing.FieldErrors
	if errors.As(err, &fe) {
		resp.Fields = make(map[string][]string, len(fe))
		for k, msg := range fe {
			resp.Fields["details."+k] = []string{msg}
		}
	}
	return resp
}
