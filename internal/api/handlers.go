package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/url-frontier/internal/frontier"
	"github.com/JakeFAU/url-frontier/internal/ingest"
	"github.com/JakeFAU/url-frontier/internal/metrics"
)

type submitResponse struct {
	Status    string `json:"status"`
	URI       string `json:"url,omitempty"`
	BatchID   string `json:"batch_id,omitempty"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
}

type leaseRequest struct {
	UserID string `json:"user_id"`
}

type scoresRequest struct {
	URLs []string `json:"urls"`
}

type scoresResponse struct {
	Scores map[string]float64 `json:"scores"`
}

func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	var batch ingest.Batch
	if !s.decode(w, r, &batch) {
		return
	}
	res, err := s.ingester.Ingest(r.Context(), batch)
	if err != nil {
		s.writeFailure(w, r, "ingest batch", err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Status:    "ok",
		URI:       res.URI,
		BatchID:   res.BatchID,
		Requested: res.Merge.Requested,
		Applied:   res.Merge.Applied(),
	})
}

func (s *Server) leaseBatch(w http.ResponseWriter, r *http.Request) {
	var req leaseRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	userIDHash := s.hasher.HashUserID(req.UserID)
	if s.limiter != nil && !s.limiter.Allow(userIDHash) {
		metrics.ObserveLeaseRateLimited()
		writeError(w, http.StatusTooManyRequests, "too many lease requests")
		return
	}
	urls, err := s.store.GetNewBatchForUser(r.Context(), userIDHash)
	if err != nil {
		s.writeFailure(w, r, "lease batch", err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, urls)
}

func (s *Server) urlScores(w http.ResponseWriter, r *http.Request) {
	var req scoresRequest
	if !s.decode(w, r, &req) {
		return
	}
	scores, err := s.store.GetURLScores(r.Context(), req.URLs)
	if err != nil {
		s.writeFailure(w, r, "lookup scores", err)
		return
	}
	writeJSON(w, http.StatusOK, scoresResponse{Scores: scores})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	rec, err := s.store.GetRecord(r.Context(), target)
	if err != nil {
		s.writeFailure(w, r, "get record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeFailure(w, r, "load stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ingest.ErrInvalidBatch), frontier.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, frontier.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(op+" failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
