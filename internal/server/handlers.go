package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pdfqa/internal/domain"
)

type askRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type askResponse struct {
	Query    string         `json:"query"`
	Answer   string         `json:"answer"`
	Fallback bool           `json:"fallback,omitempty"`
	Matches  []domain.Match `json:"matches"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.config.MaxUploadMB) << 20
	if r.ContentLength > limit {
		s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := s.jobs.start(header.Filename, cancel)
	s.logger.Info("ingestion job started", zap.String("job_id", job.ID), zap.String("source", header.Filename), zap.Int("bytes", len(content)))
	go s.runJob(ctx, cancel, job.ID, header.Filename, content)
	s.respondJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "status": string(job.Status)})
}

func (s *Server) runJob(ctx context.Context, cancel context.CancelFunc, id, name string, content []byte) {
	defer cancel()
	report, err := s.pipeline.IngestBytes(ctx, name, content, func(p domain.Progress) {
		s.jobs.progress(id, p)
	})
	switch {
	case errors.Is(err, context.Canceled):
		s.logger.Info("ingestion job cancelled", zap.String("job_id", id))
		s.jobs.finish(id, JobCancelled, report, err)
	case err != nil:
		s.logger.Error("ingestion job failed", zap.String("job_id", id), zap.Error(err))
		s.jobs.finish(id, JobFailed, report, err)
	default:
		s.logger.Info("ingestion job done", zap.String("job_id", id), zap.String("message", report.Message()))
		s.jobs.finish(id, JobDone, report, nil)
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	found, running := s.jobs.cancel(id)
	switch {
	case !found:
		s.respondError(w, http.StatusNotFound, "job not found")
	case !running:
		s.respondError(w, http.StatusConflict, "job already finished")
	default:
		s.logger.Debug("cancel job request", zap.String("job_id", id))
		s.respondJSON(w, http.StatusAccepted, map[string]string{"job_id": id, "status": "cancelling"})
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}
	s.logger.Debug("ask request", zap.String("query", req.Query), zap.Int("top_k", topK))
	answer, err := s.pipeline.Answer(r.Context(), req.Query, topK)
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrNoMatches):
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, domain.ErrQueryEmbedding):
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, askResponse{
		Query:    answer.Query,
		Answer:   answer.Text,
		Fallback: answer.Fallback,
		Matches:  answer.Matches,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
