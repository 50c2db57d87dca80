// Package handler is the review server: a JSON API over the document
// store for browsing processed papers, reading grading reports, and
// triggering a regrade of a stored answer sheet.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gradepaper/gradepaper/internal/grading"
	"github.com/gradepaper/gradepaper/internal/model"
	"github.com/gradepaper/gradepaper/internal/store"
)

// SheetGrader grades a full answer sheet against its questions.
type SheetGrader interface {
	GradeSheet(ctx context.Context, questions []model.Question, answers []model.Answer, studentInfo map[string]string) model.GradingReport
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	grader SheetGrader
}

// New creates a new Handler.
func New(s *store.Store, g SheetGrader) *Handler {
	return &Handler{store: s, grader: g}
}

// Routes registers all HTTP routes. Everything under /api requires
// authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/reports", h.handleListReports)
		r.Get("/reports/{reportID}", h.handleGetReport)
		r.Get("/documents", h.handleListDocuments)
		r.Get("/documents/{documentID}", h.handleGetDocument)
		r.Post("/sheets/{sheetID}/grade", h.handleGradeSheet)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListReports(w http.ResponseWriter, _ *http.Request) {
	reports, err := h.store.ListReports()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reports == nil {
		reports = []store.ReportRow{}
	}
	respondJSON(w, http.StatusOK, reports)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "reportID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid report ID")
		return
	}
	report, err := h.store.GetReport(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListDocuments(r.URL.Query().Get("kind"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	respondJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "documentID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid document ID")
		return
	}
	doc, err := h.store.GetDocument(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Payload); err != nil {
		slog.Error("write document payload", "error", err)
	}
}

// gradeRequest selects the paper documents to grade a sheet against.
// SolutionPaperID is optional.
type gradeRequest struct {
	QuestionPaperID int64 `json:"question_paper_id"`
	SolutionPaperID int64 `json:"solution_paper_id,omitempty"`
}

func (h *Handler) handleGradeSheet(w http.ResponseWriter, r *http.Request) {
	sheetID, err := strconv.ParseInt(chi.URLParam(r, "sheetID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sheet ID")
		return
	}

	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sheetDoc, err := h.store.GetDocument(sheetID)
	if err != nil || sheetDoc.Kind != model.KindAnswerSheet {
		respondError(w, http.StatusNotFound, "answer sheet not found")
		return
	}
	var sheet model.AnswerSheet
	if err := sheetDoc.Decode(&sheet); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	paperDoc, err := h.store.GetDocument(req.QuestionPaperID)
	if err != nil || paperDoc.Kind != model.KindQuestionPaper {
		respondError(w, http.StatusNotFound, "question paper not found")
		return
	}
	var paper model.QuestionPaper
	if err := paperDoc.Decode(&paper); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	questions := paper.Questions
	if req.SolutionPaperID != 0 {
		solDoc, err := h.store.GetDocument(req.SolutionPaperID)
		if err != nil || solDoc.Kind != model.KindSolutionPaper {
			respondError(w, http.StatusNotFound, "solution paper not found")
			return
		}
		var solutions model.SolutionPaper
		if err := solDoc.Decode(&solutions); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		questions = grading.MergeSolutions(questions, solutions.Solutions)
	}

	report := h.grader.GradeSheet(r.Context(), questions, sheet.Answers, sheet.StudentInfo)
	if _, err := h.store.SaveReport(sheetID, report); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("graded sheet", "sheet", sheetDoc.Name, "percentage", report.Percentage, "grade", report.Grade)
	respondJSON(w, http.StatusOK, report)
}
