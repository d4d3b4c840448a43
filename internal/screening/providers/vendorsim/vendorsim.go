// Package vendorsim simulates both vendor APIs over HTTP for local runs and
// adapter tests.
//
// The outcome of a report comes from, in order: SetNextOutcome, a "+tag" in
// the candidate email (see package fake), then the server default.
package vendorsim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"basecamp/internal/screening/providers/fake"
)

type report struct {
	id        string
	outcome   fake.Outcome
	polls     int
	cancelled bool
}

type Server struct {
	apiKey string
	now    func() time.Time

	mu           sync.Mutex
	seq          int
	pendingPolls int
	defOutcome   fake.Outcome
	nextOutcome  fake.Outcome
	reports      map[string]*report
}

type Option func(*Server)

// WithPendingPolls keeps reports in progress for n polls.
func WithPendingPolls(n int) Option {
	return func(s *Server) { s.pendingPolls = n }
}

func WithDefaultOutcome(o fake.Outcome) Option {
	return func(s *Server) { s.defOutcome = o }
}

func WithNow(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(apiKey string, opts ...Option) *Server {
	s := &Server{
		apiKey:     apiKey,
		now:        time.Now,
		defOutcome: fake.OutcomeClear,
		reports:    make(map[string]*report),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNextOutcome forces the outcome of the next created report.
func (s *Server) SetNextOutcome(o fake.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOutcome = o
}

func (s *Server) SetPendingPolls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPolls = n
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "vendorsim"})
	})
	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Post("/v1/reports", s.checkrCreate)
		r.Get("/v1/reports/{id}", s.checkrGet)
		r.Post("/v1/reports/{id}/cancel", s.checkrCancel)

		r.Post("/v2/screenings", s.sterlingCreate)
		r.Get("/v2/screenings/{id}", s.sterlingGet)
		r.Delete("/v2/screenings/{id}", s.sterlingCancel)
	})
	return r
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+s.apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) create(prefix, email string) *report {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++

	outcome := s.nextOutcome
	s.nextOutcome = ""
	if outcome == "" {
		outcome = tagged(email, s.defOutcome)
	}
	rep := &report{id: fmt.Sprintf("%s_%06d", prefix, s.seq), outcome: outcome}
	s.reports[rep.id] = rep
	return rep
}

func tagged(email string, def fake.Outcome) fake.Outcome {
	local, _, _ := strings.Cut(email, "@")
	if _, tag, ok := strings.Cut(local, "+"); ok {
		return fake.Outcome(tag)
	}
	return def
}

// poll advances a report and returns a snapshot plus whether it is done.
func (s *Server) poll(id string) (report, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.reports[id]
	if !ok {
		return report{}, false, false
	}
	rep.polls++
	done := rep.cancelled || rep.polls > s.pendingPolls
	return *rep, done, true
}

// cancel returns false when the report is missing, already cancelled or
// already complete.
func (s *Server) cancel(id string) (found, cancelled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.reports[id]
	if !ok {
		return false, false
	}
	if rep.cancelled || rep.polls > s.pendingPolls {
		return true, false
	}
	rep.cancelled = true
	return true, true
}

// Checkr shapes.

func (s *Server) checkrCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Candidate struct {
			Email string `json:"email"`
		} `json:"candidate"`
		Package string `json:"package"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Package == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid report request"})
		return
	}
	rep := s.create("chk", body.Candidate.Email)
	writeJSON(w, http.StatusCreated, map[string]string{"id": rep.id, "status": "pending"})
}

func (s *Server) checkrGet(w http.ResponseWriter, r *http.Request) {
	rep, done, ok := s.poll(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return
	}
	resp := map[string]any{"id": rep.id, "status": "pending"}
	switch {
	case rep.cancelled:
		resp["status"] = "canceled"
	case !done:
	case rep.outcome == fake.OutcomeFailed:
		resp["status"] = "canceled"
	default:
		now := s.now().UTC()
		resp["status"] = "complete"
		resp["completed_at"] = now
		resp["report_url"] = "https://reports.checkr.test/" + rep.id
		switch rep.outcome {
		case fake.OutcomeAdverse:
			resp["result"] = "consider"
			resp["records"] = []map[string]string{{
				"type": "violent_felony", "disposition": "convicted",
				"offense_date": now.AddDate(-2, 0, 0).Format("2006-01-02"),
			}}
		case fake.OutcomeMinor:
			resp["result"] = "consider"
			resp["records"] = []map[string]string{{
				"type": "motor_vehicle", "disposition": "paid fine",
				"offense_date": now.AddDate(-1, 0, 0).Format("2006-01-02"),
			}}
		case fake.OutcomeUnknown:
			resp["result"] = "needs_review"
		default:
			resp["result"] = "clear"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) checkrCancel(w http.ResponseWriter, r *http.Request) {
	found, cancelled := s.cancel(chi.URLParam(r, "id"))
	switch {
	case !found:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
	case !cancelled:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "report already finished"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
	}
}

// Sterling shapes.

func (s *Server) sterlingCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PackageID string `json:"packageId"`
		Candidate struct {
			Email string `json:"email"`
		} `json:"candidate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PackageID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "packageId is required"})
		return
	}
	rep := s.create("stg", body.Candidate.Email)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": rep.id, "status": "Pending"})
}

func (s *Server) sterlingGet(w http.ResponseWriter, r *http.Request) {
	rep, done, ok := s.poll(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "screening not found"})
		return
	}
	resp := map[string]any{"id": rep.id, "status": "In Progress"}
	switch {
	case rep.cancelled:
		resp["status"] = "Canceled"
	case !done:
	case rep.outcome == fake.OutcomeFailed:
		resp["status"] = "Error"
	default:
		now := s.now().UTC()
		resp["status"] = "Complete"
		resp["updatedAt"] = now
		resp["links"] = map[string]string{"pdf": "https://reports.sterling.test/" + rep.id + ".pdf"}
		switch rep.outcome {
		case fake.OutcomeAdverse:
			resp["result"] = "Adverse"
			resp["reportItems"] = []map[string]string{{
				"category": "SEX_OFFENDER", "description": "registry match",
				"date": now.AddDate(-15, 0, 0).Format("2006-01-02"),
			}}
		case fake.OutcomeMinor:
			resp["result"] = "Consider"
			resp["reportItems"] = []map[string]string{{
				"category": "TRAFFIC", "description": "speeding",
				"date": now.AddDate(-1, 0, 0).Format("2006-01-02"),
			}}
		case fake.OutcomeUnknown:
			resp["result"] = "Hold"
		default:
			resp["result"] = "Clear"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) sterlingCancel(w http.ResponseWriter, r *http.Request) {
	found, cancelled := s.cancel(chi.URLParam(r, "id"))
	switch {
	case !found:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "screening not found"})
	case !cancelled:
		writeJSON(w, http.StatusConflict, map[string]string{"message": "screening already finished"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
