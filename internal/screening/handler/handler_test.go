package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"basecamp/internal/screening/handler/mocks"
	"basecamp/internal/screening/models"
	"basecamp/internal/screening/service"
	dErrors "basecamp/pkg/domain-errors"
	"basecamp/pkg/requestcontext"
	"basecamp/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	return s.doFrom("", method, path, body, headers)
}

// doFrom sends the request as if it came from clientIP.
func (s *HandlerSuite) doFrom(clientIP, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if clientIP != "" {
		req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, "test-agent"))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *HandlerSuite) TestSubmit() {
	s.Run("accepted with estimate", func() {
		rec := testutil.NewRecordBuilder().WithID(testutil.TestIDs.Screening1).Build()
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, req *models.Request) (*models.Record, error) {
				s.Equal("dana@example.com", req.Email)
				s.True(req.ConsentGiven)
				return rec, nil
			})
		s.service.EXPECT().EstimateCompletion(models.TierStandard).Return("1-3 business days")

		w := s.do(http.MethodPost, "/screenings", testutil.NewRequest("dana@example.com"), nil)

		s.Equal(http.StatusAccepted, w.Code)
		s.Equal("/screenings/"+rec.ID.String(), w.Header().Get("Location"))
		body := s.decode(w)
		s.Equal(rec.ID.String(), body["id"])
		s.Equal("pending", body["status"])
		s.Equal("1-3 business days", body["estimated_completion"])
	})

	s.Run("validation error is 400", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, models.ConsentRequiredMessage))

		w := s.do(http.MethodPost, "/screenings", testutil.NewRequest("dana@example.com"), nil)

		s.Equal(http.StatusBadRequest, w.Code)
		body := s.decode(w)
		s.Equal("validation_error", body["error"])
		s.Equal(models.ConsentRequiredMessage, body["error_description"])
	})

	s.Run("duplicate is 409", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeDuplicateScreening, "an active screening already exists for this email"))

		w := s.do(http.MethodPost, "/screenings", testutil.NewRequest("dana@example.com"), nil)

		s.Equal(http.StatusConflict, w.Code)
		s.Equal("duplicate_request", s.decode(w)["error"])
	})

	s.Run("unknown fields are rejected before the service", func() {
		w := s.do(http.MethodPost, "/screenings", map[string]any{"email": "a@b.co", "admin": true}, nil)

		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("idempotency key replays the first response", func() {
		rec := testutil.NewRecordBuilder().Build()
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(rec, nil).Times(1)
		s.service.EXPECT().EstimateCompletion(gomock.Any()).Return("1-3 business days").Times(1)
		headers := map[string]string{IdempotencyHeader: "client-key-1"}

		first := s.do(http.MethodPost, "/screenings", testutil.NewRequest("dana@example.com"), headers)
		second := s.do(http.MethodPost, "/screenings", testutil.NewRequest("dana@example.com"), headers)

		s.Equal(http.StatusAccepted, first.Code)
		s.Equal(http.StatusAccepted, second.Code)
		s.Equal("true", second.Header().Get(IdempotentReplayHeader))
		s.JSONEq(first.Body.String(), second.Body.String())
	})

	s.Run("failed submissions are not cached", func() {
		headers := map[string]string{IdempotencyHeader: "client-key-2"}
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "db down")).Times(2)

		s.Equal(http.StatusInternalServerError, s.do(http.MethodPost, "/screenings", testutil.NewRequest("x@example.com"), headers).Code)
		s.Equal(http.StatusInternalServerError, s.do(http.MethodPost, "/screenings", testutil.NewRequest("x@example.com"), headers).Code)
	})

	s.Run("idempotency key reused with a different body is 422", func() {
		rec := testutil.NewRecordBuilder().Build()
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(rec, nil).Times(1)
		s.service.EXPECT().EstimateCompletion(gomock.Any()).Return("1-3 business days").Times(1)
		headers := map[string]string{IdempotencyHeader: "client-key-3"}

		first := s.do(http.MethodPost, "/screenings", testutil.NewRequest("dana@example.com"), headers)
		second := s.do(http.MethodPost, "/screenings", testutil.NewRequest("lee@example.com"), headers)

		s.Equal(http.StatusAccepted, first.Code)
		s.Equal(http.StatusUnprocessableEntity, second.Code)
		s.Equal("idempotency_key_reused", s.decode(second)["error"])
		s.Empty(second.Header().Get(IdempotentReplayHeader))
	})

	s.Run("idempotency keys are scoped to the client", func() {
		first := testutil.NewRecordBuilder().Build()
		other := testutil.NewRecordBuilder().WithID(testutil.TestIDs.Screening2).Build()
		gomock.InOrder(
			s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(first, nil),
			s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(other, nil),
		)
		s.service.EXPECT().EstimateCompletion(gomock.Any()).Return("1-3 business days").Times(2)
		headers := map[string]string{IdempotencyHeader: "shared-key"}

		a := s.doFrom("203.0.113.7", http.MethodPost, "/screenings", testutil.NewRequest("dana@example.com"), headers)
		b := s.doFrom("198.51.100.4", http.MethodPost, "/screenings", testutil.NewRequest("dana@example.com"), headers)

		s.Equal(http.StatusAccepted, b.Code)
		s.Empty(b.Header().Get(IdempotentReplayHeader))
		s.Equal(first.ID.String(), s.decode(a)["id"])
		s.Equal(other.ID.String(), s.decode(b)["id"])
	})
}

func (s *HandlerSuite) TestStatus() {
	s.Run("returns the redacted view", func() {
		view := &service.StatusView{ID: testutil.TestIDs.Screening1, Status: "in_review", CreatedAt: testutil.T0, UpdatedAt: testutil.T0}
		s.service.EXPECT().Status(gomock.Any(), testutil.TestIDs.Screening1).Return(view, nil)

		w := s.do(http.MethodGet, "/screenings/"+testutil.TestIDs.Screening1.String(), nil, nil)

		s.Equal(http.StatusOK, w.Code)
		body := s.decode(w)
		s.Equal("in_review", body["status"])
		s.NotContains(body, "decision")
	})

	s.Run("malformed id is 400", func() {
		w := s.do(http.MethodGet, "/screenings/not-a-uuid", nil, nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("missing record is 404", func() {
		s.service.EXPECT().Status(gomock.Any(), testutil.TestIDs.Screening2).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "screening not found"))

		w := s.do(http.MethodGet, "/screenings/"+testutil.TestIDs.Screening2.String(), nil, nil)
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *HandlerSuite) TestAdmin() {
	s.Run("list parses the status filter", func() {
		recs := []*models.Record{
			testutil.NewRecordBuilder().WithStatus(models.StatusProcessingFailed).
				WithError(models.ErrorKindPollingExhausted, "no result after 144 polls").Build(),
		}
		s.service.EXPECT().ListForReview(gomock.Any(), models.StatusProcessingFailed, models.StatusCancelled).Return(recs, nil)

		w := s.do(http.MethodGet, "/admin/screenings?status=processing_failed,cancelled", nil, nil)

		s.Equal(http.StatusOK, w.Code)
		body := s.decode(w)
		s.InDelta(1, body["count"], 0)
		first := body["screenings"].([]any)[0].(map[string]any)
		s.Equal("***-**-6789", first["ssn"])
		s.Equal("203.0.113.0", first["consent_ip"])
		s.Equal("polling_exhausted", first["error"].(map[string]any)["kind"])
	})

	s.Run("list rejects unknown statuses", func() {
		w := s.do(http.MethodGet, "/admin/screenings?status=approved", nil, nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("cancel", func() {
		rec := testutil.NewRecordBuilder().WithStatus(models.StatusCancelled).Build()
		s.service.EXPECT().Cancel(gomock.Any(), rec.ID).Return(rec, nil)

		w := s.do(http.MethodPost, "/admin/screenings/"+rec.ID.String()+"/cancel", nil, nil)

		s.Equal(http.StatusOK, w.Code)
		s.Equal("cancelled", s.decode(w)["status"])
	})

	s.Run("rerun without body resumes in place", func() {
		rec := testutil.NewRecordBuilder().WithStatus(models.StatusClear).Build()
		s.service.EXPECT().Rerun(gomock.Any(), rec.ID, nil).Return(rec, nil)

		w := s.do(http.MethodPost, "/admin/screenings/"+rec.ID.String()+"/rerun", nil, nil)

		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("rerun with candidate creates a new record", func() {
		old := testutil.NewRecordBuilder().WithStatus(models.StatusCancelled).Build()
		fresh := testutil.NewRecordBuilder().RerunOf(old.ID).Build()
		s.service.EXPECT().Rerun(gomock.Any(), old.ID, gomock.Not(gomock.Nil())).Return(fresh, nil)

		w := s.do(http.MethodPost, "/admin/screenings/"+old.ID.String()+"/rerun", testutil.NewRequest("dana@example.com"), nil)

		s.Equal(http.StatusAccepted, w.Code)
		body := s.decode(w)
		s.Equal(fresh.ID.String(), body["id"])
		s.Equal(old.ID.String(), body["rerun_of"])
	})

	s.Run("rerun of an active record is 409", func() {
		rec := testutil.NewRecordBuilder().WithStatus(models.StatusInProgress).Build()
		s.service.EXPECT().Rerun(gomock.Any(), rec.ID, nil).
			Return(nil, dErrors.New(dErrors.CodeScreeningNotRerunable, "screening is still active and cannot be rerun"))

		w := s.do(http.MethodPost, "/admin/screenings/"+rec.ID.String()+"/rerun", nil, nil)

		s.Equal(http.StatusConflict, w.Code)
		s.Equal("rerun_not_allowed", s.decode(w)["error"])
	})
}

func (s *HandlerSuite) TestSubmitMiddlewareWrapsOnlySubmit() {
	var hits int
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), WithSubmitMiddleware(mw))
	r := chi.NewRouter()
	h.Register(r)
	s.router = r

	s.Equal(http.StatusTooManyRequests, s.do(http.MethodPost, "/screenings", testutil.NewRequest("dana@example.com"), nil).Code)

	view := &service.StatusView{ID: testutil.TestIDs.Screening1, Status: "in_review"}
	s.service.EXPECT().Status(gomock.Any(), testutil.TestIDs.Screening1).Return(view, nil)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/screenings/"+testutil.TestIDs.Screening1.String(), nil, nil).Code)
	s.Equal(1, hits)
}
