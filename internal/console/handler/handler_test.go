package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/review-workflow/internal/audit"
	"github.com/xela07ax/review-workflow/internal/console/service"
	"github.com/xela07ax/review-workflow/internal/domain"
	"github.com/xela07ax/review-workflow/internal/engine"
	"github.com/xela07ax/review-workflow/internal/hours"
	"github.com/xela07ax/review-workflow/internal/infra/auth"
)

// fakeWorkflow переопределяет только нужные методы; остальные паникуют через nil-интерфейс.
type fakeWorkflow struct {
	Workflow

	gotOutcome domain.ReviewOutcome
	gotNotes   string
	gotRole    domain.ReviewRole
	err        error
}

func (f *fakeWorkflow) Get(_ context.Context, id string) (*domain.Request, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Request{ID: id, Status: domain.StatusDraft}, nil
}

func (f *fakeWorkflow) SubmitLegalReview(_ context.Context, _ domain.Caller, id string, outcome domain.ReviewOutcome, notes string) (*engine.ActionResult, error) {
	f.gotOutcome, f.gotNotes = outcome, notes
	if f.err != nil {
		return nil, f.err
	}
	return &engine.ActionResult{
		Request:       &domain.Request{ID: id, Status: domain.StatusCloseout},
		ChangedFields: []domain.Field{domain.FieldStatus},
	}, nil
}

func (f *fakeWorkflow) ResubmitForReview(_ context.Context, _ domain.Caller, id string, role domain.ReviewRole, notes string) (*engine.ActionResult, error) {
	f.gotRole, f.gotNotes = role, notes
	return &engine.ActionResult{Request: &domain.Request{ID: id}}, nil
}

func (f *fakeWorkflow) SubmitRequest(_ context.Context, _ domain.Caller, id string) (*engine.ActionResult, error) {
	return &engine.ActionResult{Request: &domain.Request{ID: id, Status: domain.StatusLegalIntake}}, nil
}

type fakeDrafts struct{}

func (fakeDrafts) CreateDraft(_ context.Context, caller domain.Caller, in service.NewDraft) (*domain.Request, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", service.ErrInvalidDraft)
	}
	return &domain.Request{ID: "req-new", Title: in.Title, Status: domain.StatusDraft, Submitter: caller.Principal()}, nil
}

type fakeSettings struct {
	updated *hours.Settings
}

func (f *fakeSettings) WorkingHoursSettings(context.Context) (hours.Settings, error) {
	return hours.Settings{StartHour: 9, EndHour: 17, WorkingDays: []string{"mon"}, Timezone: "UTC"}, nil
}

func (f *fakeSettings) UpdateWorkingHours(_ context.Context, st hours.Settings, _ string) error {
	if _, err := st.Parse(); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidSettings, err)
	}
	f.updated = &st
	return nil
}

type fakeAuditReader struct {
	gotLimit int
}

func (f *fakeAuditReader) FetchLogs(_ context.Context, requestID string, limit int) ([]audit.Event, error) {
	f.gotLimit = limit
	return []audit.Event{{RequestID: requestID, Action: "submit_request"}}, nil
}

type fakeIssuer struct {
	err error
}

func (f fakeIssuer) GenerateToken(context.Context, string, string) (*domain.TokenResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TokenResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 60}, nil
}

var (
	submitter  = domain.Caller{ID: "sub-1", Roles: domain.NewRoleSet(domain.RoleSubmitter)}
	legalAdmin = domain.Caller{ID: "la-1", Roles: domain.NewRoleSet(domain.RoleLegalAdmin)}
)

func newRouter(wf Workflow, caller *domain.Caller, st *fakeSettings, ar *fakeAuditReader) http.Handler {
	logger := zap.NewNop()
	reqs := NewRequestHandler(wf, fakeDrafts{}, logger)
	settings := NewSettingsHandler(st, logger)
	audits := NewAuditHandler(ar)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if caller != nil {
				req = req.WithContext(auth.WithCaller(req.Context(), *caller))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/v1/requests", reqs.Create)
	r.Get("/v1/requests/{id}", reqs.Get)
	r.Get("/v1/requests/{id}/audit", audits.GetLogs)
	r.Post("/v1/requests/{id}/{action}", reqs.Act)
	r.Get("/v1/settings/working-hours", settings.GetWorkingHours)
	r.Put("/v1/settings/working-hours", settings.UpdateWorkingHours)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAct_DispatchesReviewOutcome(t *testing.T) {
	wf := &fakeWorkflow{}
	h := newRouter(wf, &legalAdmin, &fakeSettings{}, &fakeAuditReader{})

	rec := do(t, h, http.MethodPost, "/v1/requests/req-1/submit_legal_review", `{"outcome":"Approved","notes":"ok"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.OutcomeApproved, wf.gotOutcome)
	require.Equal(t, "ok", wf.gotNotes)

	var res engine.ActionResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Equal(t, domain.StatusCloseout, res.Request.Status)
	require.Equal(t, []domain.Field{domain.FieldStatus}, res.ChangedFields)
}

func TestAct_EmptyBodyAndRole(t *testing.T) {
	wf := &fakeWorkflow{}
	h := newRouter(wf, &submitter, &fakeSettings{}, &fakeAuditReader{})

	rec := do(t, h, http.MethodPost, "/v1/requests/req-1/submit_request", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/requests/req-1/resubmit_for_review", `{"role":"compliance","notes":"fixed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.ReviewCompliance, wf.gotRole)
	require.Equal(t, "fixed", wf.gotNotes)
}

func TestAct_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantDeny domain.DenyCode
	}{
		{"wrong role", domain.NewPreconditionError("submit_legal_review", domain.DenyWrongRole, "no"), http.StatusForbidden, domain.DenyWrongRole},
		{"not assigned", domain.NewPreconditionError("submit_legal_review", domain.DenyNotAssigned, "no"), http.StatusForbidden, domain.DenyNotAssigned},
		{"invalid input", domain.NewPreconditionError("submit_legal_review", domain.DenyInvalidInput, "bad"), http.StatusUnprocessableEntity, domain.DenyInvalidInput},
		{"wrong status", domain.NewTransitionError("submit_legal_review", "not in review"), http.StatusConflict, domain.DenyWrongStatus},
		{"duplicate", domain.NewPreconditionError("submit_legal_review", domain.DenyDuplicateAction, "dup"), http.StatusConflict, domain.DenyDuplicateAction},
		{"not found", fmt.Errorf("load: %w", domain.ErrRequestNotFound), http.StatusNotFound, ""},
		{"persistence", fmt.Errorf("%w: connection reset", domain.ErrPersistence), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(&fakeWorkflow{err: tt.err}, &legalAdmin, &fakeSettings{}, &fakeAuditReader{})
			rec := do(t, h, http.MethodPost, "/v1/requests/req-1/submit_legal_review", `{"outcome":"Approved"}`)

			require.Equal(t, tt.wantCode, rec.Code)
			var resp errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			require.Equal(t, tt.wantDeny, resp.Code)
			if tt.wantCode == http.StatusInternalServerError {
				require.Equal(t, "internal error", resp.Error)
			}
		})
	}
}

func TestAct_UnknownActionAndBadBody(t *testing.T) {
	h := newRouter(&fakeWorkflow{}, &legalAdmin, &fakeSettings{}, &fakeAuditReader{})

	rec := do(t, h, http.MethodPost, "/v1/requests/req-1/approve_everything", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/requests/req-1/submit_legal_review", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAct_RequiresCaller(t *testing.T) {
	h := newRouter(&fakeWorkflow{}, nil, &fakeSettings{}, &fakeAuditReader{})
	rec := do(t, h, http.MethodPost, "/v1/requests/req-1/submit_request", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGet(t *testing.T) {
	h := newRouter(&fakeWorkflow{}, &submitter, &fakeSettings{}, &fakeAuditReader{})
	rec := do(t, h, http.MethodGet, "/v1/requests/req-7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	h = newRouter(&fakeWorkflow{err: domain.ErrRequestNotFound}, &submitter, &fakeSettings{}, &fakeAuditReader{})
	rec = do(t, h, http.MethodGet, "/v1/requests/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateDraft(t *testing.T) {
	h := newRouter(&fakeWorkflow{}, &submitter, &fakeSettings{}, &fakeAuditReader{})

	rec := do(t, h, http.MethodPost, "/v1/requests", `{"title":"Q3 fund brochure","review_audience":"Both"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var req domain.Request
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&req))
	require.Equal(t, "sub-1", req.Submitter.ID)

	rec = do(t, h, http.MethodPost, "/v1/requests", `{"title":""}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWorkingHoursSettings(t *testing.T) {
	st := &fakeSettings{}
	body := `{"start_hour":8,"end_hour":16,"working_days":["mon","tue"],"timezone":"UTC"}`

	t.Run("submitter is forbidden", func(t *testing.T) {
		rec := do(t, newRouter(&fakeWorkflow{}, &submitter, st, &fakeAuditReader{}), http.MethodPut, "/v1/settings/working-hours", body)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Nil(t, st.updated)
	})

	t.Run("legal admin updates", func(t *testing.T) {
		rec := do(t, newRouter(&fakeWorkflow{}, &legalAdmin, st, &fakeAuditReader{}), http.MethodPut, "/v1/settings/working-hours", body)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, st.updated)
		require.Equal(t, 8, st.updated.StartHour)
	})

	t.Run("invalid window", func(t *testing.T) {
		rec := do(t, newRouter(&fakeWorkflow{}, &legalAdmin, &fakeSettings{}, &fakeAuditReader{}), http.MethodPut, "/v1/settings/working-hours",
			`{"start_hour":18,"end_hour":9,"working_days":["mon"]}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("anyone reads", func(t *testing.T) {
		rec := do(t, newRouter(&fakeWorkflow{}, &submitter, st, &fakeAuditReader{}), http.MethodGet, "/v1/settings/working-hours", "")
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuditLogs(t *testing.T) {
	ar := &fakeAuditReader{}
	h := newRouter(&fakeWorkflow{}, &submitter, &fakeSettings{}, ar)

	rec := do(t, h, http.MethodGet, "/v1/requests/req-1/audit?limit=20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 20, ar.gotLimit)

	var events []audit.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	require.Len(t, events, 1)
	require.Equal(t, "req-1", events[0].RequestID)

	rec = do(t, h, http.MethodGet, "/v1/requests/req-1/audit?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		issuer   fakeIssuer
		body     string
		wantCode int
	}{
		{"ok", fakeIssuer{}, `{"username":"ann","password":"pw"}`, http.StatusOK},
		{"bad credentials", fakeIssuer{err: service.ErrInvalidCredentials}, `{"username":"ann","password":"x"}`, http.StatusUnauthorized},
		{"directory down", fakeIssuer{err: errors.New("pool closed")}, `{"username":"ann","password":"pw"}`, http.StatusInternalServerError},
		{"bad body", fakeIssuer{}, `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(tt.issuer, zap.NewNop())
			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(tt.body)))
			require.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
