package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/hirelane/internal/auth"
	"github.com/DukeRupert/hirelane/internal/domain"
)

// =============================================================================
// Service mocks
// =============================================================================

type mockQuotaService struct {
	CheckFunc               func(ctx context.Context, accountID uuid.UUID) (*domain.QuotaSnapshot, error)
	UnlockCandidateFunc     func(ctx context.Context, accountID, candidateID uuid.UUID) (*domain.UnlockResult, error)
	UseAnalysisCreditFunc   func(ctx context.Context, accountID uuid.UUID) (*domain.CreditResult, error)
	ChangePlanFunc          func(ctx context.Context, accountID uuid.UUID, plan domain.Plan, resetUsage bool) (*domain.QuotaSnapshot, error)
	SyncPlanFromBillingFunc func(ctx context.Context, customerID string, plan domain.Plan) error
}

func (m *mockQuotaService) Check(ctx context.Context, accountID uuid.UUID) (*domain.QuotaSnapshot, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, accountID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockQuotaService) UnlockCandidate(ctx context.Context, accountID, candidateID uuid.UUID) (*domain.UnlockResult, error) {
	if m.UnlockCandidateFunc != nil {
		return m.UnlockCandidateFunc(ctx, accountID, candidateID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockQuotaService) UseAnalysisCredit(ctx context.Context, accountID uuid.UUID) (*domain.CreditResult, error) {
	if m.UseAnalysisCreditFunc != nil {
		return m.UseAnalysisCreditFunc(ctx, accountID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockQuotaService) ChangePlan(ctx context.Context, accountID uuid.UUID, plan domain.Plan, resetUsage bool) (*domain.QuotaSnapshot, error) {
	if m.ChangePlanFunc != nil {
		return m.ChangePlanFunc(ctx, accountID, plan, resetUsage)
	}
	return nil, errors.New("not implemented")
}

func (m *mockQuotaService) SyncPlanFromBilling(ctx context.Context, customerID string, plan domain.Plan) error {
	if m.SyncPlanFromBillingFunc != nil {
		return m.SyncPlanFromBillingFunc(ctx, customerID, plan)
	}
	return errors.New("not implemented")
}

type mockDispatcher struct {
	AnalyzePendingFunc func(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) (*domain.DispatchResult, error)
}

func (m *mockDispatcher) AnalyzePending(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) (*domain.DispatchResult, error) {
	if m.AnalyzePendingFunc != nil {
		return m.AnalyzePendingFunc(ctx, accountID, ids)
	}
	return nil, errors.New("not implemented")
}

type mockResetJob struct {
	RunFunc func(ctx context.Context) (*domain.ResetResult, error)
}

func (m *mockResetJob) Run(ctx context.Context) (*domain.ResetResult, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

type mockCandidateService struct {
	ApplyFunc               func(ctx context.Context, params domain.ApplyParams) (*domain.ApplyResult, error)
	RecordScoringResultFunc func(ctx context.Context, callback domain.ScoringCallback) error
}

func (m *mockCandidateService) Apply(ctx context.Context, params domain.ApplyParams) (*domain.ApplyResult, error) {
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCandidateService) RecordScoringResult(ctx context.Context, callback domain.ScoringCallback) error {
	if m.RecordScoringResultFunc != nil {
		return m.RecordScoringResultFunc(ctx, callback)
	}
	return errors.New("not implemented")
}

// mockBilling decodes the payload as an event when the signature is "valid".
type mockBilling struct {
	prices              map[string]domain.Plan
	GetSubscriptionFunc func(id string) (*stripe.Subscription, error)
}

func (m *mockBilling) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	if signature != "valid" {
		return stripe.Event{}, errors.New("bad signature")
	}
	var event stripe.Event
	err := json.Unmarshal(payload, &event)
	return event, err
}

func (m *mockBilling) GetSubscription(id string) (*stripe.Subscription, error) {
	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBilling) PlanForPriceID(priceID string) (domain.Plan, bool) {
	plan, ok := m.prices[priceID]
	return plan, ok
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.err
}

// =============================================================================
// Helpers
// =============================================================================

// asPrincipal stands in for the bearer middleware.
func asPrincipal(p *auth.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.SetPrincipal(r.Context(), p)))
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Code    string        `json:"code"`
		Message string        `json:"message"`
		Plan    *domain.Plan  `json:"plan"`
		Used    *int          `json:"used"`
		Limit   *domain.Limit `json:"limit"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func newRouter() chi.Router {
	return chi.NewRouter()
}

func resetRunReturning(count int, err error) func(context.Context) (*domain.ResetResult, error) {
	return func(context.Context) (*domain.ResetResult, error) {
		if err != nil {
			return nil, err
		}
		return &domain.ResetResult{ResetCount: count, ResetAt: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}, nil
	}
}
