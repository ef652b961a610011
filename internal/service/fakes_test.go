package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/email"
	"github.com/DukeRupert/hirelane/internal/repository"
	"github.com/DukeRupert/hirelane/internal/scoring"
	"github.com/DukeRupert/hirelane/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// fakeStore
// =============================================================================

// fakeStore is an in-memory repository.Store. Transactions are serialized
// and roll back by restoring a snapshot.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	accounts   map[uuid.UUID]repository.Account
	jobs       map[uuid.UUID]repository.Job
	candidates map[uuid.UUID]repository.Candidate

	// beforeIncrement runs (without the lock held) before each IncrementUsage.
	beforeIncrement func(id uuid.UUID)
	listErr         error
	resetErr        map[uuid.UUID]error
	incrementCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:   make(map[uuid.UUID]repository.Account),
		jobs:       make(map[uuid.UUID]repository.Job),
		candidates: make(map[uuid.UUID]repository.Candidate),
		resetErr:   make(map[uuid.UUID]error),
	}
}

func (f *fakeStore) addAccount(plan domain.Plan, used int) repository.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	a := repository.Account{
		ID:                id,
		Email:             "owner-" + id.String()[:8] + "@acme.test",
		FullName:          "Dana Owner",
		Role:              string(domain.RoleEmployer),
		Plan:              string(plan),
		UsedThisPeriod:    int32(used),
		PeriodStart:       time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		NotificationState: string(domain.NotificationNotSent),
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	f.accounts[id] = a
	return a
}

func (f *fakeStore) addJob(accountID uuid.UUID, status domain.JobStatus) repository.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := repository.Job{
		ID:          uuid.New(),
		AccountID:   accountID,
		Title:       "Backend Engineer",
		Description: "Build Go services",
		Status:      string(status),
	}
	f.jobs[j.ID] = j
	return j
}

func (f *fakeStore) addCandidate(job repository.Job, mutate func(*repository.Candidate)) repository.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := repository.Candidate{
		ID:             uuid.New(),
		AccountID:      job.AccountID,
		JobID:          job.ID,
		FullName:       "Sam Lee",
		Email:          "sam@example.test",
		CvText:         sql.NullString{String: "Go, Postgres, 6 years", Valid: true},
		AnalysisStatus: string(domain.AnalysisPending),
	}
	if mutate != nil {
		mutate(&c)
	}
	f.candidates[c.ID] = c
	return c
}

func (f *fakeStore) updateAccount(id uuid.UUID, mutate func(*repository.Account)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[id]
	mutate(&a)
	f.accounts[id] = a
}

func (f *fakeStore) account(id uuid.UUID) repository.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id]
}

func (f *fakeStore) candidate(id uuid.UUID) repository.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candidates[id]
}

func (f *fakeStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	accounts := cloneMap(f.accounts)
	candidates := cloneMap(f.candidates)
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.accounts = accounts
		f.candidates = candidates
		f.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeStore) CreateAccount(_ context.Context, arg repository.CreateAccountParams) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := repository.Account{
		ID:                arg.ID,
		Email:             arg.Email,
		FullName:          arg.FullName,
		CompanyName:       arg.CompanyName,
		Role:              arg.Role,
		Plan:              arg.Plan,
		PeriodStart:       time.Now(),
		NotificationState: string(domain.NotificationNotSent),
	}
	f.accounts[a.ID] = a
	return a, nil
}

func (f *fakeStore) CreateCandidate(_ context.Context, arg repository.CreateCandidateParams) (repository.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := repository.Candidate{
		ID:             arg.ID,
		AccountID:      arg.AccountID,
		JobID:          arg.JobID,
		FullName:       arg.FullName,
		Email:          arg.Email,
		Phone:          arg.Phone,
		CvText:         arg.CvText,
		CvStorageKey:   arg.CvStorageKey,
		AnalysisStatus: string(domain.AnalysisPending),
	}
	f.candidates[c.ID] = c
	return c, nil
}

func (f *fakeStore) GetAccount(_ context.Context, id uuid.UUID) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return repository.Account{}, sql.ErrNoRows
	}
	return a, nil
}

func (f *fakeStore) GetCandidate(_ context.Context, id uuid.UUID) (repository.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[id]
	if !ok {
		return repository.Candidate{}, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) GetJob(_ context.Context, id uuid.UUID) (repository.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return repository.Job{}, sql.ErrNoRows
	}
	return j, nil
}

func (f *fakeStore) IncrementUsage(_ context.Context, arg repository.IncrementUsageParams) (repository.IncrementUsageRow, error) {
	if f.beforeIncrement != nil {
		f.beforeIncrement(arg.ID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrementCalls++
	a, ok := f.accounts[arg.ID]
	if !ok || a.Plan != arg.Plan || (arg.Limit >= 0 && a.UsedThisPeriod >= arg.Limit) {
		return repository.IncrementUsageRow{}, sql.ErrNoRows
	}
	a.UsedThisPeriod++
	f.accounts[arg.ID] = a
	return repository.IncrementUsageRow{
		UsedThisPeriod:    a.UsedThisPeriod,
		PeriodStart:       a.PeriodStart,
		NotificationState: a.NotificationState,
	}, nil
}

func (f *fakeStore) ListAccountsWithUsage(_ context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []uuid.UUID
	for id, a := range f.accounts {
		if a.UsedThisPeriod > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (f *fakeStore) ListCandidatesByIDs(_ context.Context, ids []uuid.UUID) ([]repository.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Candidate
	for _, id := range ids {
		if c, ok := f.candidates[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ResetAccountUsage(_ context.Context, arg repository.ResetAccountUsageParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.resetErr[arg.ID]; err != nil {
		return 0, err
	}
	a, ok := f.accounts[arg.ID]
	if !ok || a.UsedThisPeriod == 0 {
		return 0, nil
	}
	a.UsedThisPeriod = 0
	a.PeriodStart = arg.PeriodStart
	a.NotificationState = string(domain.NotificationNotSent)
	f.accounts[arg.ID] = a
	return 1, nil
}

func (f *fakeStore) SaveCandidateAnalysis(_ context.Context, arg repository.SaveCandidateAnalysisParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[arg.ID]
	if !ok {
		return 0, nil
	}
	if arg.ExtractedData.Valid {
		c.ExtractedData = arg.ExtractedData
	}
	if arg.RelevanceAnalysis.Valid {
		c.RelevanceAnalysis = arg.RelevanceAnalysis
	}
	if arg.ImprovementTips.Valid {
		c.ImprovementTips = arg.ImprovementTips
	}
	if arg.TestResult.Valid {
		c.TestResult = arg.TestResult
	}
	if arg.DetailedScores.Valid {
		c.DetailedScores = arg.DetailedScores
	}
	if arg.Score.Valid {
		c.Score = arg.Score.Int32
	}
	c.AnalysisStatus = string(domain.AnalysisCompleted)
	f.candidates[arg.ID] = c
	return 1, nil
}

func (f *fakeStore) SetCandidateAnalysisStatus(_ context.Context, arg repository.SetCandidateAnalysisStatusParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[arg.ID]
	if !ok {
		return nil
	}
	c.AnalysisStatus = arg.AnalysisStatus
	f.candidates[arg.ID] = c
	return nil
}

func (f *fakeStore) TransitionNotificationState(_ context.Context, arg repository.TransitionNotificationStateParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[arg.ID]
	if !ok || a.NotificationState != arg.FromState {
		return 0, nil
	}
	a.NotificationState = arg.ToState
	f.accounts[arg.ID] = a
	return 1, nil
}

func (f *fakeStore) UnlockCandidate(_ context.Context, arg repository.UnlockCandidateParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[arg.ID]
	if !ok || c.IsUnlocked {
		return 0, nil
	}
	c.IsUnlocked = true
	c.UnlockedAt = sql.NullTime{Time: time.Now(), Valid: true}
	c.UnlockedBy = uuid.NullUUID{UUID: arg.UnlockedBy, Valid: true}
	f.candidates[arg.ID] = c
	return 1, nil
}

func (f *fakeStore) UpdateAccountPlan(_ context.Context, arg repository.UpdateAccountPlanParams) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[arg.ID]
	if !ok {
		return repository.Account{}, sql.ErrNoRows
	}
	a.Plan = arg.Plan
	f.accounts[arg.ID] = a
	return a, nil
}

func (f *fakeStore) UpdateAccountPlanAndResetUsage(_ context.Context, arg repository.UpdateAccountPlanAndResetUsageParams) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[arg.ID]
	if !ok {
		return repository.Account{}, sql.ErrNoRows
	}
	a.Plan = arg.Plan
	a.UsedThisPeriod = 0
	a.PeriodStart = arg.PeriodStart
	a.NotificationState = string(domain.NotificationNotSent)
	f.accounts[arg.ID] = a
	return a, nil
}

func (f *fakeStore) UpdateAccountPlanByStripeCustomer(_ context.Context, arg repository.UpdateAccountPlanByStripeCustomerParams) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, a := range f.accounts {
		if a.StripeCustomerID.Valid && a.StripeCustomerID.String == arg.StripeCustomerID.String {
			a.Plan = arg.Plan
			f.accounts[id] = a
			return a, nil
		}
	}
	return repository.Account{}, sql.ErrNoRows
}

var _ repository.Store = (*fakeStore)(nil)

// =============================================================================
// fakeEmail
// =============================================================================

type sentEmail struct {
	kind string
	to   string
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeEmail) record(kind, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{kind: kind, to: to})
	return nil
}

func (f *fakeEmail) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.kind)
	}
	return out
}

func (f *fakeEmail) Send(_ context.Context, e email.Email) error {
	return f.record("raw", e.To)
}

func (f *fakeEmail) SendUsageWarningEmail(_ context.Context, to, _ string, _ domain.QuotaSnapshot) error {
	return f.record("warning", to)
}

func (f *fakeEmail) SendLimitReachedEmail(_ context.Context, to, _ string, _ domain.QuotaSnapshot) error {
	return f.record("exhausted", to)
}

func (f *fakeEmail) SendNewApplicationEmail(_ context.Context, to, _, _, _ string, unlocked bool) error {
	kind := "application_locked"
	if unlocked {
		kind = "application_unlocked"
	}
	return f.record(kind, to)
}

// =============================================================================
// fakeWorkflow
// =============================================================================

type fakeWorkflow struct {
	mu       sync.Mutex
	requests []scoring.Request
	failFor  map[uuid.UUID]bool
}

func (f *fakeWorkflow) Submit(_ context.Context, req scoring.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[req.CandidateID] {
		return scoring.ErrUnavailable
	}
	f.requests = append(f.requests, req)
	return nil
}

// =============================================================================
// fakeStorage
// =============================================================================

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(_ context.Context, key string, data io.Reader, _ storage.PutOptions) error {
	if f.putErr != nil {
		return f.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) URL(_ context.Context, key string, expires time.Duration) (string, error) {
	if strings.Contains(key, "missing") {
		return "", errors.New("storage URL: object not found")
	}
	return "https://cv.example.test/" + key + "?expires=" + expires.String(), nil
}

// =============================================================================
// wiring
// =============================================================================

type testDeps struct {
	store      *fakeStore
	email      *fakeEmail
	background *Background
	quota      QuotaService
}

func newTestDeps() *testDeps {
	store := newFakeStore()
	mail := &fakeEmail{}
	bg := NewBackground(time.Second, testLogger())
	notifier := NewUsageNotifier(store, mail, bg, testLogger())
	return &testDeps{
		store:      store,
		email:      mail,
		background: bg,
		quota:      NewQuotaService(store, domain.DefaultPlanCatalog(), notifier, testLogger()),
	}
}

func (d *testDeps) waitBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = d.background.Wait(ctx)
}
