package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conecta-ies/solicitation-service/internal/domain"
	"github.com/conecta-ies/solicitation-service/internal/events"
	"github.com/conecta-ies/solicitation-service/internal/repository"
	apperrors "github.com/conecta-ies/solicitation-service/pkg/util"
)

// testClock is a mutable clock shared by the engine and the fakes.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeSolicitationRepo struct {
	mu    sync.Mutex
	seq   int
	items map[string]*domain.Solicitation
	clock *testClock
}

func newFakeSolicitationRepo(clock *testClock) *fakeSolicitationRepo {
	return &fakeSolicitationRepo{items: make(map[string]*domain.Solicitation), clock: clock}
}

func (r *fakeSolicitationRepo) WithTx(pgx.Tx) repository.SolicitationRepository { return r }

func (r *fakeSolicitationRepo) Create(_ context.Context, s *domain.Solicitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Protocol == s.Protocol {
			return &pgxUniqueErr{}
		}
	}
	r.seq++
	s.ID = fmt.Sprintf("sol-%d", r.seq)
	s.CreatedAt = r.clock.Now()
	s.UpdatedAt = s.CreatedAt
	clone := *s
	r.items[s.ID] = &clone
	return nil
}

func (r *fakeSolicitationRepo) GetByID(_ context.Context, id string) (*domain.Solicitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *s
	return &clone, nil
}

func (r *fakeSolicitationRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Solicitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Solicitation
	for _, s := range r.items {
		if s.OwnerID == ownerID {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (r *fakeSolicitationRepo) ListByStatusIn(_ context.Context, statuses []domain.SolicitationStatus, _ repository.StatusListOrder) ([]domain.Solicitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Solicitation
	for _, s := range r.items {
		for _, status := range statuses {
			if s.Status == status {
				result = append(result, *s)
				break
			}
		}
	}
	return result, nil
}

func (r *fakeSolicitationRepo) UpdateStatus(_ context.Context, id string, status domain.SolicitationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.Status = status
	s.UpdatedAt = r.clock.Now()
	return nil
}

func (r *fakeSolicitationRepo) SetFirstResponse(_ context.Context, id string, status domain.SolicitationStatus, respondedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.Status = status
	if s.FirstResponseAt == nil {
		stamp := respondedAt
		s.FirstResponseAt = &stamp
	}
	s.UpdatedAt = r.clock.Now()
	return nil
}

func (r *fakeSolicitationRepo) CountCreatedInYear(_ context.Context, year int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, s := range r.items {
		if s.CreatedAt.Year() == year {
			count++
		}
	}
	return count, nil
}

type pgxUniqueErr struct{}

func (*pgxUniqueErr) Error() string { return "duplicate key value violates unique constraint" }

type fakeAttachmentRepo struct {
	mu    sync.Mutex
	seq   int
	items []domain.Attachment
}

func (r *fakeAttachmentRepo) WithTx(pgx.Tx) repository.AttachmentRepository { return r }

func (r *fakeAttachmentRepo) Create(_ context.Context, a *domain.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	a.ID = fmt.Sprintf("att-%d", r.seq)
	r.items = append(r.items, *a)
	return nil
}

func (r *fakeAttachmentRepo) ListBySolicitation(_ context.Context, solicitationID string) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Attachment
	for _, a := range r.items {
		if a.SolicitationID == solicitationID {
			result = append(result, a)
		}
	}
	return result, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	seq     int
	entries []domain.HistoryEntry
	clock   *testClock
}

func newFakeHistoryRepo(clock *testClock) *fakeHistoryRepo {
	return &fakeHistoryRepo{clock: clock}
}

func (r *fakeHistoryRepo) WithTx(pgx.Tx) repository.HistoryRepository { return r }

func (r *fakeHistoryRepo) Append(_ context.Context, entry *domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.ID = fmt.Sprintf("evt-%d", r.seq)
	// Store timestamps strictly non-decreasing within the ledger.
	entry.Timestamp = r.clock.Now().Add(time.Duration(r.seq) * time.Nanosecond)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListBySolicitation(_ context.Context, solicitationID string) ([]domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.HistoryEntry
	for _, e := range r.entries {
		if e.SolicitationID == solicitationID {
			result = append(result, e)
		}
	}
	return result, nil
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithinTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type fakeProtocolGen struct {
	mu    sync.Mutex
	seq   int64
	year  int
	calls int
}

func (g *fakeProtocolGen) Next(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.seq++
	return fmt.Sprintf("SOL-%d-%04d", g.year, g.seq), nil
}

type fixture struct {
	engine        *SolicitationService
	solicitations *fakeSolicitationRepo
	attachments   *fakeAttachmentRepo
	history       *fakeHistoryRepo
	users         *fakeUserRepo
	protocols     *fakeProtocolGen
	clock         *testClock
	published     *eventCapture
}

type eventCapture struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *eventCapture) record(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *eventCapture) all() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event{}, c.events...)
}

var startOf2025 = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := newTestClock(startOf2025)
	solicitations := newFakeSolicitationRepo(clk)
	attachments := &fakeAttachmentRepo{}
	history := newFakeHistoryRepo(clk)
	users := &fakeUserRepo{users: map[string]*domain.User{
		"user-7":  {ID: "user-7", Name: "Maria", Role: domain.RoleStudent},
		"admin-1": {ID: "admin-1", Name: "Admin", Role: domain.RoleAdmin},
	}}
	protocols := &fakeProtocolGen{year: 2025}

	dispatcher := events.NewInMemoryDispatcher()
	capture := &eventCapture{}
	dispatcher.Subscribe(events.EventSolicitationCreated, capture.record)
	dispatcher.Subscribe(events.EventStatusUpdated, capture.record)

	engine := NewSolicitationService(SolicitationDependencies{
		SolicitationRepo: solicitations,
		AttachmentRepo:   attachments,
		HistoryRepo:      history,
		UserRepo:         users,
		Protocols:        protocols,
		Dispatcher:       dispatcher,
		Tx:               fakeTxRunner{},
		Clock:            clk,
	})

	return &fixture{
		engine:        engine,
		solicitations: solicitations,
		attachments:   attachments,
		history:       history,
		users:         users,
		protocols:     protocols,
		clock:         clk,
		published:     capture,
	}
}

func (f *fixture) create(t *testing.T) *domain.Solicitation {
	t.Helper()
	s, err := f.engine.Create(context.Background(), CreateInput{
		Title:       "Help",
		Description: "need ramp",
		Category:    domain.CategoryLocomotionSupport,
		OwnerID:     "user-7",
	})
	require.NoError(t, err)
	return s
}

func TestCreate_AssignsProtocolAndOpensRequest(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	assert.Equal(t, "SOL-2025-0001", s.Protocol)
	assert.Regexp(t, `^SOL-2025-\d{4}$`, s.Protocol)
	assert.Equal(t, domain.StatusOpen, s.Status)
	assert.Nil(t, s.FirstResponseAt)

	remaining := s.TimeToTMRBreach(f.clock.Now())
	require.NotNil(t, remaining)
	assert.Equal(t, int64(14400), *remaining)

	history, err := f.engine.History(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.HistoryStatusChange, history[0].Kind)
	assert.Equal(t, "Solicitação criada", history[0].Description)

	published := f.published.all()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventSolicitationCreated, published[0].Type)
}

func TestCreate_ProtocolsAreUnique(t *testing.T) {
	f := newFixture(t)
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		s := f.create(t)
		assert.False(t, seen[s.Protocol], "duplicate protocol %s", s.Protocol)
		seen[s.Protocol] = true
	}
}

func TestCreate_PersistsAttachments(t *testing.T) {
	f := newFixture(t)
	s, err := f.engine.Create(context.Background(), CreateInput{
		Title:       "Help",
		Description: "need ramp",
		Category:    domain.CategoryLocomotionSupport,
		OwnerID:     "user-7",
		Attachments: []AttachmentInput{
			{Name: "laudo.pdf", URL: "http://localhost:3000/uploads/a.pdf", MimeType: "application/pdf"},
			{Name: "foto.png", URL: "http://localhost:3000/uploads/b.png", MimeType: "image/png"},
		},
	})
	require.NoError(t, err)
	require.Len(t, s.Attachments, 2)
	assert.Equal(t, "laudo.pdf", s.Attachments[0].Name)
}

func TestCreate_RejectsTooManyAttachmentsBeforePersisting(t *testing.T) {
	f := newFixture(t)
	four := make([]AttachmentInput, 4)
	for i := range four {
		four[i] = AttachmentInput{Name: fmt.Sprintf("f%d.pdf", i), URL: "u", MimeType: "application/pdf"}
	}

	_, err := f.engine.Create(context.Background(), CreateInput{
		Title:       "Help",
		Description: "need ramp",
		Category:    domain.CategoryLocomotionSupport,
		OwnerID:     "user-7",
		Attachments: four,
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	// Nothing reached any store and no protocol number was consumed.
	assert.Empty(t, f.solicitations.items)
	assert.Empty(t, f.attachments.items)
	assert.Empty(t, f.history.entries)
	assert.Zero(t, f.protocols.calls)
}

func TestCreate_RejectsBlankFieldsAndUnknownCategory(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Create(context.Background(), CreateInput{
		Title: "  ", Description: "x", Category: domain.CategoryOther, OwnerID: "user-7",
	})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = f.engine.Create(context.Background(), CreateInput{
		Title: "x", Description: "y", Category: "WRONG", OwnerID: "user-7",
	})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestAddComment_AppendsWithoutStatusChange(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	entry, err := f.engine.AddComment(context.Background(), s.ID, "any update?", "user-7")
	require.NoError(t, err)
	assert.Equal(t, domain.HistoryComment, entry.Kind)

	after, err := f.engine.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, after.Status)

	history, _ := f.engine.History(context.Background(), s.ID)
	assert.Len(t, history, 2)

	published := f.published.all()
	last := published[len(published)-1]
	assert.Equal(t, events.EventStatusUpdated, last.Type)
	assert.Equal(t, events.StatusUpdatedPayload{Status: "COMMENT_ADDED"}, last.Payload)
}

func TestAddComment_AllowedOnResolved(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	_, err := f.engine.Resolve(context.Background(), s.ID, "admin-1")
	require.NoError(t, err)

	_, err = f.engine.AddComment(context.Background(), s.ID, "late note", "user-7")
	assert.NoError(t, err)
}

func TestAddComment_UnknownSolicitation(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.AddComment(context.Background(), "missing", "hi", "user-7")
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestAssign_MovesToUnderReview(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	updated, err := f.engine.Assign(context.Background(), s.ID, "admin-1", "verificar rampa", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, updated.Status)

	history, _ := f.engine.History(context.Background(), s.ID)
	require.Len(t, history, 2)
	assert.Equal(t, "Atribuído: verificar rampa", history[1].Description)
	assert.Equal(t, domain.HistoryStatusChange, history[1].Kind)

	published := f.published.all()
	last := published[len(published)-1]
	assert.Equal(t, events.StatusUpdatedPayload{Status: "EM_ANALISE"}, last.Payload)
}

func TestAssign_UnknownAssigneeRejected(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	_, err := f.engine.Assign(context.Background(), s.ID, "ghost", "note", "admin-1")
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestFirstResponse_StampsOnceAndStopsCountdown(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	f.clock.Advance(60 * time.Second)
	updated, err := f.engine.FirstResponse(context.Background(), s.ID, "estamos avaliando", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInProgress, updated.Status)
	require.NotNil(t, updated.FirstResponseAt)
	firstStamp := *updated.FirstResponseAt
	assert.Equal(t, startOf2025.Add(60*time.Second), firstStamp)
	assert.Nil(t, updated.TimeToTMRBreach(f.clock.Now()))

	// A later repeat keeps the original timestamp but still appends history.
	f.clock.Advance(30 * time.Minute)
	again, err := f.engine.FirstResponse(context.Background(), s.ID, "reiterando", "admin-1")
	require.NoError(t, err)
	require.NotNil(t, again.FirstResponseAt)
	assert.Equal(t, firstStamp, *again.FirstResponseAt)

	history, _ := f.engine.History(context.Background(), s.ID)
	assert.Len(t, history, 3)
	assert.Equal(t, "Primeira resposta: estamos avaliando", history[1].Description)
	assert.Equal(t, domain.HistoryComment, history[1].Kind)
}

func TestResolve_TerminalAndIdempotentOnState(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	resolved, err := f.engine.Resolve(context.Background(), s.ID, "user-7")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, resolved.Status)

	again, err := f.engine.Resolve(context.Background(), s.ID, "user-7")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, again.Status)

	history, _ := f.engine.History(context.Background(), s.ID)
	assert.Len(t, history, 3)
	assert.Equal(t, "Solicitação marcada como resolvida", history[1].Description)
	assert.Equal(t, "Solicitação marcada como resolvida", history[2].Description)

	published := f.published.all()
	last := published[len(published)-1]
	assert.Equal(t, events.StatusUpdatedPayload{Status: "RESOLVIDO"}, last.Payload)
}

func TestConcurrentAssigns_BothSucceed(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Assign(context.Background(), s.ID, "admin-1", fmt.Sprintf("note-%d", i), "admin-1")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	after, err := f.engine.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, after.Status)

	history, _ := f.engine.History(context.Background(), s.ID)
	assert.Len(t, history, 3) // create + both assigns
}

func TestHistory_TimestampsNonDecreasing(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	for i := 0; i < 4; i++ {
		f.clock.Advance(time.Minute)
		_, err := f.engine.AddComment(context.Background(), s.ID, fmt.Sprintf("c%d", i), "user-7")
		require.NoError(t, err)
	}

	history, err := f.engine.History(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp))
	}
}

func TestLists_ScopeByOwnerAndStatus(t *testing.T) {
	f := newFixture(t)
	mine := f.create(t)

	other, err := f.engine.Create(context.Background(), CreateInput{
		Title: "Libras", Description: "aula de quinta", Category: domain.CategorySignLanguage, OwnerID: "admin-1",
	})
	require.NoError(t, err)

	_, err = f.engine.Resolve(context.Background(), other.ID, "admin-1")
	require.NoError(t, err)

	owned, err := f.engine.ListMine(context.Background(), "user-7")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, mine.ID, owned[0].ID)

	fresh, err := f.engine.ListNew(context.Background())
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, mine.ID, fresh[0].ID)

	resolved, err := f.engine.ListResolved(context.Background())
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, other.ID, resolved[0].ID)
}

func TestGet_MissingReturnsNilWithoutError(t *testing.T) {
	f := newFixture(t)
	s, err := f.engine.Get(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, s)
}
