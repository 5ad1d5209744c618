package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zenkai92/Modelify/internal/projects/domain"
	"github.com/Zenkai92/Modelify/internal/users"
)

// memStore mimics the SQL repo: every mutation carries its own status guard
// and reports whether a row was hit.
type memStore struct {
	seq      int
	projects map[string]*domain.Project
}

func newMemStore() *memStore {
	return &memStore{projects: make(map[string]*domain.Project)}
}

func (s *memStore) Create(_ context.Context, ownerID string, f domain.Fields, atts []domain.Attachment) (*domain.Project, error) {
	s.seq++
	p := &domain.Project{
		ID:          fmt.Sprintf("p-%d", s.seq),
		OwnerID:     ownerID,
		Fields:      f,
		Status:      domain.StatusPending,
		Attachments: atts,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	s.projects[p.ID] = p
	return s.copyOf(p), nil
}

func (s *memStore) Get(_ context.Context, id string) (*domain.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return s.copyOf(p), nil
}

func (s *memStore) GetByPaymentSession(_ context.Context, sessionID string) (*domain.Project, error) {
	for _, p := range s.projects {
		if p.PaymentSessionID == sessionID {
			return s.copyOf(p), nil
		}
	}
	return nil, domain.ErrProjectNotFound
}

func (s *memStore) ReplaceFields(_ context.Context, id string, f domain.Fields, atts []domain.Attachment, replaceFiles bool) (bool, error) {
	p, ok := s.projects[id]
	if !ok || p.Status != domain.StatusPending {
		return false, nil
	}
	p.Fields = f
	if replaceFiles {
		p.Attachments = nil
	}
	p.Attachments = append(p.Attachments, atts...)
	return true, nil
}

func (s *memStore) SetQuote(_ context.Context, id string, price decimal.Decimal, from []domain.Status) (bool, error) {
	p, ok := s.projects[id]
	if !ok || !statusIn(p.Status, from) {
		return false, nil
	}
	p.Price = &price
	p.Status = domain.StatusQuoted
	return true, nil
}

func (s *memStore) SetPaymentSession(_ context.Context, id, sessionID string) (bool, error) {
	p, ok := s.projects[id]
	if !ok {
		return false, nil
	}
	switch {
	case p.Status == domain.StatusQuoted:
		p.Status = domain.StatusAwaitingPay
	case p.Status == domain.StatusAwaitingPay && p.PaymentSessionID == "":
	default:
		return false, nil
	}
	p.PaymentSessionID = sessionID
	return true, nil
}

func (s *memStore) MarkPaid(_ context.Context, id string) (bool, error) {
	p, ok := s.projects[id]
	if !ok || !statusIn(p.Status, []domain.Status{domain.StatusAwaitingPay, domain.StatusQuoted}) {
		return false, nil
	}
	p.Status = domain.StatusPaid
	return true, nil
}

func (s *memStore) SetStatus(_ context.Context, id string, from, to domain.Status) (bool, error) {
	p, ok := s.projects[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (s *memStore) ClearPaymentSession(_ context.Context, id string) (bool, error) {
	p, ok := s.projects[id]
	if !ok || p.Status != domain.StatusAwaitingPay {
		return false, nil
	}
	p.PaymentSessionID = ""
	return true, nil
}

func (s *memStore) ListByOwner(_ context.Context, ownerID string, statuses []domain.Status) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range s.projects {
		if p.OwnerID != ownerID {
			continue
		}
		if len(statuses) > 0 && !statusIn(p.Status, statuses) {
			continue
		}
		out = append(out, *s.copyOf(p))
	}
	return out, nil
}

func (s *memStore) ListAll(_ context.Context, statuses []domain.Status) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range s.projects {
		if len(statuses) > 0 && !statusIn(p.Status, statuses) {
			continue
		}
		out = append(out, *s.copyOf(p))
	}
	return out, nil
}

func (s *memStore) ListAwaitingPayment(_ context.Context) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range s.projects {
		if p.Status == domain.StatusAwaitingPay && p.PaymentSessionID != "" {
			out = append(out, *s.copyOf(p))
		}
	}
	return out, nil
}

func (s *memStore) copyOf(p *domain.Project) *domain.Project {
	cp := *p
	return &cp
}

func statusIn(s domain.Status, set []domain.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// memGateway hands out sessions and lets the test flip their state.
type memGateway struct {
	seq      int
	sessions map[string]*SessionState
}

func newMemGateway() *memGateway {
	return &memGateway{sessions: make(map[string]*SessionState)}
}

func (g *memGateway) CreateCheckoutSession(_ context.Context, p CheckoutParams) (*CheckoutSession, error) {
	g.seq++
	id := fmt.Sprintf("cs_%d", g.seq)
	g.sessions[id] = &SessionState{ID: id, Status: SessionOpen, ProjectID: p.ProjectID}
	return &CheckoutSession{ID: id, URL: "https://pay.example/" + id}, nil
}

func (g *memGateway) GetSession(_ context.Context, sessionID string) (*SessionState, error) {
	st, ok := g.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("unknown session %s", sessionID)
	}
	return st, nil
}

func (g *memGateway) settle(sessionID string, status SessionStatus) {
	g.sessions[sessionID].Status = status
}

type fixture struct {
	store    *memStore
	gateway  *memGateway
	life     *Lifecycle
	owner    Actor
	stranger Actor
	admin    Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := newMemStore()
	gateway := newMemGateway()
	return &fixture{
		store:    store,
		gateway:  gateway,
		life:     NewLifecycle(store, gateway, NewConfirmStore(rdb, time.Minute)),
		owner:    Actor{ID: "uid-alice", Role: users.RoleIndividual},
		stranger: Actor{ID: "uid-bob", Role: users.RoleProfessional},
		admin:    Actor{ID: "uid-root", Role: users.RoleAdmin},
	}
}

func testFields() domain.Fields {
	l, w, h := 20.0, 10.0, 5.0
	return domain.Fields{
		Title:        "Boîtier capteur",
		Description:  "Boîtier étanche pour capteur de température extérieur.",
		ElementCount: domain.SinglePiece,
		Dimensions:   domain.Dimensions{Length: &l, Width: &w, Height: &h},
		DetailLevel:  domain.DetailStandard,
		Formats:      []domain.Format{domain.FormatSTL},
		Deadline:     domain.Deadline{Type: domain.DeadlineNone},
		BudgetBand:   domain.BudgetUnder100,
	}
}

func (f *fixture) submitted(t *testing.T) *domain.Project {
	t.Helper()
	p, err := f.life.Submit(context.Background(), f.owner, testFields(), nil)
	require.NoError(t, err)
	return p
}

func (f *fixture) quoted(t *testing.T) *domain.Project {
	t.Helper()
	p := f.submitted(t)
	p, err := f.life.Quote(context.Background(), f.admin, p.ID, decimal.NewFromInt(150))
	require.NoError(t, err)
	return p
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("new project starts pending without a price", func(t *testing.T) {
		p := f.submitted(t)
		assert.Equal(t, domain.StatusPending, p.Status)
		assert.Nil(t, p.Price)
		assert.Equal(t, f.owner.ID, p.OwnerID)
	})

	t.Run("invalid fields never reach the store", func(t *testing.T) {
		before := len(f.store.projects)
		bad := testFields()
		bad.Title = ""
		_, err := f.life.Submit(ctx, f.owner, bad, nil)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, f.store.projects, before)
	})
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("owner edits while pending", func(t *testing.T) {
		p := f.submitted(t)
		fields := testFields()
		fields.Title = "Boîtier capteur v2"
		got, err := f.life.Edit(ctx, f.owner, p.ID, fields, nil, false)
		require.NoError(t, err)
		assert.Equal(t, "Boîtier capteur v2", got.Title)
		assert.Equal(t, domain.StatusPending, got.Status)
	})

	t.Run("non owner is rejected and nothing changes", func(t *testing.T) {
		p := f.submitted(t)
		fields := testFields()
		fields.Title = "hijack"
		_, err := f.life.Edit(ctx, f.stranger, p.ID, fields, nil, false)
		assert.ErrorIs(t, err, domain.ErrNotOwner)

		got, err := f.life.Detail(ctx, f.owner, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Boîtier capteur", got.Title)
	})

	t.Run("edit after quote is rejected", func(t *testing.T) {
		p := f.quoted(t)
		_, err := f.life.Edit(ctx, f.owner, p.ID, testFields(), nil, false)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("admin quotes a pending project", func(t *testing.T) {
		p := f.submitted(t)
		got, err := f.life.Quote(ctx, f.admin, p.ID, decimal.RequireFromString("150.00"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusQuoted, got.Status)
		require.NotNil(t, got.Price)
		assert.Equal(t, "150.00", got.Price.StringFixed(2))
	})

	t.Run("re-quote overwrites the price while unanswered", func(t *testing.T) {
		p := f.quoted(t)
		got, err := f.life.Quote(ctx, f.admin, p.ID, decimal.NewFromInt(180))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusQuoted, got.Status)
		assert.Equal(t, "180.00", got.Price.StringFixed(2))
	})

	t.Run("non admin cannot quote", func(t *testing.T) {
		p := f.submitted(t)
		_, err := f.life.Quote(ctx, f.owner, p.ID, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, domain.ErrRoleForbidden)
	})

	t.Run("zero and negative prices rejected", func(t *testing.T) {
		p := f.submitted(t)
		_, err := f.life.Quote(ctx, f.admin, p.ID, decimal.Zero)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
		_, err = f.life.Quote(ctx, f.admin, p.ID, decimal.NewFromInt(-5))
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("quoting paid work is an invalid transition", func(t *testing.T) {
		p := f.quoted(t)
		f.store.projects[p.ID].Status = domain.StatusPaid
		_, err := f.life.Quote(ctx, f.admin, p.ID, decimal.NewFromInt(999))
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("initiate moves to awaiting payment and returns the redirect", func(t *testing.T) {
		f := newFixture(t)
		p := f.quoted(t)
		url, err := f.life.InitiatePayment(ctx, f.owner, p.ID)
		require.NoError(t, err)
		assert.Contains(t, url, "https://pay.example/")

		got, _ := f.life.Detail(ctx, f.owner, p.ID)
		assert.Equal(t, domain.StatusAwaitingPay, got.Status)
	})

	t.Run("only the owner can pay", func(t *testing.T) {
		f := newFixture(t)
		p := f.quoted(t)
		_, err := f.life.InitiatePayment(ctx, f.stranger, p.ID)
		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})

	t.Run("paying an unquoted project is rejected", func(t *testing.T) {
		f := newFixture(t)
		p := f.submitted(t)
		_, err := f.life.InitiatePayment(ctx, f.owner, p.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("return redirect alone does not commit", func(t *testing.T) {
		f := newFixture(t)
		p := f.quoted(t)
		_, err := f.life.InitiatePayment(ctx, f.owner, p.ID)
		require.NoError(t, err)
		sessionID := f.store.projects[p.ID].PaymentSessionID

		_, err = f.life.ConfirmPayment(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrPaymentPending)
		assert.Equal(t, domain.StatusAwaitingPay, f.store.projects[p.ID].Status)
	})

	t.Run("provider-confirmed session commits and repeats are idempotent", func(t *testing.T) {
		f := newFixture(t)
		p := f.quoted(t)
		_, err := f.life.InitiatePayment(ctx, f.owner, p.ID)
		require.NoError(t, err)
		sessionID := f.store.projects[p.ID].PaymentSessionID
		f.gateway.settle(sessionID, SessionPaid)

		got, err := f.life.ConfirmPayment(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, got.Status)

		// Webhook and redirect both land: the second confirmation is a no-op.
		got, err = f.life.ConfirmPayment(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, got.Status)
	})

	t.Run("reconcile settles paid and clears expired checkouts in place", func(t *testing.T) {
		f := newFixture(t)

		paid := f.quoted(t)
		_, err := f.life.InitiatePayment(ctx, f.owner, paid.ID)
		require.NoError(t, err)
		f.gateway.settle(f.store.projects[paid.ID].PaymentSessionID, SessionPaid)

		expired := f.quoted(t)
		_, err = f.life.InitiatePayment(ctx, f.owner, expired.ID)
		require.NoError(t, err)
		f.gateway.settle(f.store.projects[expired.ID].PaymentSessionID, SessionExpired)

		open := f.quoted(t)
		_, err = f.life.InitiatePayment(ctx, f.owner, open.ID)
		require.NoError(t, err)

		require.NoError(t, f.life.ReconcilePending(ctx))

		assert.Equal(t, domain.StatusPaid, f.store.projects[paid.ID].Status)
		// The expired checkout loses its session but the status never moves
		// backward.
		assert.Equal(t, domain.StatusAwaitingPay, f.store.projects[expired.ID].Status)
		assert.Empty(t, f.store.projects[expired.ID].PaymentSessionID)
		assert.Equal(t, domain.StatusAwaitingPay, f.store.projects[open.ID].Status)
	})

	t.Run("owner restarts checkout after an expired session was cleared", func(t *testing.T) {
		f := newFixture(t)
		p := f.quoted(t)
		_, err := f.life.InitiatePayment(ctx, f.owner, p.ID)
		require.NoError(t, err)
		f.gateway.settle(f.store.projects[p.ID].PaymentSessionID, SessionExpired)
		require.NoError(t, f.life.ReconcilePending(ctx))

		url, err := f.life.InitiatePayment(ctx, f.owner, p.ID)
		require.NoError(t, err)
		assert.Contains(t, url, "https://pay.example/")
		assert.Equal(t, domain.StatusAwaitingPay, f.store.projects[p.ID].Status)
		assert.NotEmpty(t, f.store.projects[p.ID].PaymentSessionID)
	})

	t.Run("restart is rejected while a session is still live", func(t *testing.T) {
		f := newFixture(t)
		p := f.quoted(t)
		_, err := f.life.InitiatePayment(ctx, f.owner, p.ID)
		require.NoError(t, err)
		first := f.store.projects[p.ID].PaymentSessionID

		_, err = f.life.InitiatePayment(ctx, f.owner, p.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, first, f.store.projects[p.ID].PaymentSessionID)
	})
}

func TestTwoPhaseTransitions(t *testing.T) {
	ctx := context.Background()

	paidProject := func(t *testing.T, f *fixture) *domain.Project {
		p := f.quoted(t)
		_, err := f.life.InitiatePayment(ctx, f.owner, p.ID)
		require.NoError(t, err)
		f.gateway.settle(f.store.projects[p.ID].PaymentSessionID, SessionPaid)
		p, err = f.life.ConfirmPayment(ctx, f.store.projects[p.ID].PaymentSessionID)
		require.NoError(t, err)
		return p
	}

	t.Run("propose mutates nothing until confirmed", func(t *testing.T) {
		f := newFixture(t)
		p := paidProject(t, f)

		pt, err := f.life.Propose(ctx, f.admin, p.ID, domain.StatusInProgress)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, f.store.projects[p.ID].Status)

		got, err := f.life.Confirm(ctx, f.admin, p.ID, pt.Token)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, got.Status)
	})

	t.Run("tokens are single use", func(t *testing.T) {
		f := newFixture(t)
		p := paidProject(t, f)

		pt, err := f.life.Propose(ctx, f.admin, p.ID, domain.StatusInProgress)
		require.NoError(t, err)
		_, err = f.life.Confirm(ctx, f.admin, p.ID, pt.Token)
		require.NoError(t, err)

		_, err = f.life.Confirm(ctx, f.admin, p.ID, pt.Token)
		assert.ErrorIs(t, err, ErrConfirmationExpired)
	})

	t.Run("double process: the stale dialog loses", func(t *testing.T) {
		f := newFixture(t)
		p := paidProject(t, f)

		first, err := f.life.Propose(ctx, f.admin, p.ID, domain.StatusInProgress)
		require.NoError(t, err)
		second, err := f.life.Propose(ctx, f.admin, p.ID, domain.StatusInProgress)
		require.NoError(t, err)

		_, err = f.life.Confirm(ctx, f.admin, p.ID, first.Token)
		require.NoError(t, err)

		_, err = f.life.Confirm(ctx, f.admin, p.ID, second.Token)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, domain.StatusInProgress, f.store.projects[p.ID].Status)
	})

	t.Run("token is bound to its project", func(t *testing.T) {
		f := newFixture(t)
		a := paidProject(t, f)
		b := paidProject(t, f)

		pt, err := f.life.Propose(ctx, f.admin, a.ID, domain.StatusInProgress)
		require.NoError(t, err)
		_, err = f.life.Confirm(ctx, f.admin, b.ID, pt.Token)
		assert.ErrorIs(t, err, ErrConfirmationExpired)
		assert.Equal(t, domain.StatusPaid, f.store.projects[b.ID].Status)
	})

	t.Run("only admins drive production", func(t *testing.T) {
		f := newFixture(t)
		p := paidProject(t, f)
		_, err := f.life.Propose(ctx, f.owner, p.ID, domain.StatusInProgress)
		assert.ErrorIs(t, err, domain.ErrRoleForbidden)
	})

	t.Run("complete requires in progress", func(t *testing.T) {
		f := newFixture(t)
		p := paidProject(t, f)
		_, err := f.life.Propose(ctx, f.admin, p.ID, domain.StatusDone)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestViews(t *testing.T) {
	ctx := context.Background()

	t.Run("detail is owner or admin only", func(t *testing.T) {
		f := newFixture(t)
		p := f.submitted(t)

		_, err := f.life.Detail(ctx, f.owner, p.ID)
		assert.NoError(t, err)
		_, err = f.life.Detail(ctx, f.admin, p.ID)
		assert.NoError(t, err)
		_, err = f.life.Detail(ctx, f.stranger, p.ID)
		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})

	t.Run("list mine filters by bucket", func(t *testing.T) {
		f := newFixture(t)
		f.submitted(t)
		f.quoted(t)

		all, err := f.life.ListMine(ctx, f.owner, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		pending, err := f.life.ListMine(ctx, f.owner, domain.BucketPending)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		done, err := f.life.ListMine(ctx, f.owner, domain.BucketCompleted)
		require.NoError(t, err)
		assert.Empty(t, done)

		_, err = f.life.ListMine(ctx, f.owner, domain.Bucket("archived"))
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("list all is admin only and rejects unknown statuses", func(t *testing.T) {
		f := newFixture(t)
		f.submitted(t)

		_, err := f.life.ListAll(ctx, f.owner, nil)
		assert.ErrorIs(t, err, domain.ErrRoleForbidden)

		got, err := f.life.ListAll(ctx, f.admin, nil)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		_, err = f.life.ListAll(ctx, f.admin, []domain.Status{"annulé"})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}
