package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Zenkai92/Modelify/internal/logging"
	"github.com/Zenkai92/Modelify/internal/projects/domain"
	"github.com/Zenkai92/Modelify/internal/users"
)

// Store is the project record store as the lifecycle engine sees it. Every
// mutating method carries its own status guard so a lost race mutates nothing.
type Store interface {
	Create(ctx context.Context, ownerID string, f domain.Fields, atts []domain.Attachment) (*domain.Project, error)
	Get(ctx context.Context, id string) (*domain.Project, error)
	GetByPaymentSession(ctx context.Context, sessionID string) (*domain.Project, error)
	ReplaceFields(ctx context.Context, id string, f domain.Fields, atts []domain.Attachment, replaceFiles bool) (bool, error)
	SetQuote(ctx context.Context, id string, price decimal.Decimal, from []domain.Status) (bool, error)
	SetPaymentSession(ctx context.Context, id, sessionID string) (bool, error)
	MarkPaid(ctx context.Context, id string) (bool, error)
	SetStatus(ctx context.Context, id string, from, to domain.Status) (bool, error)
	ClearPaymentSession(ctx context.Context, id string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string, statuses []domain.Status) ([]domain.Project, error)
	ListAll(ctx context.Context, statuses []domain.Status) ([]domain.Project, error)
	ListAwaitingPayment(ctx context.Context) ([]domain.Project, error)
}

// CheckoutParams describes the one-off payment a checkout session collects.
type CheckoutParams struct {
	ProjectID    string
	ProjectTitle string
	Amount       decimal.Decimal
	CustomerID   string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type SessionStatus string

const (
	SessionOpen    SessionStatus = "open"
	SessionPaid    SessionStatus = "paid"
	SessionExpired SessionStatus = "expired"
)

type SessionState struct {
	ID        string
	Status    SessionStatus
	ProjectID string
}

// Gateway is the payment provider boundary. The engine never trusts a
// redirect: it always re-queries the session state before committing "payé".
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	GetSession(ctx context.Context, sessionID string) (*SessionState, error)
}

// Actor is the caller of a transition: identity plus the resolved role. Both
// are re-verified here on every attempt regardless of what the UI showed.
type Actor struct {
	ID   string
	Role users.Role
}

// Lifecycle is the project state machine and its authorization gates.
type Lifecycle struct {
	store    Store
	gateway  Gateway
	confirms *ConfirmStore
}

func NewLifecycle(store Store, gateway Gateway, confirms *ConfirmStore) *Lifecycle {
	return &Lifecycle{store: store, gateway: gateway, confirms: confirms}
}

// Submit creates a project in "en attente" owned by the actor.
func (s *Lifecycle) Submit(ctx context.Context, actor Actor, f domain.Fields, atts []domain.Attachment) (*domain.Project, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, actor.ID, f, atts)
}

// Edit is the owner's full field replace, allowed only while pending.
func (s *Lifecycle) Edit(ctx context.Context, actor Actor, id string, f domain.Fields, atts []domain.Attachment, replaceFiles bool) (*domain.Project, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != actor.ID {
		return nil, domain.ErrNotOwner
	}
	if p.Status != domain.StatusPending {
		return nil, &domain.TransitionError{From: p.Status, To: domain.StatusPending}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ok, err := s.store.ReplaceFields(ctx, id, f, atts, replaceFiles)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race: the project advanced between the read and the write.
		return nil, &domain.TransitionError{From: p.Status, To: domain.StatusPending}
	}
	return s.store.Get(ctx, id)
}

// Quote attaches a price and advances to "devis_envoyé". Re-quoting while
// already quoted overwrites the price as a new quote event.
func (s *Lifecycle) Quote(ctx context.Context, actor Actor, id string, price decimal.Decimal) (*domain.Project, error) {
	if !actor.Role.Admin() {
		return nil, domain.ErrRoleForbidden
	}
	if !price.IsPositive() {
		return nil, &domain.ValidationError{Field: "price", Reason: "must be a positive amount"}
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(domain.StatusQuoted) {
		return nil, &domain.TransitionError{From: p.Status, To: domain.StatusQuoted}
	}

	ok, err := s.store.SetQuote(ctx, id, price, []domain.Status{domain.StatusPending, domain.StatusQuoted})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.TransitionError{From: p.Status, To: domain.StatusQuoted}
	}
	return s.store.Get(ctx, id)
}

// InitiatePayment creates the provider checkout session for the owner and
// returns the redirect target. The status moves to "paiement_attente" only
// once the session exists. A project already awaiting payment may start a
// fresh checkout when its previous session expired and was cleared; the
// status does not move in that case.
func (s *Lifecycle) InitiatePayment(ctx context.Context, actor Actor, id string) (string, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if p.OwnerID != actor.ID {
		return "", domain.ErrNotOwner
	}
	switch {
	case p.Status.CanTransition(domain.StatusAwaitingPay):
	case p.Status == domain.StatusAwaitingPay && p.PaymentSessionID == "":
	default:
		return "", &domain.TransitionError{From: p.Status, To: domain.StatusAwaitingPay}
	}
	if p.Price == nil {
		return "", fmt.Errorf("project %s has no price despite being quoted", id)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		ProjectID:    p.ID,
		ProjectTitle: p.Title,
		Amount:       *p.Price,
		CustomerID:   p.OwnerID,
	})
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	ok, err := s.store.SetPaymentSession(ctx, id, session.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &domain.TransitionError{From: p.Status, To: domain.StatusAwaitingPay}
	}
	return session.URL, nil
}

// ConfirmPayment reconciles an external payment event (return redirect or
// webhook) against the provider. Only a provider-confirmed session commits
// "payé"; the redirect itself proves nothing. Idempotent once paid.
func (s *Lifecycle) ConfirmPayment(ctx context.Context, sessionID string) (*domain.Project, error) {
	state, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("look up checkout session: %w", err)
	}

	var p *domain.Project
	if state.ProjectID != "" {
		p, err = s.store.Get(ctx, state.ProjectID)
	} else {
		p, err = s.store.GetByPaymentSession(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if p.PaymentSessionID != "" && p.PaymentSessionID != sessionID {
		return nil, fmt.Errorf("session %s does not belong to project %s", sessionID, p.ID)
	}

	if state.Status != SessionPaid {
		return nil, domain.ErrPaymentPending
	}

	ok, err := s.store.MarkPaid(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Already reconciled by the webhook or the sweep.
		p, err = s.store.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		switch p.Status {
		case domain.StatusPaid, domain.StatusInProgress, domain.StatusDone:
			return p, nil
		}
		return nil, &domain.TransitionError{From: p.Status, To: domain.StatusPaid}
	}
	return s.store.Get(ctx, p.ID)
}

// Propose starts a two-phase admin transition (payé→en cours, en cours→
// terminé). Nothing mutates here: the returned token must come back through
// Confirm. These edges have no reverse, hence the extra step.
func (s *Lifecycle) Propose(ctx context.Context, actor Actor, id string, to domain.Status) (*PendingTransition, error) {
	if !actor.Role.Admin() {
		return nil, domain.ErrRoleForbidden
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch to {
	case domain.StatusInProgress, domain.StatusDone:
	default:
		return nil, &domain.TransitionError{From: p.Status, To: to}
	}
	if !p.Status.CanTransition(to) {
		return nil, &domain.TransitionError{From: p.Status, To: to}
	}

	return s.confirms.Issue(ctx, id, p.Status, to)
}

// Confirm commits a proposed transition. The token binds project and edge;
// anything stale or mismatched rejects without mutation.
func (s *Lifecycle) Confirm(ctx context.Context, actor Actor, id, token string) (*domain.Project, error) {
	if !actor.Role.Admin() {
		return nil, domain.ErrRoleForbidden
	}

	pt, err := s.confirms.Take(ctx, token)
	if err != nil {
		return nil, err
	}
	if pt.ProjectID != id {
		return nil, ErrConfirmationExpired
	}

	ok, err := s.store.SetStatus(ctx, id, pt.From, pt.To)
	if err != nil {
		return nil, err
	}
	if !ok {
		p, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &domain.TransitionError{From: p.Status, To: pt.To}
	}
	return s.store.Get(ctx, id)
}

// Detail returns a project to its owner or to an admin.
func (s *Lifecycle) Detail(ctx context.Context, actor Actor, id string) (*domain.Project, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != actor.ID && !actor.Role.Admin() {
		return nil, domain.ErrNotOwner
	}
	return p, nil
}

// ListMine is the client dashboard projection.
func (s *Lifecycle) ListMine(ctx context.Context, actor Actor, bucket domain.Bucket) ([]domain.Project, error) {
	var statuses []domain.Status
	if bucket != "" {
		statuses = bucket.Statuses()
		if statuses == nil {
			return nil, &domain.ValidationError{Field: "bucket", Reason: "unknown bucket"}
		}
	}
	return s.store.ListByOwner(ctx, actor.ID, statuses)
}

// ListAll is the admin projection with the action-priority sort.
func (s *Lifecycle) ListAll(ctx context.Context, actor Actor, statuses []domain.Status) ([]domain.Project, error) {
	if !actor.Role.Admin() {
		return nil, domain.ErrRoleForbidden
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(st)}
		}
	}
	return s.store.ListAll(ctx, statuses)
}

// ReconcilePending sweeps every project waiting on a checkout session and
// settles it from the provider's answer: paid commits, an expired session is
// cleared so the owner can start a fresh checkout, open is left alone. The
// status never moves backward. Safe to run repeatedly.
func (s *Lifecycle) ReconcilePending(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	pending, err := s.store.ListAwaitingPayment(ctx)
	if err != nil {
		return fmt.Errorf("list awaiting payment: %w", err)
	}

	for _, p := range pending {
		state, err := s.gateway.GetSession(ctx, p.PaymentSessionID)
		if err != nil {
			logger.Warnf("reconcile_payment", "session lookup failed for project=%s: %v", p.ID, err)
			continue
		}
		switch state.Status {
		case SessionPaid:
			if _, err := s.store.MarkPaid(ctx, p.ID); err != nil {
				logger.Warnf("reconcile_payment", "mark paid failed for project=%s: %v", p.ID, err)
			} else {
				logger.Infof("reconcile_payment", "project=%s settled as paid", p.ID)
			}
		case SessionExpired:
			if _, err := s.store.ClearPaymentSession(ctx, p.ID); err != nil {
				logger.Warnf("reconcile_payment", "session clear failed for project=%s: %v", p.ID, err)
			} else {
				logger.Infof("reconcile_payment", "project=%s checkout expired, session cleared", p.ID)
			}
		}
	}
	return nil
}
