package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Zenkai92/Modelify/internal/projects/domain"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const projectColumns = `
id::text, owner_id, title, description, usage, element_count,
dimension_no_constraint, dimension_length, dimension_width, dimension_height,
detail_level, formats, deadline_type, deadline_date, budget_band,
status, price, coalesce(payment_session_id,''), created_at, updated_at`

// Create inserts the project and its attachments in one transaction. The id
// is server-assigned; status always starts at "en attente".
func (r *Repo) Create(ctx context.Context, ownerID string, f domain.Fields, atts []domain.Attachment) (*domain.Project, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `
insert into projects (
  owner_id, title, description, usage, element_count,
  dimension_no_constraint, dimension_length, dimension_width, dimension_height,
  detail_level, formats, deadline_type, deadline_date, budget_band, status
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
returning id::text, created_at, updated_at;
`
	var p domain.Project
	p.OwnerID = ownerID
	p.Fields = f
	p.Status = domain.StatusPending

	err = tx.QueryRow(ctx, q,
		ownerID, f.Title, f.Description, f.Use, string(f.ElementCount),
		f.Dimensions.NoConstraint, f.Dimensions.Length, f.Dimensions.Width, f.Dimensions.Height,
		string(f.DetailLevel), formatsToStrings(f.Formats),
		string(f.Deadline.Type), f.Deadline.Date, string(f.BudgetBand), string(domain.StatusPending),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	if err := insertAttachments(ctx, tx, p.ID, atts); err != nil {
		return nil, err
	}
	p.Attachments = atts

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReplaceFields is the owner edit: a full field replace. New attachments are
// appended; when replaceFiles is set the previous set is dropped first.
// The update only lands while the project is still pending.
func (r *Repo) ReplaceFields(ctx context.Context, id string, f domain.Fields, atts []domain.Attachment, replaceFiles bool) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	const q = `
update projects set
  title = $2, description = $3, usage = $4, element_count = $5,
  dimension_no_constraint = $6, dimension_length = $7, dimension_width = $8, dimension_height = $9,
  detail_level = $10, formats = $11, deadline_type = $12, deadline_date = $13, budget_band = $14,
  updated_at = now()
where id = $1::uuid and status = $15;
`
	ct, err := tx.Exec(ctx, q,
		id, f.Title, f.Description, f.Use, string(f.ElementCount),
		f.Dimensions.NoConstraint, f.Dimensions.Length, f.Dimensions.Width, f.Dimensions.Height,
		string(f.DetailLevel), formatsToStrings(f.Formats),
		string(f.Deadline.Type), f.Deadline.Date, string(f.BudgetBand),
		string(domain.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("update project: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	if replaceFiles {
		if _, err := tx.Exec(ctx, `delete from project_attachments where project_id = $1::uuid`, id); err != nil {
			return false, err
		}
	}
	if err := insertAttachments(ctx, tx, id, atts); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*domain.Project, error) {
	q := `select ` + projectColumns + ` from projects where id = $1::uuid;`

	p, err := scanProject(r.db.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}

	atts, err := r.attachments(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Attachments = atts
	return p, nil
}

// GetByPaymentSession resolves the project a checkout session belongs to.
func (r *Repo) GetByPaymentSession(ctx context.Context, sessionID string) (*domain.Project, error) {
	q := `select ` + projectColumns + ` from projects where payment_session_id = $1;`

	p, err := scanProject(r.db.QueryRow(ctx, q, sessionID))
	if err != nil {
		return nil, err
	}
	atts, err := r.attachments(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Attachments = atts
	return p, nil
}

// SetQuote attaches a price and moves to "devis_envoyé". The status guard is
// in the statement itself so a concurrent transition can never be overwritten.
func (r *Repo) SetQuote(ctx context.Context, id string, price decimal.Decimal, from []domain.Status) (bool, error) {
	const q = `
update projects
set price = $2, status = $3, updated_at = now()
where id = $1::uuid and status = any($4);
`
	ct, err := r.db.Exec(ctx, q, id, price, string(domain.StatusQuoted), statusesToStrings(from))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// SetPaymentSession records the checkout session and moves to
// "paiement_attente". It also lands while already awaiting payment with no
// live session, which is where an expired checkout leaves the project; the
// status does not change in that case.
func (r *Repo) SetPaymentSession(ctx context.Context, id, sessionID string) (bool, error) {
	const q = `
update projects
set payment_session_id = $2, status = $3, updated_at = now()
where id = $1::uuid
  and (status = $4 or (status = $3 and payment_session_id is null));
`
	ct, err := r.db.Exec(ctx, q, id, sessionID, string(domain.StatusAwaitingPay), string(domain.StatusQuoted))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// MarkPaid commits the provider-confirmed payment. Valid from either
// "paiement_attente" or "devis_envoyé" (confirmation can outrun the redirect).
func (r *Repo) MarkPaid(ctx context.Context, id string) (bool, error) {
	const q = `
update projects
set status = $2, updated_at = now()
where id = $1::uuid and status = any($3);
`
	from := []domain.Status{domain.StatusAwaitingPay, domain.StatusQuoted}
	ct, err := r.db.Exec(ctx, q, id, string(domain.StatusPaid), statusesToStrings(from))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// SetStatus is the compare-and-set used by the confirmed admin transitions.
func (r *Repo) SetStatus(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	const q = `
update projects
set status = $3, updated_at = now()
where id = $1::uuid and status = $2;
`
	ct, err := r.db.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// ClearPaymentSession drops a dead checkout session. The status stays
// "paiement_attente"; the owner starts a fresh checkout from there.
func (r *Repo) ClearPaymentSession(ctx context.Context, id string) (bool, error) {
	const q = `
update projects
set payment_session_id = null, updated_at = now()
where id = $1::uuid and status = $2;
`
	ct, err := r.db.Exec(ctx, q, id, string(domain.StatusAwaitingPay))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// ListByOwner returns the client dashboard projection, newest first.
func (r *Repo) ListByOwner(ctx context.Context, ownerID string, statuses []domain.Status) ([]domain.Project, error) {
	q := `select ` + projectColumns + `
from projects
where owner_id = $1 and ($2::text[] is null or status = any($2))
order by created_at desc;`

	var filter []string
	if len(statuses) > 0 {
		filter = statusesToStrings(statuses)
	}
	rows, err := r.db.Query(ctx, q, ownerID, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProjects(rows)
}

// ListAll is the admin projection: financially actionable statuses first
// (payé, then en attente, devis_envoyé, paiement_attente), newest first
// within equal priority.
func (r *Repo) ListAll(ctx context.Context, statuses []domain.Status) ([]domain.Project, error) {
	q := `select ` + projectColumns + `
from projects
where ($1::text[] is null or status = any($1))
order by case status
    when 'payé' then 1
    when 'en attente' then 2
    when 'devis_envoyé' then 3
    when 'paiement_attente' then 4
    else 10
  end,
  created_at desc;`

	var filter []string
	if len(statuses) > 0 {
		filter = statusesToStrings(statuses)
	}
	rows, err := r.db.Query(ctx, q, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProjects(rows)
}

// ListAwaitingPayment feeds the reconciliation sweep.
func (r *Repo) ListAwaitingPayment(ctx context.Context) ([]domain.Project, error) {
	q := `select ` + projectColumns + `
from projects
where status = $1 and payment_session_id is not null
order by updated_at asc;`

	rows, err := r.db.Query(ctx, q, string(domain.StatusAwaitingPay))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProjects(rows)
}

func (r *Repo) attachments(ctx context.Context, projectID string) ([]domain.Attachment, error) {
	const q = `
select id::text, url, kind, position
from project_attachments
where project_id = $1::uuid
order by position asc;
`
	rows, err := r.db.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Attachment, 0, 4)
	for rows.Next() {
		var a domain.Attachment
		var kind string
		if err := rows.Scan(&a.ID, &a.URL, &kind, &a.Position); err != nil {
			return nil, err
		}
		a.Kind = domain.AttachmentKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

func insertAttachments(ctx context.Context, tx pgx.Tx, projectID string, atts []domain.Attachment) error {
	const q = `
insert into project_attachments (id, project_id, url, kind, position)
values ($1::uuid, $2::uuid, $3, $4, $5);
`
	for _, a := range atts {
		if _, err := tx.Exec(ctx, q, a.ID, projectID, a.URL, string(a.Kind), a.Position); err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var p domain.Project
	var elementCount, detailLevel, deadlineType, budget, status string
	var formats []string
	var price decimal.NullDecimal

	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Use, &elementCount,
		&p.Dimensions.NoConstraint, &p.Dimensions.Length, &p.Dimensions.Width, &p.Dimensions.Height,
		&detailLevel, &formats, &deadlineType, &p.Deadline.Date, &budget,
		&status, &price, &p.PaymentSessionID, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	p.ElementCount = domain.ElementCount(elementCount)
	p.DetailLevel = domain.DetailLevel(detailLevel)
	p.Deadline.Type = domain.DeadlineType(deadlineType)
	p.BudgetBand = domain.BudgetBand(budget)
	p.Status = domain.Status(status)
	if price.Valid {
		p.Price = &price.Decimal
	}
	p.Formats = make([]domain.Format, 0, len(formats))
	for _, f := range formats {
		p.Formats = append(p.Formats, domain.Format(f))
	}
	return &p, nil
}

func collectProjects(rows pgx.Rows) ([]domain.Project, error) {
	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func formatsToStrings(fs []domain.Format) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, string(f))
	}
	return out
}

func statusesToStrings(ss []domain.Status) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, string(s))
	}
	return out
}
