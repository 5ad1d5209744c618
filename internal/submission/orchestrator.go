package submission

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/Zenkai92/Modelify/internal/files"
	"github.com/Zenkai92/Modelify/internal/logging"
	"github.com/Zenkai92/Modelify/internal/projects/domain"
	"github.com/Zenkai92/Modelify/internal/projects/service"
)

// Engine is the slice of the lifecycle engine the wizard drives. The wizard
// never mutates a project except through these.
type Engine interface {
	Submit(ctx context.Context, actor service.Actor, f domain.Fields, atts []domain.Attachment) (*domain.Project, error)
	Edit(ctx context.Context, actor service.Actor, id string, f domain.Fields, atts []domain.Attachment, replaceFiles bool) (*domain.Project, error)
	Detail(ctx context.Context, actor service.Actor, id string) (*domain.Project, error)
}

// Uploader stores one reference file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, scope, filename string, r io.Reader) (string, error)
}

// FileUpload is a reference file held until submit, then transmitted with the
// structured fields in one atomic request.
type FileUpload struct {
	Name    string
	Content io.Reader
}

// Orchestrator walks a caller through the wizard steps and performs exactly
// one record-store mutation, at submit.
type Orchestrator struct {
	drafts  *DraftStore
	engine  Engine
	uploads Uploader
}

func NewOrchestrator(drafts *DraftStore, engine Engine, uploads Uploader) *Orchestrator {
	return &Orchestrator{drafts: drafts, engine: engine, uploads: uploads}
}

// Start opens a draft. With a project id the wizard runs in edit mode:
// all steps are pre-populated from the existing project, which must belong
// to the actor and still be pending.
func (o *Orchestrator) Start(ctx context.Context, actor service.Actor, projectID string) (*Draft, error) {
	var initial domain.Fields
	completed := Step(0)

	if projectID != "" {
		p, err := o.engine.Detail(ctx, actor, projectID)
		if err != nil {
			return nil, err
		}
		if p.OwnerID != actor.ID {
			return nil, domain.ErrNotOwner
		}
		if p.Status != domain.StatusPending {
			return nil, &domain.TransitionError{From: p.Status, To: domain.StatusPending}
		}
		initial = p.Fields
		completed = stepCount // an existing project passes every gate already
	}

	d, err := o.drafts.New(ctx, actor.ID, projectID, initial)
	if err != nil {
		return nil, err
	}
	if completed > 0 {
		d.Completed = completed
		if err := o.drafts.Save(ctx, d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Advance applies one step's input and moves forward if its gate passes.
// Earlier, already-completed steps may be revisited; later ones may not be
// skipped to.
func (o *Orchestrator) Advance(ctx context.Context, actor service.Actor, draftID string, step Step, in StepInput) (*Draft, error) {
	d, err := o.owned(ctx, actor, draftID)
	if err != nil {
		return nil, err
	}

	if !step.Valid() || step > d.Completed+1 {
		return nil, &domain.ValidationError{Field: "step", Reason: "step not reachable yet"}
	}

	if err := apply(&d.Fields, step, in); err != nil {
		return nil, err
	}

	if step > d.Completed {
		d.Completed = step
	}
	if step < stepCount {
		d.Step = step + 1
	} else {
		d.Step = stepCount
	}

	if err := o.drafts.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Retreat steps back. It always succeeds and never discards collected data.
func (o *Orchestrator) Retreat(ctx context.Context, actor service.Actor, draftID string) (*Draft, error) {
	d, err := o.owned(ctx, actor, draftID)
	if err != nil {
		return nil, err
	}
	if d.Step > StepGeneral {
		d.Step--
	}
	if err := o.drafts.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Submit uploads the held files and performs the single create-or-update.
// On any failure the draft survives so the caller can retry without losing
// entered data.
func (o *Orchestrator) Submit(ctx context.Context, actor service.Actor, draftID string, uploads []FileUpload, replaceFiles bool) (*domain.Project, error) {
	logger := logging.FromContext(ctx)

	d, err := o.owned(ctx, actor, draftID)
	if err != nil {
		return nil, err
	}
	if d.Completed < stepCount {
		return nil, &domain.ValidationError{Field: "submission", Reason: "wizard is not finished"}
	}
	if err := d.Fields.Validate(); err != nil {
		return nil, err
	}

	scope := d.ProjectID
	if scope == "" {
		scope = d.ID
	}

	atts := make([]domain.Attachment, 0, len(uploads))
	for i, f := range uploads {
		kind, err := files.KindForFilename(f.Name)
		if err != nil {
			return nil, err
		}
		url, err := o.uploads.Upload(ctx, scope, f.Name, f.Content)
		if err != nil {
			return nil, err
		}
		atts = append(atts, domain.Attachment{
			ID:       uuid.New().String(),
			URL:      url,
			Kind:     kind,
			Position: i,
		})
	}

	var p *domain.Project
	if d.ProjectID != "" {
		p, err = o.engine.Edit(ctx, actor, d.ProjectID, d.Fields, atts, replaceFiles)
	} else {
		p, err = o.engine.Submit(ctx, actor, d.Fields, atts)
	}
	if err != nil {
		return nil, err
	}

	if derr := o.drafts.Delete(ctx, d.ID); derr != nil {
		logger.Warnf("submit_draft", "draft cleanup failed for draft=%s: %v", d.ID, derr)
	}
	return p, nil
}

func (o *Orchestrator) owned(ctx context.Context, actor service.Actor, draftID string) (*Draft, error) {
	d, err := o.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != actor.ID {
		return nil, domain.ErrNotOwner
	}
	return d, nil
}
