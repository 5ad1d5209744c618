package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zenkai92/Modelify/internal/projects/domain"
	"github.com/Zenkai92/Modelify/internal/projects/service"
	"github.com/Zenkai92/Modelify/internal/users"
)

type fakeEngine struct {
	projects map[string]*domain.Project
	submits  int
	edits    int
	fail     error
	lastAtts []domain.Attachment
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{projects: make(map[string]*domain.Project)}
}

func (e *fakeEngine) Submit(_ context.Context, actor service.Actor, f domain.Fields, atts []domain.Attachment) (*domain.Project, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	e.submits++
	e.lastAtts = atts
	p := &domain.Project{
		ID:          fmt.Sprintf("p-%d", e.submits),
		OwnerID:     actor.ID,
		Fields:      f,
		Status:      domain.StatusPending,
		Attachments: atts,
	}
	e.projects[p.ID] = p
	return p, nil
}

func (e *fakeEngine) Edit(_ context.Context, actor service.Actor, id string, f domain.Fields, atts []domain.Attachment, replaceFiles bool) (*domain.Project, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	p, ok := e.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	if p.OwnerID != actor.ID {
		return nil, domain.ErrNotOwner
	}
	e.edits++
	e.lastAtts = atts
	p.Fields = f
	if replaceFiles {
		p.Attachments = nil
	}
	p.Attachments = append(p.Attachments, atts...)
	return p, nil
}

func (e *fakeEngine) Detail(_ context.Context, actor service.Actor, id string) (*domain.Project, error) {
	p, ok := e.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	if p.OwnerID != actor.ID && !actor.Role.Admin() {
		return nil, domain.ErrNotOwner
	}
	return p, nil
}

type fakeUploader struct {
	uploaded []string
	fail     error
}

func (u *fakeUploader) Upload(_ context.Context, scope, filename string, r io.Reader) (string, error) {
	if u.fail != nil {
		return "", u.fail
	}
	io.Copy(io.Discard, r)
	u.uploaded = append(u.uploaded, filename)
	return "https://cdn.example/" + scope + "/" + filename, nil
}

type wizardFixture struct {
	engine   *fakeEngine
	uploader *fakeUploader
	drafts   *DraftStore
	orch     *Orchestrator
	owner    service.Actor
	stranger service.Actor
}

func newWizardFixture(t *testing.T) *wizardFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	engine := newFakeEngine()
	uploader := &fakeUploader{}
	drafts := NewDraftStore(rdb)
	return &wizardFixture{
		engine:   engine,
		uploader: uploader,
		drafts:   drafts,
		orch:     NewOrchestrator(drafts, engine, uploader),
		owner:    service.Actor{ID: "uid-alice", Role: users.RoleIndividual},
		stranger: service.Actor{ID: "uid-bob", Role: users.RoleIndividual},
	}
}

func generalIn() StepInput {
	return StepInput{General: &GeneralInput{
		Title:       "Figurine dragon",
		Description: "Dragon articulé pour impression résine.",
		Use:         "décoration",
	}}
}

func characteristicsIn() StepInput {
	l, w, h := 15.0, 10.0, 20.0
	return StepInput{Characteristics: &CharacteristicsInput{
		ElementCount: domain.MultiPiece,
		Dimensions:   domain.Dimensions{Length: &l, Width: &w, Height: &h},
		DetailLevel:  domain.DetailHD,
	}}
}

func formatsIn() StepInput {
	return StepInput{Formats: &FormatsInput{Formats: []domain.Format{domain.FormatSTL, domain.Format3MF}}}
}

func planningIn() StepInput {
	date := time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)
	return StepInput{Planning: &PlanningInput{
		Deadline:   domain.Deadline{Type: domain.DeadlineFlexible, Date: &date},
		BudgetBand: domain.Budget100To300,
	}}
}

func (f *wizardFixture) completeDraft(t *testing.T) *Draft {
	t.Helper()
	ctx := context.Background()

	d, err := f.orch.Start(ctx, f.owner, "")
	require.NoError(t, err)
	d, err = f.orch.Advance(ctx, f.owner, d.ID, StepGeneral, generalIn())
	require.NoError(t, err)
	d, err = f.orch.Advance(ctx, f.owner, d.ID, StepCharacteristics, characteristicsIn())
	require.NoError(t, err)
	d, err = f.orch.Advance(ctx, f.owner, d.ID, StepFormats, formatsIn())
	require.NoError(t, err)
	d, err = f.orch.Advance(ctx, f.owner, d.ID, StepPlanning, planningIn())
	require.NoError(t, err)
	return d
}

func TestWizardFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("steps advance in order and gates are enforced", func(t *testing.T) {
		f := newWizardFixture(t)
		d, err := f.orch.Start(ctx, f.owner, "")
		require.NoError(t, err)
		assert.Equal(t, StepGeneral, d.Step)

		// Skipping ahead is rejected.
		_, err = f.orch.Advance(ctx, f.owner, d.ID, StepFormats, formatsIn())
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "step", verr.Field)

		// An empty title fails the first gate.
		bad := generalIn()
		bad.General.Title = "  "
		_, err = f.orch.Advance(ctx, f.owner, d.ID, StepGeneral, bad)
		assert.ErrorAs(t, err, &verr)

		d, err = f.orch.Advance(ctx, f.owner, d.ID, StepGeneral, generalIn())
		require.NoError(t, err)
		assert.Equal(t, StepCharacteristics, d.Step)
		assert.Equal(t, StepGeneral, d.Completed)
	})

	t.Run("retreat keeps collected data", func(t *testing.T) {
		f := newWizardFixture(t)
		d, err := f.orch.Start(ctx, f.owner, "")
		require.NoError(t, err)
		_, err = f.orch.Advance(ctx, f.owner, d.ID, StepGeneral, generalIn())
		require.NoError(t, err)
		_, err = f.orch.Advance(ctx, f.owner, d.ID, StepCharacteristics, characteristicsIn())
		require.NoError(t, err)

		d, err = f.orch.Retreat(ctx, f.owner, d.ID)
		require.NoError(t, err)
		assert.Equal(t, StepCharacteristics, d.Step)
		assert.Equal(t, "Figurine dragon", d.Fields.Title)
		assert.Equal(t, domain.MultiPiece, d.Fields.ElementCount)

		// A completed earlier step may be redone without redoing later ones.
		redo := generalIn()
		redo.General.Title = "Figurine dragon v2"
		d, err = f.orch.Advance(ctx, f.owner, d.ID, StepGeneral, redo)
		require.NoError(t, err)
		assert.Equal(t, "Figurine dragon v2", d.Fields.Title)
		assert.Equal(t, StepCharacteristics, d.Completed)
	})

	t.Run("drafts are private to their owner", func(t *testing.T) {
		f := newWizardFixture(t)
		d, err := f.orch.Start(ctx, f.owner, "")
		require.NoError(t, err)

		_, err = f.orch.Advance(ctx, f.stranger, d.ID, StepGeneral, generalIn())
		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})
}

func TestWizardSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("submit creates once and deletes the draft", func(t *testing.T) {
		f := newWizardFixture(t)
		d := f.completeDraft(t)

		uploads := []FileUpload{
			{Name: "photo.jpg", Content: strings.NewReader("jpegdata")},
			{Name: "esquisse.stl", Content: strings.NewReader("stldata")},
		}
		p, err := f.orch.Submit(ctx, f.owner, d.ID, uploads, false)
		require.NoError(t, err)
		assert.Equal(t, 1, f.engine.submits)
		assert.Equal(t, domain.StatusPending, p.Status)

		require.Len(t, f.engine.lastAtts, 2)
		assert.Equal(t, domain.AttachmentImage, f.engine.lastAtts[0].Kind)
		assert.Equal(t, domain.AttachmentModel, f.engine.lastAtts[1].Kind)
		assert.Equal(t, 0, f.engine.lastAtts[0].Position)

		_, err = f.orch.Submit(ctx, f.owner, d.ID, nil, false)
		assert.ErrorIs(t, err, ErrDraftNotFound)
	})

	t.Run("unfinished wizard cannot submit", func(t *testing.T) {
		f := newWizardFixture(t)
		d, err := f.orch.Start(ctx, f.owner, "")
		require.NoError(t, err)
		_, err = f.orch.Advance(ctx, f.owner, d.ID, StepGeneral, generalIn())
		require.NoError(t, err)

		_, err = f.orch.Submit(ctx, f.owner, d.ID, nil, false)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, 0, f.engine.submits)
	})

	t.Run("unknown file type rejects before anything mutates", func(t *testing.T) {
		f := newWizardFixture(t)
		d := f.completeDraft(t)

		uploads := []FileUpload{{Name: "virus.exe", Content: strings.NewReader("nope")}}
		_, err := f.orch.Submit(ctx, f.owner, d.ID, uploads, false)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, 0, f.engine.submits)
		assert.Empty(t, f.uploader.uploaded)

		// The draft survives for a retry.
		_, err = f.drafts.Get(ctx, d.ID)
		assert.NoError(t, err)
	})

	t.Run("failed persistence keeps the draft", func(t *testing.T) {
		f := newWizardFixture(t)
		d := f.completeDraft(t)
		f.engine.fail = errors.New("db down")

		_, err := f.orch.Submit(ctx, f.owner, d.ID, nil, false)
		require.Error(t, err)

		got, err := f.drafts.Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)

		f.engine.fail = nil
		_, err = f.orch.Submit(ctx, f.owner, d.ID, nil, false)
		assert.NoError(t, err)
	})
}

func TestWizardEditMode(t *testing.T) {
	ctx := context.Background()

	t.Run("edit mode preloads fields and passes every gate", func(t *testing.T) {
		f := newWizardFixture(t)
		created := f.completeDraft(t)
		p, err := f.orch.Submit(ctx, f.owner, created.ID, nil, false)
		require.NoError(t, err)

		d, err := f.orch.Start(ctx, f.owner, p.ID)
		require.NoError(t, err)
		assert.Equal(t, stepCount, int(d.Completed))
		assert.Equal(t, "Figurine dragon", d.Fields.Title)

		redo := generalIn()
		redo.General.Title = "Figurine dragon finale"
		_, err = f.orch.Advance(ctx, f.owner, d.ID, StepGeneral, redo)
		require.NoError(t, err)

		got, err := f.orch.Submit(ctx, f.owner, d.ID, nil, false)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, "Figurine dragon finale", got.Title)
		assert.Equal(t, 1, f.engine.edits)
	})

	t.Run("edit mode requires a pending project", func(t *testing.T) {
		f := newWizardFixture(t)
		created := f.completeDraft(t)
		p, err := f.orch.Submit(ctx, f.owner, created.ID, nil, false)
		require.NoError(t, err)
		f.engine.projects[p.ID].Status = domain.StatusQuoted

		_, err = f.orch.Start(ctx, f.owner, p.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("edit mode requires ownership", func(t *testing.T) {
		f := newWizardFixture(t)
		created := f.completeDraft(t)
		p, err := f.orch.Submit(ctx, f.owner, created.ID, nil, false)
		require.NoError(t, err)

		_, err = f.orch.Start(ctx, f.stranger, p.ID)
		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})
}
