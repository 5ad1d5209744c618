package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Zenkai92/Modelify/internal/projects/domain"
)

const (
	draftKeyPrefix = "wizard:draft:" // draft data: wizard:draft:{draft_id}
	draftTTL       = 24 * time.Hour
)

var ErrDraftNotFound = errors.New("draft not found")

// Draft is the wizard's in-flight state. Structured fields accumulate here;
// reference files stay with the client until submit.
type Draft struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"owner_id"`
	ProjectID string        `json:"project_id,omitempty"` // set in edit mode
	Step      Step          `json:"step"`                 // next step to complete
	Completed Step          `json:"completed"`            // highest gate passed so far
	Fields    domain.Fields `json:"fields"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DraftStore keeps drafts in Redis. A draft that sits untouched for a day
// simply expires.
type DraftStore struct {
	client *redis.Client
}

func NewDraftStore(client *redis.Client) *DraftStore {
	return &DraftStore{client: client}
}

func (s *DraftStore) New(ctx context.Context, ownerID, projectID string, initial domain.Fields) (*Draft, error) {
	now := time.Now().UTC()
	d := &Draft{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		ProjectID: projectID,
		Step:      StepGeneral,
		Fields:    initial,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DraftStore) Get(ctx context.Context, id string) (*Draft, error) {
	data, err := s.client.Get(ctx, draftKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	return &d, nil
}

func (s *DraftStore) Save(ctx context.Context, d *Draft) error {
	d.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKeyPrefix+d.ID, data, draftTTL).Err(); err != nil {
		return fmt.Errorf("store draft: %w", err)
	}
	return nil
}

func (s *DraftStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, draftKeyPrefix+id).Err()
}
