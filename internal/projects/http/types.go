package http

import (
	"time"

	"github.com/Zenkai92/Modelify/internal/projects/domain"
)

type projectResponse struct {
	ID          string              `json:"id"`
	OwnerID     string              `json:"owner_id"`
	Status      domain.Status       `json:"status"`
	Price       *string             `json:"price"`
	Fields      domain.Fields       `json:"fields"`
	Attachments []domain.Attachment `json:"attachments"`
	Actions     []string            `json:"actions"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
}

// toProjectResponse renders a project for one viewer. The action list tells
// the client which buttons make sense, the server still re-checks every call.
func toProjectResponse(p *domain.Project, viewerIsOwner, viewerIsAdmin bool) projectResponse {
	resp := projectResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Status:      p.Status,
		Fields:      p.Fields,
		Attachments: p.Attachments,
		Actions:     actionsFor(p, viewerIsOwner, viewerIsAdmin),
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if p.Price != nil {
		s := p.Price.StringFixed(2)
		resp.Price = &s
	}
	return resp
}

func actionsFor(p *domain.Project, owner, admin bool) []string {
	actions := []string{}
	if owner {
		switch p.Status {
		case domain.StatusPending:
			actions = append(actions, "edit")
		case domain.StatusQuoted:
			actions = append(actions, "pay")
		}
	}
	if admin {
		switch p.Status {
		case domain.StatusPending, domain.StatusQuoted:
			actions = append(actions, "quote")
		case domain.StatusPaid:
			actions = append(actions, "process")
		case domain.StatusInProgress:
			actions = append(actions, "complete")
		}
	}
	return actions
}

func toProjectList(projects []domain.Project, viewerID string, admin bool) []projectResponse {
	out := make([]projectResponse, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		out = append(out, toProjectResponse(p, p.OwnerID == viewerID, admin))
	}
	return out
}
