package submission

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Zenkai92/Modelify/internal/api/http/respond"
	"github.com/Zenkai92/Modelify/internal/auth"
	"github.com/Zenkai92/Modelify/internal/projects/service"
)

// maxUploadBytes caps one submit request, reference models included.
const maxUploadBytes = 64 << 20

type Handler struct {
	orchestrator *Orchestrator
}

func NewHandler(o *Orchestrator) *Handler {
	return &Handler{orchestrator: o}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/drafts", h.Start)
	rg.GET("/drafts/:id", h.Get)
	rg.PUT("/drafts/:id/steps/:step", h.Advance)
	rg.POST("/drafts/:id/retreat", h.Retreat)
	rg.POST("/drafts/:id/submit", h.Submit)
}

type startRequest struct {
	ProjectID string `json:"project_id"`
}

type draftResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id,omitempty"`
	Step      Step      `json:"step"`
	Completed Step      `json:"completed"`
	Fields    stepState `json:"fields"`
}

type stepState struct {
	General         GeneralInput         `json:"general"`
	Characteristics CharacteristicsInput `json:"characteristics"`
	Formats         FormatsInput         `json:"formats"`
	Planning        PlanningInput        `json:"planning"`
}

func toDraftResponse(d *Draft) draftResponse {
	return draftResponse{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		Step:      d.Step,
		Completed: d.Completed,
		Fields: stepState{
			General:         GeneralInput{Title: d.Fields.Title, Description: d.Fields.Description, Use: d.Fields.Use},
			Characteristics: CharacteristicsInput{ElementCount: d.Fields.ElementCount, Dimensions: d.Fields.Dimensions, DetailLevel: d.Fields.DetailLevel},
			Formats:         FormatsInput{Formats: d.Fields.Formats},
			Planning:        PlanningInput{Deadline: d.Fields.Deadline, BudgetBand: d.Fields.BudgetBand},
		},
	}
}

func (h *Handler) Start(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req startRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return
		}
	}

	d, err := h.orchestrator.Start(c.Request.Context(), actor, req.ProjectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDraftResponse(d))
}

func (h *Handler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	d, err := h.orchestrator.owned(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toDraftResponse(d))
}

func (h *Handler) Advance(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	stepNum, err := strconv.Atoi(c.Param("step"))
	if err != nil || !Step(stepNum).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "step must be between 1 and 4"})
		return
	}

	var in StepInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	d, err := h.orchestrator.Advance(c.Request.Context(), actor, c.Param("id"), Step(stepNum), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toDraftResponse(d))
}

func (h *Handler) Retreat(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	d, err := h.orchestrator.Retreat(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toDraftResponse(d))
}

// Submit reads the multipart form, forwards the held files and performs the
// single create-or-update. "replace_files=true" swaps the attachment set on
// an edit instead of appending.
func (h *Handler) Submit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}

	replaceFiles := false
	if v := c.PostForm("replace_files"); v != "" {
		replaceFiles, err = strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "replace_files must be a boolean"})
			return
		}
	}

	var uploads []FileUpload
	var closers []interface{ Close() error }
	defer func() {
		for _, f := range closers {
			f.Close()
		}
	}()
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file: " + fh.Filename})
			return
		}
		closers = append(closers, f)
		uploads = append(uploads, FileUpload{Name: fh.Filename, Content: f})
	}

	p, err := h.orchestrator.Submit(c.Request.Context(), actor, c.Param("id"), uploads, replaceFiles)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": p.ID, "status": p.Status})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrDraftNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	respond.Error(c, err)
}

func actorFrom(c *gin.Context) (service.Actor, bool) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return service.Actor{}, false
	}
	return service.Actor{ID: p.UID, Role: p.Role}, true
}
