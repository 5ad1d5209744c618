package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Zenkai92/Modelify/internal/logging"
)

// principalFn decouples the handlers from the auth package, which imports
// this one for Role.
type principalFn func(c *gin.Context) (uid, email string, role Role, ok bool)

type Handler struct {
	repo      *Repo
	principal principalFn
	warmRole  func(c *gin.Context, uid string, role Role)
}

func NewHandler(repo *Repo, principal principalFn, warmRole func(c *gin.Context, uid string, role Role)) *Handler {
	return &Handler{repo: repo, principal: principal, warmRole: warmRole}
}

// RegisterMemberRoutes mounts everything except signup, which the caller
// mounts behind its own rate limit.
func (h *Handler) RegisterMemberRoutes(rg *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	rg.GET("/users/me", h.Me)
	rg.PUT("/users/me", h.UpdateContact)
	rg.GET("/users", requireAdmin, h.List)
}

type signupRequest struct {
	Role          Role    `json:"role"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	CompanyName   *string `json:"company_name"`
	StreetAddress string  `json:"street_address"`
	City          string  `json:"city"`
	PostalCode    string  `json:"postal_code"`
}

type contactRequest struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
}

// Signup creates the profile row for an already-authenticated identity.
// Identity and email come from the verified token, never from the body.
func (h *Handler) Signup(c *gin.Context) {
	uid, email, _, ok := h.principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	u := &User{
		ID:            uid,
		Email:         email,
		Role:          req.Role,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		CompanyName:   req.CompanyName,
		StreetAddress: req.StreetAddress,
		City:          req.City,
		PostalCode:    req.PostalCode,
	}
	if err := u.ValidateNew(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.Create(c.Request.Context(), u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "profile already exists"})
			return
		}
		logging.FromContext(c.Request.Context()).Error("user_signup", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if h.warmRole != nil {
		h.warmRole(c, u.ID, u.Role)
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) Me(c *gin.Context) {
	uid, _, _, ok := h.principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	u, err := h.repo.GetByID(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no profile for this account"})
			return
		}
		logging.FromContext(c.Request.Context()).Error("user_me", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// UpdateContact changes address fields only. Role and email are immutable
// through this endpoint.
func (h *Handler) UpdateContact(c *gin.Context) {
	uid, _, _, ok := h.principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	u, err := h.repo.UpdateContact(c.Request.Context(), uid, req.StreetAddress, req.City, req.PostalCode)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no profile for this account"})
			return
		}
		logging.FromContext(c.Request.Context()).Error("user_update", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		logging.FromContext(c.Request.Context()).Error("user_list", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list, "count": len(list)})
}
