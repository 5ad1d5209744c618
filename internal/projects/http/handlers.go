package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Zenkai92/Modelify/internal/api/http/respond"
	"github.com/Zenkai92/Modelify/internal/auth"
	"github.com/Zenkai92/Modelify/internal/projects/domain"
	"github.com/Zenkai92/Modelify/internal/projects/service"
)

type Handler struct {
	lifecycle     *service.Lifecycle
	webhookSecret string
}

func NewHandler(lifecycle *service.Lifecycle, webhookSecret string) *Handler {
	return &Handler{lifecycle: lifecycle, webhookSecret: webhookSecret}
}

// RegisterRoutes mounts the authenticated project surface. Webhook and return
// endpoints are registered separately, they carry no user token.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	rg.GET("/projects", h.ListMine)
	rg.GET("/projects/:id", h.Detail)
	rg.POST("/projects/:id/pay", h.Pay)

	rg.GET("/admin/projects", requireAdmin, h.ListAll)
	rg.POST("/projects/:id/quote", requireAdmin, h.Quote)
	rg.POST("/projects/:id/transitions", requireAdmin, h.Propose)
	rg.POST("/projects/:id/transitions/confirm", requireAdmin, h.Confirm)
}

// RegisterPaymentRoutes mounts the provider-facing endpoints.
func (h *Handler) RegisterPaymentRoutes(rg *gin.RouterGroup) {
	rg.GET("/payments/return", h.PaymentReturn)
	rg.POST("/payments/webhook", h.PaymentWebhook)
}

func (h *Handler) ListMine(c *gin.Context) {
	actor, principal, ok := actorFrom(c)
	if !ok {
		return
	}

	bucket := domain.Bucket(c.Query("bucket"))
	list, err := h.lifecycle.ListMine(c.Request.Context(), actor, bucket)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"projects": toProjectList(list, actor.ID, principal.Admin()),
		"count":    len(list),
	})
}

func (h *Handler) ListAll(c *gin.Context) {
	actor, principal, ok := actorFrom(c)
	if !ok {
		return
	}

	var statuses []domain.Status
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, domain.Status(strings.TrimSpace(s)))
		}
	}

	list, err := h.lifecycle.ListAll(c.Request.Context(), actor, statuses)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"projects": toProjectList(list, actor.ID, principal.Admin()),
		"count":    len(list),
	})
}

func (h *Handler) Detail(c *gin.Context) {
	actor, principal, ok := actorFrom(c)
	if !ok {
		return
	}

	p, err := h.lifecycle.Detail(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(p, p.OwnerID == actor.ID, principal.Admin()))
}

type quoteRequest struct {
	Price string `json:"price"`
}

// Quote sets or replaces the price while the request is unanswered. The
// price travels as a string to keep cents exact.
func (h *Handler) Quote(c *gin.Context) {
	actor, _, ok := actorFrom(c)
	if !ok {
		return
	}

	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a decimal number"})
		return
	}

	p, err := h.lifecycle.Quote(c.Request.Context(), actor, c.Param("id"), price)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(p, false, true))
}

func (h *Handler) Pay(c *gin.Context) {
	actor, _, ok := actorFrom(c)
	if !ok {
		return
	}

	url, err := h.lifecycle.InitiatePayment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout_url": url})
}

type proposeRequest struct {
	To domain.Status `json:"to"`
}

func (h *Handler) Propose(c *gin.Context) {
	actor, _, ok := actorFrom(c)
	if !ok {
		return
	}

	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	pt, err := h.lifecycle.Propose(c.Request.Context(), actor, c.Param("id"), req.To)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, pt)
}

type confirmRequest struct {
	Token string `json:"token"`
}

func (h *Handler) Confirm(c *gin.Context) {
	actor, _, ok := actorFrom(c)
	if !ok {
		return
	}

	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	p, err := h.lifecycle.Confirm(c.Request.Context(), actor, c.Param("id"), req.Token)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(p, false, true))
}

// PaymentReturn handles the browser coming back from checkout. The redirect
// alone proves nothing: the provider is asked before anything commits, and a
// still-open session answers 202 so the client can poll.
func (h *Handler) PaymentReturn(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	p, err := h.lifecycle.ConfirmPayment(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentPending) {
			c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
			return
		}
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(p.Status), "project_id": p.ID})
}

type webhookEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// PaymentWebhook is the provider's server-to-server notification. It is
// authenticated with a shared secret compared in constant time.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	secret := c.GetHeader("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.webhookSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	var ev webhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if ev.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	p, err := h.lifecycle.ConfirmPayment(c.Request.Context(), ev.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentPending) {
			// Not a paid event, acknowledge and wait for the next one.
			c.JSON(http.StatusOK, gin.H{"received": true, "settled": false})
			return
		}
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "settled": true, "project_id": p.ID})
}

func actorFrom(c *gin.Context) (service.Actor, auth.Principal, bool) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return service.Actor{}, auth.Principal{}, false
	}
	return service.Actor{ID: p.UID, Role: p.Role}, p, true
}
