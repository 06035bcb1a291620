// Admin subscription handlers.
//
//   - POST /admin/subscriptions            (register or renew)
//   - GET  /admin/subscriptions/:user_id   (status)
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-bot/internal/domain"
	"github.com/tbourn/go-coach-bot/internal/services"
)

// RegisterSubscriptionRequest is the JSON payload for registering a
// subscription. Days overrides the default window when positive.
type RegisterSubscriptionRequest struct {
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id"`
	Days    int    `json:"days"`
}

// SubscriptionResponse describes one subscription.
type SubscriptionResponse struct {
	UserID      string    `json:"user_id"`
	OrderID     string    `json:"order_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresAtMS int64     `json:"expires_at_ms"`
}

func toSubscriptionResponse(rec domain.EntitlementRecord) SubscriptionResponse {
	return SubscriptionResponse{
		UserID:      rec.Principal,
		OrderID:     rec.OrderReference,
		ExpiresAt:   rec.ExpiresAt.UTC(),
		ExpiresAtMS: rec.ExpiresAtMillis(),
	}
}

// RegisterSubscription godoc
// @ID          registerSubscription
// @Summary     Register or renew a subscription
// @Description Stores the user's subscription for `days` days (the configured window when 0 or omitted), replacing any previous one.
// @Tags        Subscriptions
// @Accept      json
// @Produce     json
//
// @Param       X-Admin-Token  header  string  false "Admin token (required when ADMIN_TOKEN is set)"
// @Param       body           body    handlers.RegisterSubscriptionRequest  true  "Registration payload"
//
// @Success     200  {object}  handlers.SubscriptionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing fields or negative days"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid admin token"
// @Failure     500  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /admin/subscriptions [post]
func (h *Handlers) RegisterSubscription(c *gin.Context) {
	var req RegisterSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.OrderID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id and order_id are required")
		return
	}
	if req.Days < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "days must not be negative")
		return
	}

	rec, err := h.subs.Register(c.Request.Context(), req.UserID, req.OrderID, req.Days)
	switch {
	case errors.Is(err, services.ErrInvalidRegistration):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeRegisterFailed, "could not store subscription")
		return
	}
	ok(c, http.StatusOK, toSubscriptionResponse(rec))
}

// GetSubscription godoc
// @ID          getSubscription
// @Summary     Show a user's active subscription
// @Tags        Subscriptions
// @Produce     json
//
// @Param       X-Admin-Token  header  string  false "Admin token (required when ADMIN_TOKEN is set)"
// @Param       user_id        path    string  true  "LINE user id"
//
// @Success     200  {object}  handlers.SubscriptionResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid admin token"
// @Failure     404  {object}  handlers.ErrorResponse  "No active subscription"
// @Failure     500  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /admin/subscriptions/{user_id} [get]
func (h *Handlers) GetSubscription(c *gin.Context) {
	rec, err := h.subs.Lookup(c.Request.Context(), c.Param("user_id"))
	switch {
	case errors.Is(err, services.ErrNotEntitled):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeLookupFailed, "could not read subscription")
		return
	}
	ok(c, http.StatusOK, toSubscriptionResponse(rec))
}
