package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/inkawebai/inkaweb-backend/internal/payments"
)

// StripeHandler serves checkout and webhook endpoints.
type StripeHandler struct {
	db       *gorm.DB
	payments *payments.Service
}

// NewStripeHandler constructs a StripeHandler.
func NewStripeHandler(db *gorm.DB, paymentsService *payments.Service) *StripeHandler {
	return &StripeHandler{db: db, payments: paymentsService}
}

type checkoutRequest struct {
	Amount      *int64 `json:"amount"`
	Description string `json:"description"`
}

// CreateCheckoutSession opens a Stripe Checkout session for the current
// user and returns its redirect URL.
func (h *StripeHandler) CreateCheckoutSession(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req checkoutRequest
	_ = c.ShouldBindJSON(&req)

	amount := int64(payments.DefaultAmountCents)
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount < payments.MinimumAmountCents {
		amount = payments.MinimumAmountCents
	}
	description := req.Description
	if description == "" {
		description = payments.DefaultDescription
	}

	customerID, errCustomer := h.payments.EnsureCustomer(c.Request.Context(), h.db, user)
	if errCustomer != nil {
		if errors.Is(errCustomer, payments.ErrNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payments are not configured"})
			return
		}
		log.Errorf("ensure stripe customer failed: %v", errCustomer)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	url, errSession := h.payments.CreateCheckoutSession(c.Request.Context(), customerID, amount, description)
	if errSession != nil {
		log.Errorf("create checkout session failed: %v", errSession)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GetSession retrieves a checkout session by ID.
func (h *StripeHandler) GetSession(c *gin.Context) {
	session, errGet := h.payments.GetSession(c.Request.Context(), c.Param("id"))
	if errGet != nil {
		if errors.Is(errGet, payments.ErrNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payments are not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Webhook handles signed Stripe events. checkout.session.completed
// marks the payer premium and records the order.
func (h *StripeHandler) Webhook(c *gin.Context) {
	payload, errRead := c.GetRawData()
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read payload failed"})
		return
	}

	event, errVerify := h.payments.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if errVerify != nil {
		log.Warnf("stripe webhook signature verification failed: %v", errVerify)
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook signature verification failed"})
		return
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		completed, errParse := payments.CompletedSessionFromEvent(event)
		if errParse != nil {
			log.Errorf("parse checkout session event failed: %v", errParse)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
			return
		}
		if errApply := payments.ApplyCompletedSession(c.Request.Context(), h.db, completed); errApply != nil {
			log.Errorf("apply completed session failed: %v", errApply)
		}
	default:
		log.Debugf("unhandled stripe event type %s", event.Type)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
