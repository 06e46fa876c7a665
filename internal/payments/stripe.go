// Package payments wraps the Stripe one-time checkout flow: customer
// creation, hosted checkout sessions, and the completion webhook.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"github.com/inkawebai/inkaweb-backend/internal/models"
)

// Minimum charge accepted by the checkout flow, in cents.
const MinimumAmountCents = 50

// DefaultAmountCents is charged when the client sends no amount.
const DefaultAmountCents = 5000

// DefaultDescription labels a checkout when the client sends none.
const DefaultDescription = "Service Charge"

// Config holds Stripe credentials and redirect targets.
type Config struct {
	SecretKey     string
	WebhookSecret string
	ClientURL     string
}

// Service is the constructed-once Stripe gateway.
type Service struct {
	api           *client.API
	webhookSecret string
	clientURL     string
}

// New constructs a Service. The secret key may be empty; calls will then
// fail with ErrNotConfigured.
func New(cfg Config) *Service {
	svc := &Service{
		webhookSecret: cfg.WebhookSecret,
		clientURL:     strings.TrimRight(cfg.ClientURL, "/"),
	}
	if strings.TrimSpace(cfg.SecretKey) != "" {
		svc.api = &client.API{}
		svc.api.Init(cfg.SecretKey, nil)
	}
	return svc
}

// ErrNotConfigured indicates the Stripe secret key is missing.
var ErrNotConfigured = errors.New("stripe secret key not configured")

// EnsureCustomer returns the user's Stripe customer ID, creating the
// customer on first use and persisting the ID.
func (s *Service) EnsureCustomer(ctx context.Context, db *gorm.DB, user *models.User) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Username),
	}
	params.Context = ctx
	customer, errCreate := s.api.Customers.New(params)
	if errCreate != nil {
		return "", fmt.Errorf("create stripe customer: %w", errCreate)
	}

	customerID := customer.ID
	if errSave := db.WithContext(ctx).Model(user).
		Update("stripe_customer_id", customerID).Error; errSave != nil {
		return "", fmt.Errorf("persist stripe customer id: %w", errSave)
	}
	user.StripeCustomerID = &customerID
	return customerID, nil
}

// CreateCheckoutSession opens a hosted one-time payment session and returns
// its URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, customerID string, amountCents int64, description string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	if amountCents < MinimumAmountCents {
		amountCents = MinimumAmountCents
	}
	if strings.TrimSpace(description) == "" {
		description = DefaultDescription
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:           stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
					UnitAmount: stripe.Int64(amountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.clientURL + "/stripe/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.clientURL + "/stripe/cancel"),
	}
	params.Context = ctx

	session, errCreate := s.api.CheckoutSessions.New(params)
	if errCreate != nil {
		return "", fmt.Errorf("create checkout session: %w", errCreate)
	}
	return session.URL, nil
}

// GetSession retrieves a checkout session by ID.
func (s *Service) GetSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	if s.api == nil {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("customer")
	session, errGet := s.api.CheckoutSessions.Get(id, params)
	if errGet != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", errGet)
	}
	return session, nil
}

// ConstructEvent verifies the webhook signature and parses the event.
func (s *Service) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, s.webhookSecret)
}

// CompletedSession is the subset of a checkout session the webhook applies.
type CompletedSession struct {
	SessionID      string
	CustomerID     string
	AmountTotal    int64
	AmountSubtotal int64
}

// CompletedSessionFromEvent extracts the completed checkout session from a
// webhook event payload.
func CompletedSessionFromEvent(event stripe.Event) (CompletedSession, error) {
	var session stripe.CheckoutSession
	if errDecode := json.Unmarshal(event.Data.Raw, &session); errDecode != nil {
		return CompletedSession{}, fmt.Errorf("decode checkout session: %w", errDecode)
	}
	completed := CompletedSession{
		SessionID:      session.ID,
		AmountTotal:    session.AmountTotal,
		AmountSubtotal: session.AmountSubtotal,
	}
	if session.Customer != nil {
		completed.CustomerID = session.Customer.ID
	}
	return completed, nil
}

// ApplyCompletedSession marks the paying user premium and appends the order
// record. A session without a known customer is ignored.
func ApplyCompletedSession(ctx context.Context, db *gorm.DB, completed CompletedSession) error {
	if completed.CustomerID == "" {
		return nil
	}

	var user models.User
	if errFind := db.WithContext(ctx).
		Where("stripe_customer_id = ?", completed.CustomerID).
		First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("find user by customer id: %w", errFind)
	}

	description := "Checkout"
	if completed.AmountSubtotal > 0 {
		description = fmt.Sprintf("Paid $%.2f", float64(completed.AmountSubtotal)/100)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errPremium := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("is_premium", true).Error; errPremium != nil {
			return errPremium
		}
		order := models.Order{
			UserID:      user.ID,
			SessionID:   completed.SessionID,
			Amount:      completed.AmountTotal,
			Description: description,
		}
		return tx.Create(&order).Error
	})
}
