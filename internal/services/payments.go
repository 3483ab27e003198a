package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
)

// PaymentProvider is the hosted checkout the storefront sells through.
type PaymentProvider interface {
	GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error)
	CreateSession(ctx context.Context, input *CheckoutSessionInput) (*models.PaymentSession, error)
}

// WebhookVerifier authenticates provider callbacks.
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

type CheckoutLine struct {
	GameID string
	Title  string
	Price  float64
}

type CheckoutSessionInput struct {
	UserID     string
	Lines      []CheckoutLine
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

// Completed reports whether the event means a checkout session may now be
// paid and should be reconciled.
func (e *WebhookEvent) Completed() bool {
	switch e.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return e.SessionID != ""
	}
	return false
}

type StripeProvider struct {
	api           *client.API
	webhookSecret string
	currency      string
}

var (
	_ PaymentProvider = (*StripeProvider)(nil)
	_ WebhookVerifier = (*StripeProvider)(nil)
)

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	return &StripeProvider{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		currency:      string(stripe.CurrencyUSD),
	}
}

func (p *StripeProvider) GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return toPaymentSession(session), nil
}

func (p *StripeProvider) CreateSession(ctx context.Context, input *CheckoutSessionInput) (*models.PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(input.SuccessURL),
		CancelURL:         stripe.String(input.CancelURL),
		ClientReferenceID: stripe.String(input.UserID),
	}
	params.Context = ctx

	for _, line := range input.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(p.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Title),
				},
				UnitAmount: stripe.Int64(models.CentsFromPrice(line.Price)),
			},
			Quantity: stripe.Int64(1),
		})
	}

	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return toPaymentSession(session), nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apierrors.ErrBadRequest.WithMessage("webhook signature verification failed").Wrap(err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil && len(event.Data.Raw) > 0 {
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err == nil {
			out.SessionID = session.ID
		}
	}
	return out, nil
}

func toPaymentSession(s *stripe.CheckoutSession) *models.PaymentSession {
	return &models.PaymentSession{
		ID:            s.ID,
		PaymentStatus: models.PaymentStatus(s.PaymentStatus),
		Metadata:      s.Metadata,
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		URL:           s.URL,
	}
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return apierrors.ErrPaymentNotFound.Wrap(err)
		}
		if stripeErr.HTTPStatusCode == http.StatusBadRequest {
			return apierrors.ErrBadRequest.WithMessage(stripeErr.Msg).Wrap(err)
		}
	}
	return apierrors.ErrPaymentProvider.Wrap(fmt.Errorf("stripe: %w", err))
}
