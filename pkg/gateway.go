package pkg

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

type CreatePaymentIntentInput struct {
	Amount        int64
	Currency      string
	CustomerID    string
	PaymentMethod string
	Metadata      map[string]string
}

type CreateCustomerInput struct {
	Email    string
	Name     string
	Phone    string
	Metadata map[string]string
}

// Gateway é a costura entre os handlers e o Stripe. Retentativas, backoff e
// timeouts ficam por conta do SDK; este código não adiciona os seus próprios.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, in CreatePaymentIntentInput) (*stripe.PaymentIntent, error)
	CreateCustomer(ctx context.Context, in CreateCustomerInput) (*stripe.Customer, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreatePaymentIntent(
	ctx context.Context,
	in CreatePaymentIntentInput,
) (*stripe.PaymentIntent, error) {
	params := buildPaymentIntentParams(ctx, in)
	params.SetIdempotencyKey(uuid.NewString())

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("falha ao criar PaymentIntent no Stripe: %w", err)
	}

	return pi, nil
}

func (g *StripeGateway) CreateCustomer(
	ctx context.Context,
	in CreateCustomerInput,
) (*stripe.Customer, error) {
	params := buildCustomerParams(ctx, in)
	params.SetIdempotencyKey(uuid.NewString())

	cus, err := g.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("falha ao criar Customer no Stripe: %w", err)
	}

	return cus, nil
}

func (g *StripeGateway) GetPaymentIntent(
	ctx context.Context,
	id string,
) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	}

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar PaymentIntent %s no Stripe: %w", id, err)
	}

	return pi, nil
}

// Com paymentMethod presente o intent é confirmado na criação, sem redirect;
// é o caminho que os cenários de teste do Stripe (pm_card_visa, pm_card_...)
// exercitam. Sem ele, fica aguardando confirmação do lado do cliente.
func buildPaymentIntentParams(
	ctx context.Context,
	in CreatePaymentIntentInput,
) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(in.Currency),
	}

	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	}

	for key, value := range in.Metadata {
		params.AddMetadata(key, value)
	}

	if in.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(in.PaymentMethod)
		params.Confirm = stripe.Bool(true)
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		}
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}

	return params
}

func buildCustomerParams(ctx context.Context, in CreateCustomerInput) *stripe.CustomerParams {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(in.Email),
	}

	if in.Name != "" {
		params.Name = stripe.String(in.Name)
	}

	if in.Phone != "" {
		params.Phone = stripe.String(in.Phone)
	}

	for key, value := range in.Metadata {
		params.AddMetadata(key, value)
	}

	return params
}
