package pkg

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/marssoaebs/stripe-sandbox/pkg/common"
)

// Verifier valida a autenticidade de um webhook recebido do Stripe. A
// assinatura é recomputada sobre os bytes crus exatamente como chegaram;
// qualquer re-serialização do JSON antes daqui quebra a verificação.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret:    secret,
		tolerance: webhook.DefaultTolerance,
	}
}

// Verify retorna o evento tipado ou um erro de verificação (assinatura
// inválida, header malformado, timestamp fora da janela de tolerância,
// segredo errado). Em caso de erro o payload não deve ser processado.
func (v *Verifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithTolerance(payload, sigHeader, v.secret, v.tolerance)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("falha na verificação da assinatura do webhook: %w", err)
	}

	return event, nil
}

// EventKind é a enumeração fechada dos tipos de evento tratados. Tipos fora
// dela caem em KindUnknown e são confirmados sem ação.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindPaymentSucceeded
	KindPaymentFailed
	KindPaymentCanceled
	KindCustomerCreated
)

func (k EventKind) String() string {
	switch k {
	case KindPaymentSucceeded:
		return "payment-succeeded"
	case KindPaymentFailed:
		return "payment-failed"
	case KindPaymentCanceled:
		return "payment-canceled"
	case KindCustomerCreated:
		return "customer-created"
	default:
		return "unknown"
	}
}

func KindOf(eventType stripe.EventType) EventKind {
	switch eventType {
	case stripe.EventTypePaymentIntentSucceeded:
		return KindPaymentSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		return KindPaymentFailed
	case stripe.EventTypePaymentIntentCanceled:
		return KindPaymentCanceled
	case stripe.EventTypeCustomerCreated:
		return KindCustomerCreated
	default:
		return KindUnknown
	}
}

// Dispatcher roteia eventos verificados para os efeitos colaterais de cada
// tipo. A entrega do Stripe é at-least-once e sem garantia de ordem, então
// cada branch precisa tolerar repetição e não pode assumir que um evento
// anterior da mesma timeline já foi observado.
type Dispatcher struct {
	logger *zap.SugaredLogger
}

func NewDispatcher(logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Dispatch executa exatamente um branch por evento. Um branch nunca propaga
// erro de negócio; só um pânico inesperado vira erro, sinalizando ao caller
// que responda 500 para o Stripe reentregar.
func (d *Dispatcher) Dispatch(event stripe.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pânico ao despachar evento %s (%s): %v", event.ID, event.Type, r)
		}
	}()

	switch KindOf(event.Type) {
	case KindPaymentSucceeded:
		d.handlePaymentSucceeded(event)
	case KindPaymentFailed:
		d.handlePaymentFailed(event)
	case KindPaymentCanceled:
		d.handlePaymentCanceled(event)
	case KindCustomerCreated:
		d.handleCustomerCreated(event)
	case KindUnknown:
		d.logger.Infow("Evento não reconhecido, confirmando sem ação",
			"eventId", event.ID,
			"eventType", string(event.Type),
		)
	}

	return nil
}

// Em produção este branch dispararia fulfillment; aqui o efeito é o log.
func (d *Dispatcher) handlePaymentSucceeded(event stripe.Event) {
	pi, ok := d.decodePaymentIntent(event)
	if !ok {
		return
	}

	d.logger.Infow("Pagamento confirmado",
		"eventId", event.ID,
		"paymentIntentId", pi.ID,
		"amount", common.FormatAmount(pi.Amount, string(pi.Currency)),
	)
}

func (d *Dispatcher) handlePaymentFailed(event stripe.Event) {
	pi, ok := d.decodePaymentIntent(event)
	if !ok {
		return
	}

	var code, declineCode string
	if pi.LastPaymentError != nil {
		code = string(pi.LastPaymentError.Code)
		declineCode = string(pi.LastPaymentError.DeclineCode)
	}

	d.logger.Warnw("Pagamento falhou",
		"eventId", event.ID,
		"paymentIntentId", pi.ID,
		"code", code,
		"declineCode", declineCode,
	)
}

func (d *Dispatcher) handlePaymentCanceled(event stripe.Event) {
	pi, ok := d.decodePaymentIntent(event)
	if !ok {
		return
	}

	d.logger.Infow("Pagamento cancelado",
		"eventId", event.ID,
		"paymentIntentId", pi.ID,
	)
}

func (d *Dispatcher) handleCustomerCreated(event stripe.Event) {
	var cus stripe.Customer
	if err := json.Unmarshal(event.Data.Raw, &cus); err != nil {
		d.logger.Errorw("Erro ao decodificar Customer do evento",
			"eventId", event.ID,
			"error", err,
		)
		return
	}

	d.logger.Infow("Cliente criado",
		"eventId", event.ID,
		"customerId", cus.ID,
	)
}

// Falha de decodificação dentro de um branch é logada, nunca propagada: o
// evento já foi autenticado e reentregar o mesmo payload não mudaria nada.
func (d *Dispatcher) decodePaymentIntent(event stripe.Event) (stripe.PaymentIntent, bool) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		d.logger.Errorw("Erro ao decodificar PaymentIntent do evento",
			"eventId", event.ID,
			"error", err,
		)
		return stripe.PaymentIntent{}, false
	}

	return pi, true
}
