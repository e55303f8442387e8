package cmd

import (
	"context"
	"errors"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/marssoaebs/stripe-sandbox/pkg"
	"github.com/marssoaebs/stripe-sandbox/pkg/common"
)

// EventDispatcher é o que o handler de webhook precisa do dispatcher.
type EventDispatcher interface {
	Dispatch(event stripe.Event) error
}

type HttpServer struct {
	port       string
	mode       string
	app        *fiber.App
	logger     *zap.SugaredLogger
	gateway    pkg.Gateway
	verifier   *pkg.Verifier
	dispatcher EventDispatcher
}

func NewHttpServer(
	cfg common.Config,
	logger *zap.SugaredLogger,
	gateway pkg.Gateway,
	verifier *pkg.Verifier,
	dispatcher EventDispatcher,
) *HttpServer {
	app := fiber.New(fiber.Config{
		IdleTimeout: 5 * time.Second,
		BodyLimit:   1 << 20,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	s := &HttpServer{
		port:       ":" + cfg.Port,
		mode:       cfg.Mode(),
		app:        app,
		logger:     logger,
		gateway:    gateway,
		verifier:   verifier,
		dispatcher: dispatcher,
	}

	s.registerRoutes()

	return s
}

func (api *HttpServer) Run() error {
	api.logger.Info("Inicializando servidor HTTP na porta " + api.port)
	return api.app.Listen(api.port)
}

func (api *HttpServer) Shutdown(ctx context.Context) error {
	api.logger.Info("Desligando servidor HTTP...")
	return api.app.ShutdownWithContext(ctx)
}

func (s *HttpServer) registerRoutes() {
	s.app.Get("/", s.handleInfo)
	s.app.Post("/create-payment-intent", s.handleCreatePaymentIntent)
	s.app.Post("/create-customer", s.handleCreateCustomer)
	s.app.Get("/payment-status/:id", s.handleGetPaymentStatus)
	// A rota de webhook lê c.Body() direto: o Bind nunca é chamado aqui para
	// preservar os bytes crus que a verificação de assinatura exige.
	s.app.Post("/webhook", s.handleWebhook)
}

func (s *HttpServer) handleInfo(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "ok",
		"service": common.ServiceName,
		"mode":    s.mode,
		"message": "Servidor de demonstração do Stripe no ar",
	})
}

func (s *HttpServer) handleCreatePaymentIntent(c fiber.Ctx) error {
	var req common.CreatePaymentIntentRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "payload invalido", "type": "validation_error"})
	}

	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "O campo 'amount' deve ser um inteiro positivo na menor unidade da moeda",
			"type":  "validation_error",
		})
	}

	currency := req.Currency
	if currency == "" {
		currency = common.DefaultCurrency
	}

	pi, err := s.gateway.CreatePaymentIntent(c.Context(), pkg.CreatePaymentIntentInput{
		Amount:        req.Amount,
		Currency:      currency,
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return s.respondStripeError(c, err)
	}

	// O clientSecret vai só na resposta, nunca para o log.
	s.logger.Infow("PaymentIntent criado",
		"paymentIntentId", pi.ID,
		"status", string(pi.Status),
		"amount", common.FormatAmount(pi.Amount, string(pi.Currency)),
	)

	return c.Status(fiber.StatusOK).JSON(common.PaymentIntentResponse{
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
		Status:          string(pi.Status),
	})
}

func (s *HttpServer) handleCreateCustomer(c fiber.Ctx) error {
	var req common.CreateCustomerRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "payload invalido", "type": "validation_error"})
	}

	if strings.TrimSpace(req.Email) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "O campo 'email' é obrigatório",
			"type":  "validation_error",
		})
	}

	cus, err := s.gateway.CreateCustomer(c.Context(), pkg.CreateCustomerInput{
		Email:    req.Email,
		Name:     req.Name,
		Phone:    req.Phone,
		Metadata: req.Metadata,
	})
	if err != nil {
		return s.respondStripeError(c, err)
	}

	s.logger.Infow("Customer criado", "customerId", cus.ID)

	return c.Status(fiber.StatusOK).JSON(common.CustomerResponse{
		CustomerID:   cus.ID,
		Email:        cus.Email,
		Name:         cus.Name,
		Created:      cus.Created,
		DashboardURL: dashboardCustomerURL(cus),
	})
}

func (s *HttpServer) handleGetPaymentStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if !strings.HasPrefix(id, common.PaymentIntentPrefix) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid PaymentIntent ID: deve começar com '" + common.PaymentIntentPrefix + "'",
		})
	}

	pi, err := s.gateway.GetPaymentIntent(c.Context(), id)
	if err != nil {
		return s.respondStripeError(c, err)
	}

	resp := common.PaymentStatusResponse{
		PaymentIntentID: pi.ID,
		Status:          string(pi.Status),
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
	}

	if pi.LastPaymentError != nil {
		resp.LastError = &common.LastPaymentError{
			Code:        string(pi.LastPaymentError.Code),
			Message:     pi.LastPaymentError.Msg,
			DeclineCode: string(pi.LastPaymentError.DeclineCode),
		}
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (s *HttpServer) handleWebhook(c fiber.Ctx) error {
	payload := c.Body()
	sigHeader := c.Get("Stripe-Signature")

	event, err := s.verifier.Verify(payload, sigHeader)
	if err != nil {
		// 400 sinaliza payload fraudulento ou malformado; a política de
		// reentrega do Stripe decide o resto.
		s.logger.Warnw("Falha na verificação do webhook", "error", err)
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "Webhook Error: " + err.Error()})
	}

	if err := s.dispatcher.Dispatch(event); err != nil {
		// 500 sinaliza "reentregue": o evento é autêntico, nós que falhamos.
		s.logger.Errorw("Erro inesperado ao despachar evento",
			"eventId", event.ID,
			"eventType", string(event.Type),
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "falha ao processar evento"})
	}

	return c.Status(fiber.StatusOK).JSON(common.WebhookAck{
		Received:  true,
		EventType: string(event.Type),
		EventID:   event.ID,
	})
}

// respondStripeError mapeia a taxonomia de erros: rejeição do Stripe vira 400
// (ou 404 para recurso inexistente) com o código do próprio processador;
// qualquer outra falha vira 500.
func (s *HttpServer) respondStripeError(c fiber.Ctx, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		s.logger.Errorw("Stripe rejeitou a requisição",
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"declineCode", string(stripeErr.DeclineCode),
		)

		status := fiber.StatusBadRequest
		if stripeErr.Code == stripe.ErrorCodeResourceMissing {
			status = fiber.StatusNotFound
		}

		body := fiber.Map{
			"error": stripeErr.Msg,
			"type":  string(stripeErr.Type),
		}
		if stripeErr.Code != "" {
			body["code"] = string(stripeErr.Code)
		}
		if stripeErr.DeclineCode != "" {
			body["declineCode"] = string(stripeErr.DeclineCode)
		}

		return c.Status(status).JSON(body)
	}

	s.logger.Errorw("Erro inesperado ao chamar o Stripe", "error", err)
	return c.Status(fiber.StatusInternalServerError).
		JSON(fiber.Map{"error": "erro interno", "type": "api_error"})
}

func dashboardCustomerURL(cus *stripe.Customer) string {
	if cus.Livemode {
		return common.DashboardBaseURL + "/customers/" + cus.ID
	}
	return common.DashboardBaseURL + "/test/customers/" + cus.ID
}
