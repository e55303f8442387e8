package common

type CreatePaymentIntentRequest struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	CustomerID    string            `json:"customerId"`
	PaymentMethod string            `json:"paymentMethod"`
	Metadata      map[string]string `json:"metadata"`
}

type PaymentIntentResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

type CreateCustomerRequest struct {
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Phone    string            `json:"phone"`
	Metadata map[string]string `json:"metadata"`
}

type CustomerResponse struct {
	CustomerID   string `json:"customerId"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Created      int64  `json:"created"`
	DashboardURL string `json:"dashboardUrl"`
}

type LastPaymentError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	DeclineCode string `json:"declineCode,omitempty"`
}

type PaymentStatusResponse struct {
	PaymentIntentID string            `json:"paymentIntentId"`
	Status          string            `json:"status"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	LastError       *LastPaymentError `json:"lastError,omitempty"`
}

type WebhookAck struct {
	Received  bool   `json:"received"`
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
}
