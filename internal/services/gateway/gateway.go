package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"ticket-market/internal/status"
	"ticket-market/models"
)

// Outcome is the normalized tri-state result of a payment attempt.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// OutcomeFromResultCode maps the gateway's numeric result code to the
// internal enum. Zero is the only success code; 7000, 7002 and 9000 are
// informational (transaction still in flight) and carry no terminal state.
func OutcomeFromResultCode(code int) Outcome {
	switch code {
	case 0:
		return OutcomeSuccess
	case 7000, 7002, 9000:
		return OutcomePending
	default:
		return OutcomeFailed
	}
}

// ProcessRequest is the method-independent payment request.
type ProcessRequest struct {
	PaymentID     string          `json:"payment_id"`
	TransactionID string          `json:"transaction_id"`
	Title         string          `json:"title"`
	Amount        decimal.Decimal `json:"amount"`
}

// ProcessResult is the uniform shape every method handler returns.
type ProcessResult struct {
	Outcome     Outcome `json:"outcome"`
	Reference   string  `json:"reference"`
	RedirectURL string  `json:"redirect_url,omitempty"`
}

// Processor handles exactly one payment method variant.
type Processor interface {
	// Method returns the payment method this processor serves.
	Method() models.PaymentMethod

	// Process executes or initiates the payment. Synchronous methods return a
	// terminal outcome; asynchronous ones return pending plus a redirect URL.
	Process(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
}

// Registry dispatches over the closed PaymentMethod set.
type Registry struct {
	processors map[models.PaymentMethod]Processor
}

// NewRegistry creates a registry with the given processors.
func NewRegistry(procs ...Processor) *Registry {
	r := &Registry{processors: make(map[models.PaymentMethod]Processor)}
	for _, p := range procs {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the processor for its method.
func (r *Registry) Register(p Processor) {
	r.processors[p.Method()] = p
}

// Get returns the processor for a method.
func (r *Registry) Get(method models.PaymentMethod) (Processor, error) {
	p, ok := r.processors[method]
	if !ok {
		return nil, status.ErrUnsupportedMethod
	}
	return p, nil
}

// Methods returns the registered payment methods.
func (r *Registry) Methods() []models.PaymentMethod {
	methods := make([]models.PaymentMethod, 0, len(r.processors))
	for m := range r.processors {
		methods = append(methods, m)
	}
	return methods
}
