package gateway

import (
	"context"

	"ticket-market/models"
	"ticket-market/utils"
)

// syncProcessor settles immediately with a generated reference. Cash, bank
// transfer and credit card are simulated in this system; they share the
// settlement shape and differ only in the reference prefix.
type syncProcessor struct {
	method models.PaymentMethod
	prefix string
}

func NewCashProcessor() Processor {
	return &syncProcessor{method: models.MethodCash, prefix: "CASH_"}
}

func NewBankTransferProcessor() Processor {
	return &syncProcessor{method: models.MethodBankTransfer, prefix: "BANK_"}
}

func NewCreditCardProcessor() Processor {
	return &syncProcessor{method: models.MethodCreditCard, prefix: "CARD_"}
}

func (p *syncProcessor) Method() models.PaymentMethod {
	return p.method
}

func (p *syncProcessor) Process(_ context.Context, _ *ProcessRequest) (*ProcessResult, error) {
	code, err := utils.GenerateCode(4)
	if err != nil {
		return nil, err
	}

	return &ProcessResult{
		Outcome:   OutcomeSuccess,
		Reference: p.prefix + code,
	}, nil
}
