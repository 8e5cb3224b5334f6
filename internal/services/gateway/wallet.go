package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ticket-market/internal/services/gateway/momo"
	"ticket-market/models"
)

// WalletClient is the slice of the momo client the wallet processor needs.
type WalletClient interface {
	CreatePaymentRequest(ctx context.Context, req *momo.CreateRequest) (*momo.CreateResponse, error)
}

// WalletProcessor initiates an asynchronous wallet payment. The buyer is
// redirected to the gateway; the terminal outcome arrives later over the IPN.
type WalletProcessor struct {
	client WalletClient
}

func NewWalletProcessor(client WalletClient) *WalletProcessor {
	return &WalletProcessor{client: client}
}

func (p *WalletProcessor) Method() models.PaymentMethod {
	return models.MethodWallet
}

func (p *WalletProcessor) Process(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	orderID := fmt.Sprintf("ORDER_%s_%s", req.PaymentID,
		strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")))

	resp, err := p.client.CreatePaymentRequest(ctx, &momo.CreateRequest{
		OrderID:   orderID,
		Amount:    req.Amount.IntPart(),
		OrderInfo: "Payment for " + req.Title,
		ExtraData: req.PaymentID,
	})
	if err != nil {
		return nil, err
	}

	if resp.ResultCode != 0 || resp.PayURL == "" {
		slog.Error("wallet payment initiation rejected",
			"orderId", orderID, "resultCode", resp.ResultCode, "message", resp.Message)
		return &ProcessResult{Outcome: OutcomeFailed, Reference: resp.OrderID}, nil
	}

	return &ProcessResult{
		Outcome:     OutcomePending,
		Reference:   resp.OrderID,
		RedirectURL: resp.PayURL,
	}, nil
}
