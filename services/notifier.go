package services

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"

	"ticket-market/models"
)

// PubNubNotifier pushes settlement outcomes to the buyer's personal channel
// so clients waiting on a wallet redirect learn the result without polling.
type PubNubNotifier struct {
	pn *pubnub.PubNub
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{pn: pn}
}

func (n *PubNubNotifier) PaymentSettled(ctx context.Context, tx *models.Transaction, success bool) {
	if n.pn == nil {
		return
	}

	msgType := "payment_failed"
	if success {
		msgType = "payment_success"
	}

	channel := fmt.Sprintf("user-%s", tx.BuyerID)
	_, _, err := n.pn.Publish().
		Channel(channel).
		Message(map[string]interface{}{
			"type":           msgType,
			"transaction_id": tx.ID,
			"ticket_id":      tx.TicketID,
			"amount":         tx.Amount,
		}).
		Execute()
	if err != nil {
		slog.Warn("failed to publish settlement notification",
			"channel", channel, "transaction", tx.ID, "error", err)
	}
}
