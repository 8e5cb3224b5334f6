package momo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"ticket-market/internal/status"
)

// Hmac256 returns the hex-encoded HMAC-SHA256 of body under key.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// createRawSignature builds the canonical parameter string for an outbound
// payment request: fields alphabetically ordered by name, "&"-joined, per the
// gateway documentation.
func createRawSignature(accessKey, partnerCode, notifyURL, returnURL, requestType string, req *CreateRequest) string {
	pairs := []string{
		"accessKey=" + accessKey,
		fmt.Sprintf("amount=%d", req.Amount),
		"extraData=" + req.ExtraData,
		"ipnUrl=" + notifyURL,
		"orderId=" + req.OrderID,
		"orderInfo=" + req.OrderInfo,
		"partnerCode=" + partnerCode,
		"redirectUrl=" + returnURL,
		"requestId=" + req.RequestID,
		"requestType=" + requestType,
	}
	return strings.Join(pairs, "&")
}

// queryRawSignature builds the canonical string for a transaction-status query.
func queryRawSignature(accessKey, partnerCode, orderID, requestID string) string {
	return fmt.Sprintf("accessKey=%s&orderId=%s&partnerCode=%s&requestId=%s",
		accessKey, orderID, partnerCode, requestID)
}

// ipnRawSignature builds the documented field set for callback verification.
// Field order follows the gateway's IPN documentation.
func ipnRawSignature(accessKey string, p *IPNPayload) string {
	return fmt.Sprintf(
		"partnerCode=%s&orderId=%s&requestId=%s&amount=%d&orderInfo=%s&orderType=%s&transId=%d&resultCode=%d&message=%s&payType=%s&responseTime=%d&extraData=%s&accessKey=%s",
		p.PartnerCode, p.OrderID, p.RequestID, p.Amount, p.OrderInfo, p.OrderType,
		p.TransID, p.ResultCode, p.Message, p.PayType, p.ResponseTime, p.ExtraData,
		accessKey,
	)
}

// VerifyIPN recomputes the callback signature and compares it to the supplied
// one in constant time. A mismatch is a hard rejection; nothing downstream may
// mutate state before this passes.
func (c *Client) VerifyIPN(p *IPNPayload) error {
	if p.Signature == "" {
		return status.ErrInvalidSignature
	}

	expected := Hmac256([]byte(ipnRawSignature(c.accessKey, p)), []byte(c.secretKey))
	if !hmac.Equal([]byte(expected), []byte(p.Signature)) {
		return status.ErrInvalidSignature
	}

	return nil
}
