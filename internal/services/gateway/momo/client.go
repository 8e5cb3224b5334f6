package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ticket-market/internal/status"
	"ticket-market/utils"
)

const requestType = "payWithATM"

type Client struct {
	// partnerCode identifies the merchant account at the gateway.
	partnerCode string

	// accessKey is the public half of the credential pair.
	accessKey string

	// secretKey signs every outbound request and verifies every callback.
	secretKey string

	// endpoint is the create-payment API URL; the query URL derives from it.
	endpoint string

	returnURL string
	notifyURL string

	// cb trips after repeated gateway failures so a flapping gateway does not
	// pile up blocked purchase requests.
	cb *utils.CircuitBreaker

	// hc is the http client.
	hc *http.Client
}

// NewClient creates a gateway client from config.
func NewClient(cfg *Config) *Client {
	return &Client{
		partnerCode: cfg.PartnerCode,
		accessKey:   cfg.AccessKey,
		secretKey:   cfg.SecretKey,
		endpoint:    cfg.Endpoint,
		returnURL:   cfg.ReturnURL,
		notifyURL:   cfg.NotifyURL,

		cb: utils.NewCircuitBreaker("momo"),

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createBody struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Signature   string `json:"signature"`
	Lang        string `json:"lang"`
}

// CreatePaymentRequest signs and posts a payment request and returns the
// gateway response. Transport errors surface as ErrGatewayUnavailable; a
// nonzero ResultCode is returned to the caller for normalization, not as an
// error.
func (c *Client) CreatePaymentRequest(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	raw := createRawSignature(c.accessKey, c.partnerCode, c.notifyURL, c.returnURL, requestType, req)
	body := &createBody{
		PartnerCode: c.partnerCode,
		AccessKey:   c.accessKey,
		RequestID:   req.RequestID,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		OrderInfo:   req.OrderInfo,
		RedirectURL: c.returnURL,
		IpnURL:      c.notifyURL,
		ExtraData:   req.ExtraData,
		RequestType: requestType,
		Signature:   Hmac256([]byte(raw), []byte(c.secretKey)),
		Lang:        "vi",
	}

	var resp CreateResponse
	if err := c.post(ctx, c.endpoint, body, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

type queryBody struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Signature   string `json:"signature"`
	Lang        string `json:"lang"`
}

// QueryTransaction checks the gateway-side status of an order.
func (c *Client) QueryTransaction(ctx context.Context, orderID, requestID string) (*QueryResponse, error) {
	raw := queryRawSignature(c.accessKey, c.partnerCode, orderID, requestID)
	body := &queryBody{
		PartnerCode: c.partnerCode,
		AccessKey:   c.accessKey,
		RequestID:   requestID,
		OrderID:     orderID,
		Signature:   Hmac256([]byte(raw), []byte(c.secretKey)),
		Lang:        "vi",
	}

	queryURL := strings.Replace(c.endpoint, "/create", "/query", 1)

	var resp QueryResponse
	if err := c.post(ctx, queryURL, body, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("momo: marshal request: %w", err)
	}

	result, err := c.cb.Execute(ctx, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		var decoded json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrGatewayUnavailable, err)
	}

	if err := json.Unmarshal(result.(json.RawMessage), out); err != nil {
		return fmt.Errorf("momo: decode response: %w", err)
	}

	return nil
}
