package momo

import (
	"net/url"
	"strconv"
)

type Config struct {
	PartnerCode string `json:"partnerCode" mapstructure:"partner_code"`
	AccessKey   string `json:"accessKey" mapstructure:"access_key"`
	SecretKey   string `json:"secretKey" mapstructure:"secret_key"`
	Endpoint    string `json:"endpoint" mapstructure:"endpoint"`
	ReturnURL   string `json:"returnUrl" mapstructure:"return_url"`
	NotifyURL   string `json:"notifyUrl" mapstructure:"notify_url"`
}

// CreateRequest is the input for an outbound payment request. Amount is in
// minor currency units; the gateway only accepts integers.
type CreateRequest struct {
	OrderID   string
	RequestID string
	Amount    int64
	OrderInfo string
	ExtraData string
}

// CreateResponse mirrors the gateway's create-payment response body.
// ResultCode 0 means the request was accepted and PayURL is usable.
type CreateResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
}

// QueryResponse mirrors the gateway's transaction-status response body.
type QueryResponse struct {
	PartnerCode string `json:"partnerCode"`
	OrderID     string `json:"orderId"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	TransID     int64  `json:"transId"`
	ResultCode  int    `json:"resultCode"`
	Message     string `json:"message"`
}

// IPNPayload is the asynchronous server-to-server notification (and, with the
// same field set, the browser return redirect query string).
type IPNPayload struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// Succeeded reports whether the gateway settled the payment. Zero is the only
// success code; everything else is a failure.
func (p *IPNPayload) Succeeded() bool {
	return p.ResultCode == 0
}

// ParseReturnQuery builds an IPNPayload from the browser return-redirect query
// string. The redirect carries the same fields as the IPN.
func ParseReturnQuery(values url.Values) *IPNPayload {
	amount, _ := strconv.ParseInt(values.Get("amount"), 10, 64)
	transID, _ := strconv.ParseInt(values.Get("transId"), 10, 64)
	resultCode, _ := strconv.Atoi(values.Get("resultCode"))
	responseTime, _ := strconv.ParseInt(values.Get("responseTime"), 10, 64)

	return &IPNPayload{
		PartnerCode:  values.Get("partnerCode"),
		OrderID:      values.Get("orderId"),
		RequestID:    values.Get("requestId"),
		Amount:       amount,
		OrderInfo:    values.Get("orderInfo"),
		OrderType:    values.Get("orderType"),
		TransID:      transID,
		ResultCode:   resultCode,
		Message:      values.Get("message"),
		PayType:      values.Get("payType"),
		ResponseTime: responseTime,
		ExtraData:    values.Get("extraData"),
		Signature:    values.Get("signature"),
	}
}
