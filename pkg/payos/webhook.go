package payos

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// WebhookBody is the envelope PayOS posts to the merchant webhook.
type WebhookBody struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// WebhookData is the signed part of a PayOS webhook.
type WebhookData struct {
	OrderCode              int64  `json:"orderCode"`
	Amount                 int64  `json:"amount"`
	Description            string `json:"description"`
	AccountNumber          string `json:"accountNumber"`
	Reference              string `json:"reference"`
	TransactionDateTime    string `json:"transactionDateTime"`
	Currency               string `json:"currency"`
	PaymentLinkID          string `json:"paymentLinkId"`
	Code                   string `json:"code"`
	Desc                   string `json:"desc"`
	CounterAccountBankID   string `json:"counterAccountBankId"`
	CounterAccountBankName string `json:"counterAccountBankName"`
	CounterAccountName     string `json:"counterAccountName"`
	CounterAccountNumber   string `json:"counterAccountNumber"`
	VirtualAccountName     string `json:"virtualAccountName"`
	VirtualAccountNumber   string `json:"virtualAccountNumber"`
}

// Paid reports whether PayOS confirmed the transfer.
func (d WebhookData) Paid() bool {
	return d.Code == successCode
}

var ErrInvalidSignature = errors.New("payos: invalid webhook signature")

// ParseWebhook decodes a raw webhook body without checking the signature.
func ParseWebhook(raw []byte) (*WebhookBody, error) {
	var body WebhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("payos: decode webhook: %w", err)
	}
	if len(body.Data) == 0 || string(body.Data) == "null" {
		return nil, errors.New("payos: webhook data missing")
	}
	return &body, nil
}

// VerifyWebhook checks the signature over the data object of a raw webhook.
func VerifyWebhook(checksumKey string, raw []byte) (*WebhookData, error) {
	body, err := ParseWebhook(raw)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(body.Data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("payos: decode webhook data: %w", err)
	}
	if !Verify(checksumKey, fields, body.Signature) {
		return nil, ErrInvalidSignature
	}
	var data WebhookData
	if err := json.Unmarshal(body.Data, &data); err != nil {
		return nil, fmt.Errorf("payos: decode webhook data: %w", err)
	}
	return &data, nil
}
