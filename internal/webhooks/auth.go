// Package webhooks is the inbound boundary for carrier and payment
// callbacks: authentication, replay suppression and dispatch.
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/printz/fulfillment-backend/pkg/config"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/payos"
)

// Authenticator decides whether a raw webhook delivery is genuine. It runs
// before any payload parsing.
type Authenticator interface {
	Authenticate(r *http.Request, body []byte) error
}

func unauthorized(msg string) error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, msg)
}

type Encoding int

const (
	Hex Encoding = iota
	Base64
)

// HMACAuthenticator expects the HMAC-SHA256 of the raw body in Header.
type HMACAuthenticator struct {
	Header   string
	Secret   string
	Encoding Encoding
}

func (a HMACAuthenticator) Authenticate(r *http.Request, body []byte) error {
	if a.Secret == "" {
		return unauthorized("webhook secret not configured")
	}
	got := strings.TrimSpace(r.Header.Get(a.Header))
	if got == "" {
		return unauthorized("missing webhook signature")
	}
	got = strings.TrimPrefix(got, "sha256=")
	mac := hmac.New(sha256.New, []byte(a.Secret))
	mac.Write(body)
	sum := mac.Sum(nil)
	var want string
	if a.Encoding == Base64 {
		want = base64.StdEncoding.EncodeToString(sum)
	} else {
		want = hex.EncodeToString(sum)
		got = strings.ToLower(got)
	}
	if !hmac.Equal([]byte(got), []byte(want)) {
		return unauthorized("invalid webhook signature")
	}
	return nil
}

// TokenAuthenticator expects a shared token in Header.
type TokenAuthenticator struct {
	Header string
	Token  string
}

func (a TokenAuthenticator) Authenticate(r *http.Request, _ []byte) error {
	if a.Token == "" {
		return unauthorized("webhook token not configured")
	}
	got := strings.TrimSpace(r.Header.Get(a.Header))
	if got == "" {
		return unauthorized("missing webhook token")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.Token)) != 1 {
		return unauthorized("invalid webhook token")
	}
	return nil
}

// PayOSAuthenticator verifies the signature PayOS computes over the data
// object of the body.
type PayOSAuthenticator struct {
	ChecksumKey string
}

func (a PayOSAuthenticator) Authenticate(_ *http.Request, body []byte) error {
	if a.ChecksumKey == "" {
		return unauthorized("payos checksum key not configured")
	}
	if _, err := payos.VerifyWebhook(a.ChecksumKey, body); err != nil {
		return unauthorized("invalid payos signature")
	}
	return nil
}

// Header names carriers use for webhook credentials.
const (
	HeaderGHNToken      = "Token"
	HeaderGHTKSignature = "X-GHTK-Signature"
	HeaderViettelToken  = "X-Viettel-Token"
	HeaderJTSignature   = "X-JT-Signature"
	HeaderNinjaVanHMAC  = "X-Ninjavan-Hmac-Sha256"
)

// CarrierAuthenticators builds one authenticator per carrier code. A carrier
// without a configured secret rejects every delivery.
func CarrierAuthenticators(cfg config.CarriersConfig) map[string]Authenticator {
	return map[string]Authenticator{
		config.CarrierGHN:         TokenAuthenticator{Header: HeaderGHNToken, Token: cfg.For(config.CarrierGHN).WebhookSecret},
		config.CarrierGHTK:        HMACAuthenticator{Header: HeaderGHTKSignature, Secret: cfg.For(config.CarrierGHTK).WebhookSecret},
		config.CarrierViettelPost: TokenAuthenticator{Header: HeaderViettelToken, Token: cfg.For(config.CarrierViettelPost).WebhookSecret},
		config.CarrierJT:          HMACAuthenticator{Header: HeaderJTSignature, Secret: cfg.For(config.CarrierJT).WebhookSecret},
		config.CarrierNinjaVan:    HMACAuthenticator{Header: HeaderNinjaVanHMAC, Secret: cfg.For(config.CarrierNinjaVan).WebhookSecret, Encoding: Base64},
	}
}
