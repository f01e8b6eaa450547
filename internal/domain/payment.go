package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Payment notification states reported by the external processor.
const (
	PaymentStateSuccess = "SUCCESS"
	PaymentStateFailed  = "FAILED"
)

// PaymentNotification is the webhook payload sent by the payment processor
// after a buyer scans the payment code. ReferenceID carries the order id the
// code was minted for. The notification is transient: it is verified, applied
// to the order, and only persisted through the audit trail.
type PaymentNotification struct {
	PaymentRequestID string `json:"paymentRequestId" validate:"required"`
	State            string `json:"state" validate:"required,oneof=SUCCESS FAILED"`
	Amount           int64  `json:"amount" validate:"gte=0"`
	Description      string `json:"description"`
	ReferenceID      string `json:"referenceId" validate:"required"`
	MerchantID       string `json:"merchantId"`
	ExtraData        string `json:"extraData"`
	Signature        string `json:"signature" validate:"required"`
}

// SignaturePayload returns the deterministic field concatenation the HMAC
// signature is computed over. Field order is fixed by the processor contract;
// changing it invalidates every signature.
func (n *PaymentNotification) SignaturePayload() string {
	return n.PaymentRequestID + n.State + strconv.FormatInt(n.Amount, 10) + n.ReferenceID + n.ExtraData
}

// Sign computes the hex-encoded HMAC-SHA256 signature of the notification
// using the shared webhook secret.
func (n *PaymentNotification) Sign(secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(n.SignaturePayload()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature and compares it to the supplied
// one in constant time.
func (n *PaymentNotification) VerifySignature(secret []byte) bool {
	expected := n.Sign(secret)
	return hmac.Equal([]byte(expected), []byte(n.Signature))
}
