package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Webhook event types the engine consumes.
const (
	EventCheckoutCompleted = "checkout.completed"
	EventCheckoutExpired   = "checkout.expired"
	EventPaymentFailed     = "payment.failed"
	EventRefundIssued      = "refund.issued"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Payment-Signature"

// WebhookEvent is one signed delivery from the provider. Delivery is
// at-least-once and may arrive out of order; EventID dedupes, the metadata
// correlates back to our rows.
type WebhookEvent struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	PaymentRef string `json:"payment_ref"`
	Metadata   struct {
		OrderID   uuid.UUID `json:"order_id"`
		ListingID uuid.UUID `json:"listing_id"`
		EscrowID  uuid.UUID `json:"escrow_id"`
	} `json:"metadata"`
}

// ParseWebhook decodes the raw body into an event and checks the fields the
// router cannot work without.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("payment: decode webhook body: %w", err)
	}
	if event.EventID == "" || event.Type == "" {
		return nil, fmt.Errorf("payment: webhook missing event_id or type")
	}
	if event.Metadata.OrderID == uuid.Nil {
		return nil, fmt.Errorf("payment: webhook missing order correlation metadata")
	}
	return &event, nil
}

// VerifySignature checks the provider's HMAC over the raw body in constant
// time. It must run before any state is touched.
func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign produces the signature the provider would attach to body. Used by
// tests and the local provider stub.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
