package payment

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func webhookBody(eventType string, orderID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(
		`{"event_id":"evt_123","type":"%s","payment_ref":"pay_abc","metadata":{"order_id":"%s","listing_id":"%s","escrow_id":"%s"}}`,
		eventType, orderID, uuid.New(), uuid.New(),
	))
}

func TestVerifySignature_RoundTrip(t *testing.T) {
	body := webhookBody(EventCheckoutCompleted, uuid.New())
	sig := Sign("secret", body)

	assert.True(t, VerifySignature("secret", body, sig))
	assert.False(t, VerifySignature("other-secret", body, sig))
	assert.False(t, VerifySignature("secret", append(body, ' '), sig))
	assert.False(t, VerifySignature("secret", body, ""))
}

func TestParseWebhook_Valid(t *testing.T) {
	orderID := uuid.New()
	event, err := ParseWebhook(webhookBody(EventRefundIssued, orderID))

	assert.NoError(t, err)
	assert.Equal(t, "evt_123", event.EventID)
	assert.Equal(t, EventRefundIssued, event.Type)
	assert.Equal(t, "pay_abc", event.PaymentRef)
	assert.Equal(t, orderID, event.Metadata.OrderID)
}

func TestParseWebhook_MissingFields(t *testing.T) {
	_, err := ParseWebhook([]byte(`{"type":"checkout.completed"}`))
	assert.Error(t, err)

	_, err = ParseWebhook([]byte(`{"event_id":"evt_1","type":"checkout.completed","metadata":{}}`))
	assert.Error(t, err)

	_, err = ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}
