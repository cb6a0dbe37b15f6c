package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/faresafe/resale-backend/internal/pkg/apperror"
)

const checkoutPath = "/checkout/v1/sessions"

// CheckoutRequest describes one checkout session to open with the provider.
type CheckoutRequest struct {
	OrderID    uuid.UUID
	ListingID  uuid.UUID
	EscrowID   uuid.UUID
	BuyerID    uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Expiry     time.Duration
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider's answer: where to send the buyer and the
// payment reference every later webhook will carry.
type CheckoutSession struct {
	CheckoutURL string `json:"checkout_url"`
	PaymentRef  string `json:"payment_ref"`
}

// CheckoutCreator is the outbound port the order service depends on.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// Client talks to the payment provider's HTTP API with signed requests.
type Client struct {
	baseURL   string
	clientID  string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, clientID, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		clientID:  clientID,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateCheckout opens a checkout session scoped to the requested expiry.
// The order, listing and escrow ids travel as correlation metadata and come
// back on every webhook event.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	body := map[string]interface{}{
		"amount":             req.Amount.StringFixed(2),
		"currency":           req.Currency,
		"expires_in_seconds": int(req.Expiry.Seconds()),
		"success_url":        req.SuccessURL,
		"cancel_url":         req.CancelURL,
		"metadata": map[string]string{
			"order_id":   req.OrderID.String(),
			"listing_id": req.ListingID.String(),
			"escrow_id":  req.EscrowID.String(),
			"buyer_id":   req.BuyerID.String(),
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "encode checkout request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkoutPath, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "build checkout request")
	}
	for key, value := range c.signedHeaders(jsonBody) {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeExternal, "payment provider unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeExternal, "read checkout response")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apperror.Newf(apperror.ErrCodeExternal,
			"checkout session creation failed with status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeExternal, "parse checkout response")
	}
	if session.CheckoutURL == "" || session.PaymentRef == "" {
		return nil, apperror.New(apperror.ErrCodeExternal, "checkout response missing url or payment reference")
	}

	return &session, nil
}

// signedHeaders builds the provider's HMAC request headers over the body
// digest, a request id and a timestamp.
func (c *Client) signedHeaders(jsonBody []byte) map[string]string {
	requestID := uuid.New().String()
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05Z")

	digestSum := sha256.Sum256(jsonBody)
	digest := base64.StdEncoding.EncodeToString(digestSum[:])

	component := "Client-Id:" + c.clientID + "\n" +
		"Request-Id:" + requestID + "\n" +
		"Request-Timestamp:" + timestamp + "\n" +
		"Request-Target:" + checkoutPath + "\n" +
		"Digest:" + digest

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(component))
	signature := "HMACSHA256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"Client-Id":         c.clientID,
		"Request-Id":        requestID,
		"Request-Timestamp": timestamp,
		"Digest":            digest,
		"Signature":         signature,
		"Content-Type":      "application/json",
	}
}

var _ CheckoutCreator = (*Client)(nil)
