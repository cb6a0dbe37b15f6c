package dto

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse wraps a message and optional data.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PagedResponse wraps a page of items with the total match count.
type PagedResponse struct {
	Items  interface{} `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// WebhookAck is the acknowledgement the payment provider expects.
type WebhookAck struct {
	Received bool `json:"received"`
}
