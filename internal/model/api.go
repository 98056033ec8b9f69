package model

import "time"

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error API response.
func NewErrorResponse[T any](errMsg string) APIResponse[T] {
	return APIResponse[T]{
		Success: false,
		Error:   errMsg,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// GroupSummary holds the derived totals for a single group.
type GroupSummary struct {
	GroupID         string `json:"group_id"`
	Total           Cents  `json:"total_cents"`
	TotalDisplay    string `json:"total"`
	ItemCount       int    `json:"item_count"`
	PurchasedCount  int    `json:"purchased_count"`
	ProgressPercent int    `json:"progress_percent"`
}

// ListSummary holds the derived totals for a whole list. Percentages are
// rounded to the nearest whole number here, at the display edge; monetary
// totals carry both minor units and a two-decimal rendering.
type ListSummary struct {
	ListID                string         `json:"list_id"`
	GrandTotal            Cents          `json:"grand_total_cents"`
	GrandTotalDisplay     string         `json:"grand_total"`
	PurchasedTotal        Cents          `json:"purchased_total_cents"`
	PurchasedTotalDisplay string         `json:"purchased_total"`
	TotalItems            int            `json:"total_items"`
	TotalPurchased        int            `json:"total_purchased"`
	GlobalProgressPercent int            `json:"progress_percent"`
	Groups                []GroupSummary `json:"groups"`
}

// WebSocketMessage represents a message sent over a WebSocket connection.
type WebSocketMessage struct {
	Type      string       `json:"type"`
	Summary   *ListSummary `json:"summary,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// WebSocket message types.
const (
	WSMessageTypeSummary = "summary"
	WSMessageTypePing    = "ping"
	WSMessageTypePong    = "pong"
	WSMessageTypeError   = "error"
)

// NewSummaryMessage creates a WebSocket message carrying a list summary.
func NewSummaryMessage(summary *ListSummary) WebSocketMessage {
	return WebSocketMessage{
		Type:      WSMessageTypeSummary,
		Summary:   summary,
		Timestamp: time.Now().UTC(),
	}
}
