package audience

import (
	"fmt"
	"time"
)

// Subscriber is a single audience member.
type Subscriber struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Name      string            `json:"name,omitempty"`
	Status    string            `json:"status"` // "active", "unsubscribed", "bounced"
	Fields    map[string]string `json:"fields,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

// SubscriberList is a paginated subscriber listing.
type SubscriberList struct {
	Subscribers []Subscriber `json:"subscribers"`
	Total       int          `json:"total"`
	Page        int          `json:"page"`
	PerPage     int          `json:"per_page"`
}

// CreateSubscriberRequest is the payload for creating a subscriber.
type CreateSubscriberRequest struct {
	Email  string            `json:"email"`
	Name   string            `json:"name,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// UpdateSubscriberRequest is the payload for updating a subscriber.
// Zero-valued fields are left unchanged by the API.
type UpdateSubscriberRequest struct {
	Name   string            `json:"name,omitempty"`
	Status string            `json:"status,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Segment is a named group of subscribers.
type Segment struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	SubscriberCount int       `json:"subscriber_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// SegmentList is a segment listing.
type SegmentList struct {
	Segments []Segment `json:"segments"`
	Total    int       `json:"total"`
}

// CreateSegmentRequest is the payload for creating a segment.
type CreateSegmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// APIError describes a failed API call.
type APIError struct {
	Op         string // the operation, e.g. "subscribers.get"
	StatusCode int    // HTTP status, 0 for transport errors
	Message    string // server-provided message, if any
	Err        error  // underlying error, if any
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("audience %s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("audience %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("audience %s: status %d", e.Op, e.StatusCode)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the error is a 404 from the API.
func (e *APIError) NotFound() bool {
	return e.StatusCode == 404
}
