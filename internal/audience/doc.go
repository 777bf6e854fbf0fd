// Package audience provides a client for the remote email-marketing API.
//
// The API manages subscribers and segments. Authentication uses a static
// API key sent with every request; transient failures (network errors,
// 429, 5xx) are retried with exponential backoff.
package audience
