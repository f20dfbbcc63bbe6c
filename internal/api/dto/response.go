package dto

import "time"

// Response is the envelope every API response is wrapped in.
type Response struct {
	Message   string    `json:"message,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Success wraps data in a successful envelope.
func Success(status int, message string, data any) Response {
	return Response{
		Message:   message,
		Success:   true,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Failure builds an error envelope. details, when present, become the data.
func Failure(status int, code, message string, details map[string]any) Response {
	resp := Response{
		Message:   message,
		Success:   false,
		Error:     code,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
	if len(details) > 0 {
		resp.Data = details
	}
	return resp
}
