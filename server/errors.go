// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package server

// ErrorResponse is the error body for all endpoints and also implements the
// error interface.
type ErrorResponse struct {
	StatusCode int    `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

var (
	// ErrBadRequest is returned when the request is malformed.
	ErrBadRequest = &ErrorResponse{StatusCode: 400, Message: "bad request"}

	// ErrNotFound is returned when the requested object is not found.
	ErrNotFound = &ErrorResponse{StatusCode: 404, Message: "not found"}

	// ErrInternalError is returned when an internal error occurs.
	ErrInternalError = &ErrorResponse{StatusCode: 500, Message: "internal error"}
)
