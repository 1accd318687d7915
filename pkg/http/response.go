package http

import (
	"encoding/json"
	"net/http"

	apperrors "kayak/pkg/errors"
)

// Envelope is the single response shape of every flights endpoint.
type Envelope struct {
	Success    bool           `json:"success"`
	Data       any            `json:"data,omitempty"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	Code       string         `json:"code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Pagination *Pagination    `json:"pagination,omitempty"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func NewPagination(page, limit int, total int64) *Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError renders err as a failure envelope. Errors that are not AppErrors
// are reported as 500 without leaking their text.
func WriteError(w http.ResponseWriter, err error) error {
	if !apperrors.IsAppError(err) {
		return WriteJSON(w, http.StatusInternalServerError, Envelope{
			Success: false,
			Error:   "Internal server error",
			Code:    apperrors.CodeInternal,
		})
	}

	e := apperrors.AsAppError(err)
	status := e.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return WriteJSON(w, status, Envelope{
		Success: false,
		Error:   e.Message,
		Code:    e.Code,
		Details: e.Details,
	})
}

func WriteSuccess(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

func WriteSuccessMessage(w http.ResponseWriter, message string, data any) error {
	return WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func WriteCreated(w http.ResponseWriter, message string, data any) error {
	return WriteJSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

func WritePaginated(w http.ResponseWriter, data any, pagination *Pagination) error {
	return WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: pagination})
}

// WriteRejection is used by middleware that stops a request before it reaches a handler.
func WriteRejection(w http.ResponseWriter, statusCode int, code, message string) error {
	return WriteJSON(w, statusCode, Envelope{Success: false, Error: message, Code: code})
}
