package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "kayak/pkg/errors"
)

// DecodeJSON decodes a single JSON document from the request body into target.
// Numbers are kept as json.Number when target is a map.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	if err := dec.Decode(target); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return apperrors.New(apperrors.CodeInvalidInput, "Request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			return apperrors.InvalidInput("Request body cannot be empty")
		default:
			return apperrors.InvalidInput("Invalid JSON body: " + err.Error())
		}
	}

	if dec.More() {
		return apperrors.InvalidInput("Request body must contain a single JSON document")
	}

	return nil
}
