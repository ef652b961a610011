package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/DukeRupert/hirelane/internal/domain"
)

// maxJSONBody bounds JSON request bodies. Batch requests carry at most a few
// hundred ids.
const maxJSONBody = 1 << 20

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return domain.Invalid(op, "Content-Type must be application/json")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.TooLarge(op, "Request body too large")
		}
		return domain.Invalid(op, "Malformed JSON body")
	}
	return nil
}

// parseUUID parses a required id field.
func parseUUID(op, field, value string) (uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil, domain.Invalid(op, field+" is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, domain.Invalid(op, field+" must be a valid id")
	}
	return id, nil
}
