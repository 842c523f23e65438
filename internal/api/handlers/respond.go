package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 64 << 10

var validate = validator.New()

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   logger.Sanitize(message),
	})
}

// statusFor maps a pipeline error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrNotFound), errors.Is(err, contracts.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrUnavailable):
		return http.StatusServiceUnavailable
	}

	switch contracts.KindOf(err) {
	case contracts.KindValidation:
		return http.StatusBadRequest
	case contracts.KindRateLimited:
		return http.StatusTooManyRequests
	case contracts.KindTimeout:
		return http.StatusGatewayTimeout
	case contracts.KindConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into dst and runs struct validation
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

// validationMessage turns validator errors into "field: rule" pairs
func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("invalid request (%s)", strings.Join(parts, ", "))
}
