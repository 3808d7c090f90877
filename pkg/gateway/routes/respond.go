package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/logger"
	"github.com/mediconnect/platform/pkg/gateway/auth"
	"github.com/mediconnect/platform/pkg/gateway/middleware"
	"github.com/sirupsen/logrus"
)

type messageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, messageResponse{Message: message})
}

// respondError maps err through apperr. Causes of 5xx responses are logged
// and never sent to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"path":       r.URL.Path,
			"request_id": r.Header.Get(middleware.RequestIDHeader),
		}).Error("request failed")
	}
	respondMessage(w, status, apperr.PublicMessage(err))
}

// decodeJSON rejects unreadable bodies with a validation error.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.NewValidationError("Request body too large")
		}
		return apperr.NewValidationError("Invalid request body")
	}
	return nil
}

func claimsFrom(r *http.Request) (*auth.Claims, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	return claims, nil
}
