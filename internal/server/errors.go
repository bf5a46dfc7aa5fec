package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nailsizes/nailsizes/internal/app"
	"github.com/nailsizes/nailsizes/internal/schema"
	"github.com/nailsizes/nailsizes/internal/store"
)

// HTTPError is the JSON body of every error response.
type HTTPError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func writeErr(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, HTTPError{Code: code, Message: message})
}

// writeError maps store and app errors onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, schema.ErrValidation):
		writeErr(c, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, app.ErrMeasurementExists):
		writeErr(c, http.StatusConflict, "measurement_exists", "Measurements already exist for this style.")
	case errors.Is(err, store.ErrDuplicateKey):
		writeErr(c, http.StatusConflict, "duplicate_key", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeErr(c, http.StatusNotFound, "not_found", err.Error())
	case store.IsUnavailable(err):
		s.logger.Printf("Storage unavailable: %v", err)
		writeErr(c, http.StatusServiceUnavailable, "data_unavailable", "Client data is unavailable on this device.")
	default:
		s.logger.Printf("Internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		writeErr(c, http.StatusInternalServerError, "internal_error", "Something went wrong.")
	}
}

// bindError answers a request body that could not be decoded.
func (s *Server) bindError(c *gin.Context, err error) {
	if errors.Is(err, schema.ErrValidation) {
		writeErr(c, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	writeErr(c, http.StatusBadRequest, "invalid_body", err.Error())
}
