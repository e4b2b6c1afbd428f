package main

import (
	"errors"
	"log/slog"
	"net/http"

	"skinscan/store"
	"skinscan/upload"

	"github.com/gin-gonic/gin"
)

// apiError is an error with a client-facing status and message.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(msg string) error   { return &apiError{http.StatusBadRequest, msg} }
func unauthorized(msg string) error { return &apiError{http.StatusUnauthorized, msg} }
func forbidden(msg string) error    { return &apiError{http.StatusForbidden, msg} }
func notFound(msg string) error     { return &apiError{http.StatusNotFound, msg} }

// errConflict is answered with 400, like every duplicate-email response.
var errConflict = &apiError{http.StatusBadRequest, "User already exists"}

// respondError maps err onto the response. Anything outside the taxonomy is
// logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		c.JSON(ae.status, gin.H{"error": ae.msg})
	case errors.Is(err, store.ErrEmailTaken):
		c.JSON(errConflict.status, gin.H{"error": errConflict.msg})
	case errors.Is(err, upload.ErrRejected):
		c.JSON(http.StatusBadRequest, gin.H{"error": rejectionMessage(err)})
	default:
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}

// rejectionMessage strips the "upload rejected: " prefix.
func rejectionMessage(err error) string {
	msg := err.Error()
	prefix := upload.ErrRejected.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
