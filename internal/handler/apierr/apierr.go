// Package apierr maps domain errors to client-visible HTTP errors.
package apierr

import (
	"context"
	"errors"
	"net/http"

	"github.com/zhouzirui/trailblazer/backend/internal/model/persona"
	"github.com/zhouzirui/trailblazer/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/trailblazer/backend/internal/service/chat"
	"github.com/zhouzirui/trailblazer/backend/internal/service/session"
)

const (
	MsgUnknownPersona = "unknown character"
	MsgInvalidSession = "invalid session"
	MsgEmptyMessage   = "empty message"
	MsgBackend        = "backend error"
	MsgInvalidBody    = "invalid request body"
	MsgInternal       = "internal error"
)

// Classify returns the status code and message for err.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, persona.ErrUnknownPersona):
		return http.StatusBadRequest, MsgUnknownPersona
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusBadRequest, MsgInvalidSession
	case errors.Is(err, chatservice.ErrEmptyMessage):
		return http.StatusBadRequest, MsgEmptyMessage
	case errors.Is(err, ai.ErrBackend):
		return http.StatusBadGateway, MsgBackend
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, MsgBackend
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}
