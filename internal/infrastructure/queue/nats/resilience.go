package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/resilience"
)

// Connection-level failures worth another publish attempt.
var transientNATSErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
	nats.ErrNoResponders,
}

var (
	callerGaveUp     = resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	transient        = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	permanentFailure = resilience.ErrorClassification{Retryable: false, RecordFailure: true}
)

// classifyNATSError retries connectivity failures only; context errors are
// the caller giving up and never count against the breaker.
func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return callerGaveUp
	case resilience.IsCircuitOpen(err), isTransientNATSError(err):
		return transient
	default:
		return permanentFailure
	}
}

func isTransientNATSError(err error) bool {
	for _, target := range transientNATSErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrapTemporaryIfNeeded marks errors that a submitter may retry later so
// the HTTP layer answers 503 instead of 500.
func wrapTemporaryIfNeeded(op string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return err
}
