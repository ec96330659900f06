package analysis

import (
	"errors"
	"net/http"

	"resumind/internal/feedback"
	"resumind/internal/llm"
)

// ErrorKind classifies gateway failures so callers can pick recovery guidance.
type ErrorKind string

const (
	KindUpstream          ErrorKind = "upstream"
	KindTransport         ErrorKind = "transport"
	KindMalformedEnvelope ErrorKind = "malformed-envelope"
	KindInvalidJSON       ErrorKind = "invalid-json"
	KindMisconfigured     ErrorKind = "misconfigured"
)

// GatewayError is returned by Gateway.RequestAnalysis. Message is shown to users verbatim.
type GatewayError struct {
	Kind     ErrorKind
	Provider llm.ProviderKind
	// Status is the remote HTTP status for KindUpstream.
	Status  int
	Message string
	Details string
	// Preview is a bounded excerpt of the completion for KindInvalidJSON.
	Preview string
	Err     error
}

func (e *GatewayError) Error() string { return e.Message }

func (e *GatewayError) Unwrap() error { return e.Err }

// HTTPStatus is the status the analyze endpoint answers with for this error.
func (e *GatewayError) HTTPStatus() int {
	if e.Kind == KindMisconfigured {
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

// Body is the flat JSON body of the analyze contract.
func (e *GatewayError) Body() map[string]any {
	body := map[string]any{"error": e.Message}
	if e.Details != "" {
		body["details"] = e.Details
	}
	if e.Kind == KindInvalidJSON {
		body["contentPreview"] = e.Preview
	}
	return body
}

// Retryable reports whether resubmitting the same input may succeed.
func (e *GatewayError) Retryable() bool {
	return e.Kind != KindMisconfigured
}

// classify maps provider and decoder failures onto GatewayError.
func classify(provider llm.ProviderKind, err error) *GatewayError {
	var (
		gwErr        *GatewayError
		statusErr    *llm.StatusError
		transportErr *llm.TransportError
		envelopeErr  *llm.EnvelopeError
		configErr    *llm.ConfigError
		decodeErr    *feedback.DecodeError
	)
	switch {
	case errors.As(err, &gwErr):
		return gwErr
	case errors.As(err, &configErr):
		return &GatewayError{Kind: KindMisconfigured, Provider: provider, Message: configErr.Error(), Err: err}
	case errors.As(err, &statusErr):
		return &GatewayError{
			Kind:     KindUpstream,
			Provider: provider,
			Status:   statusErr.StatusCode,
			Message:  statusErr.Error(),
			Details:  statusErr.Body,
			Err:      err,
		}
	case errors.As(err, &transportErr):
		return &GatewayError{
			Kind:     KindTransport,
			Provider: provider,
			Message:  "Failed to call " + provider.DisplayName() + " API",
			Details:  errString(transportErr.Err),
			Err:      err,
		}
	case errors.As(err, &envelopeErr):
		return &GatewayError{
			Kind:     KindMalformedEnvelope,
			Provider: provider,
			Message:  envelopeErr.Error(),
			Details:  envelopeErr.Details,
			Err:      err,
		}
	case errors.As(err, &decodeErr):
		return &GatewayError{
			Kind:     KindInvalidJSON,
			Provider: provider,
			Message:  "Model did not return valid JSON",
			Details:  decodeErr.Reason,
			Preview:  decodeErr.Preview,
			Err:      err,
		}
	default:
		return &GatewayError{
			Kind:     KindTransport,
			Provider: provider,
			Message:  "Failed to call " + provider.DisplayName() + " API",
			Details:  errString(err),
			Err:      err,
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
