package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// AdapterError wraps provider errors with status metadata.
type AdapterError struct {
	Status    int
	Temporary bool
	Err       error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("adapter error (status=%d)", e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether an error is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		if adapterErr.Temporary {
			return true
		}
		if isRetryableStatus(adapterErr.Status) {
			return true
		}
	}
	return false
}

func isRetryableStatus(status int) bool {
	return status == 429 || (status >= 500 && status <= 599)
}

// wrapSDKError attaches the HTTP status from an SDK error so IsTransient can classify it.
func wrapSDKError(provider string, err error) error {
	wrapped := fmt.Errorf("%s API error: %w", provider, err)
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return &AdapterError{Status: oaiErr.StatusCode, Err: wrapped}
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return &AdapterError{Status: antErr.StatusCode, Err: wrapped}
	}
	return wrapped
}
