package proxy

import (
	"context"
	"errors"
	"net"

	"mercator-hq/gatekeeper/pkg/proxy/types"
)

// Upstream failure kinds, used as metric labels.
const (
	FailureTimeout     = "timeout"
	FailureUnreachable = "unreachable"
	FailureCanceled    = "canceled"
)

// HandleError converts an upstream round-trip error to the response sent
// to the client and a failure kind. A nil response means the client went
// away and nothing should be written.
func HandleError(err error) (*types.ErrorResponse, string) {
	if errors.Is(err, context.Canceled) {
		return nil, FailureCanceled
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return types.NewGatewayTimeoutError("The upstream service did not respond in time."), FailureTimeout
	}

	return types.NewBadGatewayError("The upstream service is unavailable."), FailureUnreachable
}
