package shipper_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
)

func TestError_Error(t *testing.T) {
	err := shipper.NewError("delhivery", shipper.KindValidationFailed, "INVALID_PINCODE", "Invalid pincode")
	assert.Equal(t, "delhivery error (INVALID_PINCODE): Invalid pincode", err.Error())
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := shipper.NewError("delhivery", shipper.KindServiceUnavailable, "NETWORK", "carrier unreachable").WithCause(cause)
	assert.Contains(t, err.Error(), "carrier unreachable")
	assert.Contains(t, err.Error(), "connection reset")
	assert.True(t, errors.Is(err, cause))
}

func TestError_IsMatchesKind(t *testing.T) {
	err := shipper.NewError("xpressbees", shipper.KindNotFound, "AWB_NOT_FOUND", "no such shipment")

	assert.True(t, errors.Is(err, shipper.ErrNotFound))
	assert.False(t, errors.Is(err, shipper.ErrValidationFailed))

	wrapped := fmt.Errorf("tracking: %w", err)
	assert.True(t, errors.Is(wrapped, shipper.ErrNotFound))
}

func TestError_WithStatusCode(t *testing.T) {
	err := shipper.NewError("bluedart", shipper.KindAuthenticationFailed, "HTTP_401", "Unauthorized").WithStatusCode(401)
	assert.Equal(t, 401, err.StatusCode)
}

func TestKind_Transient(t *testing.T) {
	assert.True(t, shipper.KindServiceUnavailable.Transient())
	assert.True(t, shipper.KindRateLimited.Transient())
	assert.False(t, shipper.KindAuthenticationFailed.Transient())
	assert.False(t, shipper.KindValidationFailed.Transient())
	assert.False(t, shipper.KindWaybillExhausted.Transient())
}

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   shipper.Kind
	}{
		{http.StatusUnauthorized, shipper.KindAuthenticationFailed},
		{http.StatusForbidden, shipper.KindAuthenticationFailed},
		{http.StatusNotFound, shipper.KindNotFound},
		{http.StatusTooManyRequests, shipper.KindRateLimited},
		{http.StatusRequestTimeout, shipper.KindServiceUnavailable},
		{http.StatusBadGateway, shipper.KindServiceUnavailable},
		{http.StatusBadRequest, shipper.KindValidationFailed},
		{http.StatusUnprocessableEntity, shipper.KindValidationFailed},
		{http.StatusOK, shipper.KindUnexpectedResponseShape},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, shipper.KindForStatus(tt.status))
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestNormalize(t *testing.T) {
	var syntaxErr error
	{
		var v map[string]any
		syntaxErr = json.Unmarshal([]byte("<html>"), &v)
	}

	tests := []struct {
		name string
		err  error
		want shipper.Kind
	}{
		{"auth", &credentials.AuthError{Carrier: "xpressbees", Cause: errors.New("bad password")}, shipper.KindAuthenticationFailed},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), shipper.KindServiceUnavailable},
		{"network", timeoutErr{}, shipper.KindServiceUnavailable},
		{"eof", io.ErrUnexpectedEOF, shipper.KindServiceUnavailable},
		{"decode", syntaxErr, shipper.KindUnexpectedResponseShape},
		{"unknown carrier", fmt.Errorf("%w: fedex", shipper.ErrCarrierNotFound), shipper.KindValidationFailed},
		{"unclassified", errors.New("boom"), shipper.KindUnexpectedResponseShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shipper.Normalize("delhivery", tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, "delhivery", got.Carrier)
			assert.True(t, errors.Is(got, tt.err))
		})
	}
}

func TestNormalize_KeepsClassifiedError(t *testing.T) {
	orig := shipper.NewError("ecomexpress", shipper.KindNotServiceable, "PIN_NOT_SERVICEABLE", "pincode not serviced")
	assert.Same(t, orig, shipper.Normalize("ecomexpress", orig))

	got := shipper.Normalize("bluedart", shipper.ErrRateLimited)
	assert.Equal(t, "bluedart", got.Carrier)
	assert.Equal(t, shipper.KindRateLimited, got.Kind)
	assert.Empty(t, shipper.ErrRateLimited.Carrier, "sentinel must not be mutated")

	assert.Nil(t, shipper.Normalize("bluedart", nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, shipper.IsRetryable(shipper.ErrServiceUnavailable))
	assert.True(t, shipper.IsRetryable(shipper.ErrRateLimited))
	assert.True(t, shipper.IsRetryable(context.DeadlineExceeded))
	assert.False(t, shipper.IsRetryable(shipper.ErrValidationFailed))
	assert.False(t, shipper.IsRetryable(nil))
}
