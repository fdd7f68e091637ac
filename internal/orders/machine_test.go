package orders

import (
	"testing"

	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonalizedPathIsValid(t *testing.T) {
	path := []enums.OrderStatus{
		enums.OrderStatusPlaced,
		enums.OrderStatusConfirmed,
		enums.OrderStatusDetailsReceived,
		enums.OrderStatusPreviewReady,
		enums.OrderStatusRevisionRequested,
		enums.OrderStatusPreviewReady,
		enums.OrderStatusApproved,
		enums.OrderStatusInProduction,
		enums.OrderStatusPacked,
		enums.OrderStatusDispatched,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		require.NoError(t, ValidateTransition(path[i], path[i+1], true), "%s -> %s", path[i], path[i+1])
	}
}

func TestNonPersonalizedSkipsDesignLoop(t *testing.T) {
	require.NoError(t, ValidateTransition(enums.OrderStatusConfirmed, enums.OrderStatusInProduction, false))

	err := ValidateTransition(enums.OrderStatusConfirmed, enums.OrderStatusDetailsReceived, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "non-personalized order must not enter the design loop, got %v", err)
}

func TestPersonalizedMustEnterDesignLoop(t *testing.T) {
	err := ValidateTransition(enums.OrderStatusConfirmed, enums.OrderStatusInProduction, true)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "personalized order must not skip the design loop, got %v", err)
}

func TestInvalidJumpsRejected(t *testing.T) {
	cases := []struct{ from, to enums.OrderStatus }{
		{enums.OrderStatusPlaced, enums.OrderStatusPacked},
		{enums.OrderStatusPlaced, enums.OrderStatusDelivered},
		{enums.OrderStatusPacked, enums.OrderStatusInProduction},
		{enums.OrderStatusDispatched, enums.OrderStatusDelivered},
		{enums.OrderStatusDelivered, enums.OrderStatusDispatched},
	}
	for _, tc := range cases {
		err := ValidateTransition(tc.from, tc.to, true)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "%s -> %s must be rejected, got %v", tc.from, tc.to, err)
	}
}

func TestCancelAndRefundFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []enums.OrderStatus{
		enums.OrderStatusPlaced,
		enums.OrderStatusConfirmed,
		enums.OrderStatusDetailsReceived,
		enums.OrderStatusPreviewReady,
		enums.OrderStatusRevisionRequested,
		enums.OrderStatusApproved,
		enums.OrderStatusInProduction,
		enums.OrderStatusPacked,
		enums.OrderStatusDispatched,
		enums.OrderStatusOutForDelivery,
	}
	for _, from := range nonTerminal {
		assert.NoError(t, ValidateTransition(from, enums.OrderStatusCancelled, true), "%s -> cancelled", from)
		assert.NoError(t, ValidateTransition(from, enums.OrderStatusRefunded, false), "%s -> refunded", from)
	}
}

func TestTerminalStatusesAreFinal(t *testing.T) {
	for _, from := range []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled, enums.OrderStatusRefunded} {
		for _, to := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusCancelled, enums.OrderStatusRefunded} {
			err := ValidateTransition(from, to, true)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "%s -> %s must be rejected, got %v", from, to, err)
		}
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	err := ValidateTransition(enums.OrderStatusPlaced, enums.OrderStatus("bogus"), false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "expected validation error, got %v", err)
}

func TestFromCourierStatus(t *testing.T) {
	cases := []struct {
		in     enums.CourierStatus
		want   enums.OrderStatus
		mapped bool
	}{
		{enums.CourierStatusPickedUp, enums.OrderStatusDispatched, true},
		{enums.CourierStatusInTransit, enums.OrderStatusOutForDelivery, true},
		{enums.CourierStatusDelivered, enums.OrderStatusDelivered, true},
		{enums.CourierStatusCancelled, "", false},
		{enums.CourierStatusFailed, "", false},
	}
	for _, tc := range cases {
		got, ok := FromCourierStatus(tc.in)
		assert.Equal(t, tc.mapped, ok, "FromCourierStatus(%s)", tc.in)
		assert.Equal(t, tc.want, got, "FromCourierStatus(%s)", tc.in)
	}
}
