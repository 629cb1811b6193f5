package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestTransitions(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{RequestUploaded, RequestSearching, true},
		{RequestSearching, RequestPendingQuotes, true},
		{RequestPendingQuotes, RequestComparing, true},
		{RequestComparing, RequestApproved, true},
		{RequestApproved, RequestCompleted, true},
		{RequestComparing, RequestCompleted, true},
		{RequestUploaded, RequestCompleted, false},
		{RequestCompleted, RequestSearching, false},
		{RequestUploaded, RequestRejected, true},
		{RequestRejected, RequestArchived, true},
		// ARCHIVED терминален.
		{RequestArchived, RequestUploaded, false},
		{RequestArchived, RequestArchived, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, CanRequestTransition(c.from, c.to),
			"%s -> %s", c.from, c.to)
	}
}

func TestPositionChatTransitions(t *testing.T) {
	require.True(t, CanPositionChatTransition(PositionChatRequested, PositionChatSent))
	require.True(t, CanPositionChatTransition(PositionChatRequested, PositionChatReceived))
	require.True(t, CanPositionChatTransition(PositionChatSent, PositionChatReceived))
	require.True(t, CanPositionChatTransition(PositionChatReceived, PositionChatSelected))
	require.False(t, CanPositionChatTransition(PositionChatSelected, PositionChatReceived))
	require.False(t, CanPositionChatTransition(PositionChatRejected, PositionChatRequested))
	require.False(t, CanPositionChatTransition(PositionChatRequested, PositionChatSelected))
}

func TestOfferTransitions(t *testing.T) {
	require.True(t, CanOfferTransition(OfferPending, OfferApproved))
	require.True(t, CanOfferTransition(OfferPending, OfferRejected))
	require.False(t, CanOfferTransition(OfferApproved, OfferRejected))
	require.False(t, CanOfferTransition(OfferRejected, OfferPending))
}

func TestValidRequestStatus(t *testing.T) {
	require.True(t, ValidRequestStatus(RequestUploaded))
	require.True(t, ValidRequestStatus(RequestArchived))
	require.False(t, ValidRequestStatus("DRAFT"))
	require.False(t, ValidRequestStatus(""))
}

func TestOfferQualifies(t *testing.T) {
	require.True(t, (&CommercialOffer{Confidence: 70}).Qualifies())
	require.True(t, (&CommercialOffer{Confidence: 100}).Qualifies())
	require.False(t, (&CommercialOffer{Confidence: 69}).Qualifies())
	require.False(t, (&CommercialOffer{Confidence: 90, NeedsManualReview: true}).Qualifies())
}
