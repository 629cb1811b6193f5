package ai_test

import (
	"context"
	"errors"
	"testing"

	"procurement/db"
	"procurement/internal/ai"

	"github.com/stretchr/testify/require"
)

func TestRankOffers(t *testing.T) {
	offers := []db.CommercialOffer{
		{ID: 1, CompanyName: "Б", TotalPrice: 200000, Currency: "KZT", Confidence: 90},
		{ID: 2, CompanyName: "А", TotalPrice: 150000, Currency: "KZT", Confidence: 95},
		{ID: 3, CompanyName: "В", TotalPrice: 180000, Currency: "KZT", Confidence: 40},
	}

	got := ai.RankOffers(offers)

	require.Len(t, got, 3)
	require.Equal(t, "А", got[0].Offer.CompanyName)
	require.True(t, got[0].Best)
	require.True(t, got[0].Qualified)
	require.InDelta(t, 0, got[0].Savings, 1e-9)
	require.Equal(t, "В", got[1].Offer.CompanyName)
	require.False(t, got[1].Qualified)
	require.InDelta(t, 30000, got[1].Savings, 1e-9)
	require.Equal(t, "Б", got[2].Offer.CompanyName)
	require.True(t, got[2].Qualified)
	require.InDelta(t, 50000, got[2].Savings, 1e-9)
	// Исходный срез не переупорядочен.
	require.Equal(t, 1, offers[0].ID)
}

func TestRationaleFallback(t *testing.T) {
	comp := ai.NewComparator(&fakeCompleter{err: errors.New("down")}, testLogger())
	rankings := ai.RankOffers([]db.CommercialOffer{
		{CompanyName: "А", TotalPrice: 100, Currency: "KZT"},
		{CompanyName: "Б", TotalPrice: 130, Currency: "KZT"},
	})

	text := comp.Rationale(context.Background(), rankings)
	require.Contains(t, text, "А")
	require.Contains(t, text, "30.00")
}

func TestRationaleUsesModelText(t *testing.T) {
	comp := ai.NewComparator(&fakeCompleter{resp: "совещательный текст"}, testLogger())
	rankings := ai.RankOffers([]db.CommercialOffer{{CompanyName: "А", TotalPrice: 1}})
	require.Equal(t, "совещательный текст", comp.Rationale(context.Background(), rankings))
}

func TestRationaleEmpty(t *testing.T) {
	comp := ai.NewComparator(&fakeCompleter{}, testLogger())
	require.Equal(t, "Нет предложений для сравнения.", comp.Rationale(context.Background(), nil))
}
