package frdate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerdoc/facture-cli/internal/model"
)

func TestParse_NumericForms(t *testing.T) {
	cases := map[string]model.Date{
		"13/10/2025": model.NewDate(2025, time.October, 13),
		"1-2-2024":   model.NewDate(2024, time.February, 1),
		"03.04.25":   model.NewDate(2025, time.April, 3),
		"31/12/99":   model.NewDate(2099, time.December, 31),
	}
	for in, want := range cases {
		got, ok := Parse(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), in)
	}
}

func TestParse_TextualMonths(t *testing.T) {
	got, ok := Parse("13 octobre 2025")
	require.True(t, ok)
	assert.Equal(t, "2025-10-13", got.String())

	got, ok = Parse("1er janvier 2024")
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", got.String())

	got, ok = Parse("15 févr. 2023")
	require.True(t, ok)
	assert.Equal(t, "2023-02-15", got.String())
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "32/01/2025", "13/13/2025", "30/02/2024", "13/10/1898", "not a date"} {
		_, ok := Parse(in)
		assert.False(t, ok, in)
	}
}

func TestFind_OrdersByPosition(t *testing.T) {
	text := "Facture du 13/10/2025, période du 1er septembre 2025 au 30/09/2025"
	found := Find(text)
	require.Len(t, found, 3)
	assert.Equal(t, "2025-10-13", found[0].Date.String())
	assert.Equal(t, "2025-09-01", found[1].Date.String())
	assert.Equal(t, "2025-09-30", found[2].Date.String())
}

func TestResolve_LabelledRoles(t *testing.T) {
	text := `Date de facture : 13/10/2025
Début de contrat : 01/01/2024
Date d'échéance : 31/12/2026`

	res := Resolve(text)
	require.NotNil(t, res.DocumentDate)
	assert.Equal(t, "2025-10-13", res.DocumentDate.String())
	require.NotNil(t, res.ContractStart)
	assert.Equal(t, "2024-01-01", res.ContractStart.String())
	require.NotNil(t, res.ContractExpiry)
	assert.Equal(t, "2026-12-31", res.ContractExpiry.String())
}

func TestResolve_FirstDateFallback(t *testing.T) {
	res := Resolve("Votre facture émise à Paris 13/10/2025 pour le site X")
	require.NotNil(t, res.DocumentDate)
	assert.Equal(t, "2025-10-13", res.DocumentDate.String())
	assert.Contains(t, res.Reasons["document_date"], "first date")
}

func TestResolve_PeriodDatesStayOutOfDocumentDate(t *testing.T) {
	res := Resolve("Consommation période du 01/09/2025 au 30/09/2025")
	require.NotNil(t, res.PeriodStart)
	require.NotNil(t, res.PeriodEnd)
	assert.Equal(t, "2025-09-01", res.PeriodStart.String())
	assert.Equal(t, "2025-09-30", res.PeriodEnd.String())
	assert.Nil(t, res.DocumentDate)
}

func TestResolve_ExpiryNotReusedAsDocumentDate(t *testing.T) {
	res := Resolve("Date d'échéance : 31/12/2026")
	require.NotNil(t, res.ContractExpiry)
	assert.Nil(t, res.DocumentDate)
}

func TestResolve_NoDates(t *testing.T) {
	res := Resolve("aucune date ici")
	assert.Nil(t, res.DocumentDate)
	assert.Equal(t, "no date found", res.Reasons["document_date"])
}

func TestEffectiveDate_Policy(t *testing.T) {
	doc := model.NewDate(2025, time.October, 13)
	end := model.NewDate(2025, time.September, 30)

	// Document date wins when present.
	d, reason := EffectiveDate(Resolution{DocumentDate: &doc, PeriodEnd: &end})
	require.NotNil(t, d)
	assert.Equal(t, "2025-10-13", d.String())
	assert.Equal(t, "document date", reason)

	// Period end backs it up.
	d, reason = EffectiveDate(Resolution{PeriodEnd: &end})
	require.NotNil(t, d)
	assert.Equal(t, "2025-09-30", d.String())
	assert.Equal(t, "consumption period end", reason)

	// Neither present: nil.
	d, _ = EffectiveDate(Resolution{})
	assert.Nil(t, d)
}
