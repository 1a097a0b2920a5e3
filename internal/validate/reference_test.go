package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerdoc/facture-cli/internal/model"
)

func refType(t model.ReferenceType) *model.ReferenceType { return &t }

func TestReference_Valid14Digits(t *testing.T) {
	for _, rt := range []model.ReferenceType{model.ReferencePCE, model.ReferencePDL, model.ReferencePRM} {
		out := Reference("12345678901234", "", refType(rt))
		require.NotNil(t, out.Reference, string(rt))
		assert.Equal(t, "12345678901234", *out.Reference)
		assert.Equal(t, rt, *out.Type)
		assert.Equal(t, 14, *out.Length)
	}
}

func TestReference_NormalizesSeparators(t *testing.T) {
	out := Reference("12 345 678 901 234", "PCE", refType(model.ReferencePCE))
	require.NotNil(t, out.Reference)
	assert.Equal(t, "12345678901234", *out.Reference)
}

func TestReference_WrongLengthNullsReferenceAndType(t *testing.T) {
	out := Reference("123456789", "", refType(model.ReferencePDL))
	assert.Nil(t, out.Reference)
	assert.Nil(t, out.Type)
	assert.Nil(t, out.Length)
	assert.Contains(t, out.Reason, "length 9, expected 14")
}

func TestReference_EmptyInput(t *testing.T) {
	out := Reference("", "", nil)
	assert.Nil(t, out.Reference)
	assert.Equal(t, "no reference found", out.Reason)
}

func TestReference_InfersTypeFromContext(t *testing.T) {
	out := Reference("12345678901234", "Point de livraison n°", nil)
	require.NotNil(t, out.Type)
	assert.Equal(t, model.ReferencePDL, *out.Type)

	out = Reference("12345678901234", "Votre PCE", nil)
	require.NotNil(t, out.Type)
	assert.Equal(t, model.ReferencePCE, *out.Type)

	out = Reference("12345678901234", "PRM :", nil)
	require.NotNil(t, out.Type)
	assert.Equal(t, model.ReferencePRM, *out.Type)
}

func TestReference_IndeterminableType(t *testing.T) {
	out := Reference("12345678901234", "référence client", nil)
	assert.Nil(t, out.Reference)
	assert.Contains(t, out.Reason, "indeterminable")
}

func TestInferType_FoldsAccentsAndCase(t *testing.T) {
	got := InferType("point de comptage et d'estimation")
	require.NotNil(t, got)
	assert.Equal(t, model.ReferencePCE, *got)
}

func TestAdjudicate_SingleCandidate(t *testing.T) {
	c := RefCandidate{Raw: "12345678901234", Type: model.ReferencePDL, Priority: 1}
	winner, ok, _ := Adjudicate([]RefCandidate{c}, nil)
	require.True(t, ok)
	assert.Equal(t, c, winner)
}

func TestAdjudicate_SegmentBreaksTie(t *testing.T) {
	gas := model.SegmentGas
	cands := []RefCandidate{
		{Raw: "11111111111111", Type: model.ReferencePDL, Priority: 0},
		{Raw: "22222222222222", Type: model.ReferencePCE, Priority: 1},
	}
	winner, ok, reason := Adjudicate(cands, &gas)
	require.True(t, ok)
	assert.Equal(t, model.ReferencePCE, winner.Type)
	assert.Contains(t, reason, "matches segment")
}

func TestAdjudicate_ConflictWithoutSegmentIsAmbiguous(t *testing.T) {
	cands := []RefCandidate{
		{Raw: "11111111111111", Type: model.ReferencePCE, Priority: 0},
		{Raw: "22222222222222", Type: model.ReferencePDL, Priority: 0},
	}
	_, ok, reason := Adjudicate(cands, nil)
	assert.False(t, ok)
	assert.Equal(t, "ambiguous", reason)
}

func TestAdjudicate_CanonicalLengthOutranksPriority(t *testing.T) {
	cands := []RefCandidate{
		{Raw: "123456789", Type: model.ReferencePCE, Priority: 1},
		{Raw: "98 765 432 109 876", Type: model.ReferencePDL, Priority: 5},
	}
	winner, ok, reason := Adjudicate(cands, nil)
	require.True(t, ok)
	assert.Equal(t, model.ReferencePDL, winner.Type)
	assert.Equal(t, "only candidate with canonical length", reason)
}

func TestAdjudicate_SameDigitsNotAmbiguous(t *testing.T) {
	cands := []RefCandidate{
		{Raw: "12345678901234", Type: model.ReferencePDL, Priority: 0},
		{Raw: "12 345 678 901 234", Type: model.ReferencePDL, Priority: 2},
	}
	winner, ok, _ := Adjudicate(cands, nil)
	require.True(t, ok)
	assert.Equal(t, 0, winner.Priority)
}

func TestPostalCode(t *testing.T) {
	assert.True(t, PostalCode("75001"))
	assert.True(t, PostalCode("01000"))
	assert.False(t, PostalCode("7500"))
	assert.False(t, PostalCode("750011"))
	assert.False(t, PostalCode("7500A"))
	assert.False(t, PostalCode(""))
}

func TestSirenSiret(t *testing.T) {
	assert.True(t, SirenSiret("552081317"))
	assert.True(t, SirenSiret("55208131766522"))
	assert.False(t, SirenSiret("5520813"))
	assert.False(t, SirenSiret("552 081 317"))
	assert.False(t, SirenSiret("55208131766"))
}
