package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unisport-bot/internal/models"
)

func TestEncodeLatin1(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"plain ascii", "Mustermann", "Mustermann"},
		{"space becomes plus", "Kölner Weg 7", "K%F6lner+Weg+7"},
		{"umlauts", "Müller-Lüdenscheidt", "M%FCller-L%FCdenscheidt"},
		{"sharp s", "Hauptstraße", "Hauptstra%DFe"},
		{"safe punctuation kept", "a-b_c.d*e", "a-b_c.d*e"},
		{"reserved punctuation escaped", "a&b=c", "a%26b%3Dc"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeLatin1("Name", tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeLatin1RejectsNonLatin1(t *testing.T) {
	_, err := encodeLatin1("Ort", "Köln €")
	require.Error(t, err)

	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "Ort", encErr.Field)
	assert.Equal(t, '€', encErr.Rune)
}

func TestFormBodyPreservesOrder(t *testing.T) {
	body, err := formBody([]models.FieldPair{
		{Name: "Kursid", Value: "123"},
		{Name: "Vorname", Value: "Jörg"},
		{Name: "Name", Value: "Groß"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Kursid=123&Vorname=J%F6rg&Name=Gro%DF", body)
}

func TestFormBodyStopsOnBadValue(t *testing.T) {
	_, err := formBody([]models.FieldPair{
		{Name: "Vorname", Value: "Ok"},
		{Name: "Name", Value: "😀"},
	})
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "Name", encErr.Field)
}
