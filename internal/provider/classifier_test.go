package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultClassifier(t *testing.T) {
	classify := DefaultClassifier()

	tests := []struct {
		name string
		body string
		want Outcome
	}{
		{
			"booking confirmed",
			"<html><body>Sie haben sich verbindlich für das Angebot Nr. 42178 angemeldet.</body></html>",
			OutcomeSuccess,
		},
		{
			"confirmation mail offered",
			"Bitte geben Sie Ihre Emailadresse ein, um Ihre Buchungsbestätigung abzurufen.",
			OutcomeSuccess,
		},
		{
			"already registered",
			"Ihre Buchung konnte leider nicht ausgeführt werden, da Sie für diesen Kurs bereits angemeldet sind.",
			OutcomeAlreadyRegistered,
		},
		{
			"missing sportticket",
			"Für die Buchung dieses Angebots müssen Sie vorher eines folgender Angebote gebucht haben: Sportticket",
			OutcomeInvalidData,
		},
		{
			"refusal without the registered phrase",
			"Ihre Buchung konnte leider nicht ausgeführt werden.",
			OutcomeUnknown,
		},
		{
			"unrelated page",
			"<html><body>Willkommen beim Hochschulsport</body></html>",
			OutcomeUnknown,
		},
		{
			"empty body",
			"",
			OutcomeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.body))
		})
	}
}

func TestOutcomeMessageIsNeverEmpty(t *testing.T) {
	for _, o := range []Outcome{OutcomeSuccess, OutcomeAlreadyRegistered, OutcomeInvalidData, OutcomeUnknown} {
		assert.NotEmpty(t, o.Message(), o.String())
	}
}
