package provider

import (
	"regexp"
	"strings"
)

// Outcome is the provider's terminal answer to a signup attempt. It is a
// value, not an error: the exchange itself worked, the provider just said no.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAlreadyRegistered
	OutcomeInvalidData
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlreadyRegistered:
		return "already_registered"
	case OutcomeInvalidData:
		return "invalid_data"
	}
	return "unknown"
}

// Message is the user-facing reason shown in the chat.
func (o Outcome) Message() string {
	switch o {
	case OutcomeSuccess:
		return "Das hat geklappt! Wenn du deine E-Mail-Adresse angegeben hast, findest du gleich eine Bestätigung in deinem Postfach."
	case OutcomeAlreadyRegistered:
		return "Bereits angemeldet."
	case OutcomeInvalidData:
		return "Kein Sportticket oder fehlerhafte Daten."
	}
	return "Unbekannter Fehler."
}

// Classifier turns the provider's free-text confirmation page into an
// Outcome. The provider has no structured status, only phrases; keeping this
// pluggable lets the phrase table change without touching the request logic.
type Classifier func(body string) Outcome

var successPattern = regexp.MustCompile(`Sie haben sich verbindlich für das Angebot Nr\. \d+ angemeldet`)

// DefaultClassifier matches the phrases the provider is known to emit.
func DefaultClassifier() Classifier {
	return func(body string) Outcome {
		switch {
		case successPattern.MatchString(body),
			strings.Contains(body, "Bitte geben Sie Ihre Emailadresse ein, um Ihre Buchungsbestätigung abzurufen"):
			return OutcomeSuccess
		case strings.Contains(body, "Ihre Buchung konnte leider nicht ausgeführt werden") &&
			strings.Contains(body, "da Sie für diesen Kurs bereits angemeldet sind"):
			return OutcomeAlreadyRegistered
		case strings.Contains(body, "Für die Buchung dieses Angebots") &&
			strings.Contains(body, "müssen Sie vorher eines folgender Angebote gebucht haben") &&
			strings.Contains(body, "Sportticket"):
			return OutcomeInvalidData
		default:
			return OutcomeUnknown
		}
	}
}
