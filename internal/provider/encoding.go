package provider

import (
	"strings"

	"golang.org/x/text/encoding/charmap"

	"unisport-bot/internal/models"
)

// encodeLatin1 transcodes value to ISO-8859-1 bytes and percent-encodes them
// for an application/x-www-form-urlencoded body. The provider decodes the
// body as Latin-1, so transcoding has to happen before percent-encoding;
// encoding the UTF-8 bytes directly would corrupt every umlaut. A rune
// outside Latin-1 is a hard error, never silently substituted.
func encodeLatin1(field, value string) (string, error) {
	var b strings.Builder
	for _, r := range value {
		octet, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			return "", &EncodingError{Field: field, Rune: r}
		}
		switch {
		case octet == ' ':
			b.WriteByte('+')
		case isFormSafe(octet):
			b.WriteByte(octet)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[octet>>4])
			b.WriteByte(upperhex[octet&0xf])
		}
	}
	return b.String(), nil
}

const upperhex = "0123456789ABCDEF"

func isFormSafe(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '-' || c == '_' || c == '.' || c == '*'
}

// formBody serializes the fields into a request body, preserving order.
// Field names are the provider's own ASCII vocabulary; only values need
// transcoding.
func formBody(fields []models.FieldPair) (string, error) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		encoded, err := encodeLatin1(f.Name, f.Value)
		if err != nil {
			return "", err
		}
		parts = append(parts, f.Name+"="+encoded)
	}
	return strings.Join(parts, "&"), nil
}
