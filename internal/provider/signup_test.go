package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unisport-bot/internal/models"
)

func testParticipant() *models.Participant {
	return &models.Participant{
		ChatID:              123,
		GivenName:           "Jörg",
		LastName:            "Groß",
		Gender:              models.GenderMale,
		Street:              "Musterweg 1",
		City:                "Köln",
		Phone:               "0221123456",
		Email:               "joerg@example.test",
		Status:              models.StatusStudentUniKoeln,
		MatriculationNumber: "1234567",
	}
}

const formPage = `<html><body><form action="anmeldung.fcgi" method="post">
<input type="hidden" name="fid" value="213">
<input type="hidden" name="Kursid" value="42">
<input type="submit" name="submit" value="weiter zur Buchung">
<input type="hidden" name="Geschlecht" value="X">
<input type="text" name="Vorname" value="">
<input type="text" name="Name" value="">
<input type="text" name="Strasse" value="">
<input type="text" name="Ort" value="">
<input type="hidden" name="Statusorig" value="">
<input type="text" name="Matnr" value="">
<input type="text" name="Mail" value="">
<input type="text" name="Tel" value="">
<input type="reset" name="reset" value="Eingaben löschen">
</form></body></html>`

const confirmPage = `<html><body><form action="anmeldung.fcgi" method="post">
<input type="hidden" name="fid" value="213">
<input type="hidden" name="Kursid" value="42">
<input type="hidden" name="Token" value="abc123">
<input type="hidden" name="Geschlecht" value="M">
<input type="hidden" name="Vorname" value="Jörg">
<input type="hidden" name="Name" value="Groß">
<input type="hidden" name="Strasse" value="Musterweg 1">
<input type="hidden" name="Ort" value="Köln">
<input type="hidden" name="Statusorig" value="S-UNI">
<input type="hidden" name="Matnr" value="1234567">
<input type="hidden" name="Institut" value="">
<input type="hidden" name="Mail" value="joerg@example.test">
<input type="hidden" name="Tel" value="0221123456">
<input type="submit" name="back" value="zurück">
</form></body></html>`

const resultPage = `<html><body>Sie haben sich verbindlich für das Angebot Nr. 42 angemeldet.</body></html>`

type recordedRequest struct {
	method  string
	query   string
	referer string
	body    string
}

func TestRegisterReplaysFormFlow(t *testing.T) {
	var requests []recordedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			method:  r.Method,
			query:   r.URL.RawQuery,
			referer: r.Header.Get("Referer"),
			body:    string(raw),
		})
		switch len(requests) {
		case 1:
			fmt.Fprint(w, formPage)
		case 2:
			fmt.Fprint(w, confirmPage)
		default:
			fmt.Fprint(w, resultPage)
		}
	}))
	defer server.Close()

	signupURL := server.URL + "/cgi/anmeldung.fcgi"
	client, err := NewClient(server.Client(), signupURL, 0, nil)
	require.NoError(t, err)

	outcome, err := client.Register(context.Background(), testParticipant(), 42)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)

	require.Len(t, requests, 3)

	assert.Equal(t, http.MethodGet, requests[0].method)
	assert.Equal(t, "Kursid=42", requests[0].query)
	assert.Empty(t, requests[0].referer)

	// First submit: session fields from the form, pre-seeded person fields
	// and buttons dropped, participant data appended.
	assert.Equal(t, http.MethodPost, requests[1].method)
	assert.Equal(t, signupURL+"?Kursid=42", requests[1].referer)
	assert.Equal(t,
		"fid=213&Kursid=42&submit=weiter+zur+Buchung"+
			"&Geschlecht=M&Vorname=J%F6rg&Name=Gro%DF&Strasse=Musterweg+1&Ort=K%F6ln"+
			"&Statusorig=S-UNI&Matnr=1234567&Institut=&Mail=joerg%40example.test&Tel=0221123456",
		requests[1].body,
	)

	// Confirm submit: every field of the confirmation form echoed back plus
	// the literal booking confirmation.
	assert.Equal(t, http.MethodPost, requests[2].method)
	assert.Equal(t, signupURL, requests[2].referer)
	assert.Equal(t,
		"fid=213&Kursid=42&Token=abc123"+
			"&Geschlecht=M&Vorname=J%F6rg&Name=Gro%DF&Strasse=Musterweg+1&Ort=K%F6ln"+
			"&Statusorig=S-UNI&Matnr=1234567&Institut=&Mail=joerg%40example.test&Tel=0221123456"+
			"&submit=verbindliche+Buchung",
		requests[2].body,
	)
}

func TestRegisterAbortsOnUnencodableData(t *testing.T) {
	var posts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		fmt.Fprint(w, formPage)
	}))
	defer server.Close()

	client, err := NewClient(server.Client(), server.URL+"/cgi/anmeldung.fcgi", 0, nil)
	require.NoError(t, err)

	p := testParticipant()
	p.Street = "Europaweg € 1"
	_, err = client.Register(context.Background(), p, 42)

	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "Strasse", encErr.Field)
	assert.Zero(t, posts, "nothing may be submitted with unencodable data")
}

func TestRegisterMissingFormIsShapeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>Wartungsarbeiten</body></html>")
	}))
	defer server.Close()

	client, err := NewClient(server.Client(), server.URL+"/cgi/anmeldung.fcgi", 0, nil)
	require.NoError(t, err)

	_, err = client.Register(context.Background(), testParticipant(), 42)
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
}

func TestRegisterUnreachableHostIsConnError(t *testing.T) {
	client, err := NewClient(http.DefaultClient, "http://127.0.0.1:1/cgi/anmeldung.fcgi", 0, nil)
	require.NoError(t, err)

	_, err = client.Register(context.Background(), testParticipant(), 42)
	var connErr *ConnError
	require.True(t, errors.As(err, &connErr))
}
