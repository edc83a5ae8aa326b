// Package provider talks to the third-party booking site. The site has no
// API: the listing is an HTML table and registration is a three-page form
// flow held together by hidden fields, so everything here is reverse
// engineered from the pages themselves.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"unisport-bot/internal/models"
)

// userParams are the person-identifying field names. The form page pre-seeds
// some of them with defaults that must not leak into the first submit; the
// confirmation page echoes them back and expects them resubmitted.
var userParams = map[string]bool{
	"Geschlecht": true,
	"Vorname":    true,
	"Name":       true,
	"Strasse":    true,
	"Ort":        true,
	"Statusorig": true,
	"Matnr":      true,
	"Mail":       true,
	"Tel":        true,
}

// Client performs the three-phase signup exchange for one participant and
// course. It never retries: a connectivity error goes back to the caller and
// a classified refusal is final.
type Client struct {
	http      *http.Client
	signupURL string
	origin    string
	delay     time.Duration
	classify  Classifier
}

func NewClient(httpClient *http.Client, signupURL string, delay time.Duration, classify Classifier) (*Client, error) {
	u, err := url.Parse(signupURL)
	if err != nil {
		return nil, fmt.Errorf("invalid signup URL: %w", err)
	}
	if classify == nil {
		classify = DefaultClassifier()
	}
	return &Client{
		http:      httpClient,
		signupURL: signupURL,
		origin:    u.Scheme + "://" + u.Host,
		delay:     delay,
		classify:  classify,
	}, nil
}

// Register replays the provider's form flow:
//
//  1. GET the form page for the course and lift its session-bound hidden
//     fields, dropping the pre-seeded person fields and control buttons,
//     then merge in the participant's own data.
//  2. POST that body; the confirmation page carries a second form whose
//     hidden fields now hold server-assigned tokens. Keep everything this
//     time and append the literal confirm field.
//  3. POST again and classify the free-text answer.
//
// Local persistence of the resulting status is the caller's job.
func (c *Client) Register(ctx context.Context, p *models.Participant, courseID int64) (Outcome, error) {
	formURL := fmt.Sprintf("%s?Kursid=%d", c.signupURL, courseID)

	body, err := c.fetchBody(ctx, http.MethodGet, formURL, "", "")
	if err != nil {
		return OutcomeUnknown, err
	}
	fields, err := fieldsFromForm(body, false)
	if err != nil {
		return OutcomeUnknown, err
	}
	fields = append(fields, p.Payload()...)
	payload, err := formBody(fields)
	if err != nil {
		return OutcomeUnknown, err
	}

	if err := c.pause(ctx); err != nil {
		return OutcomeUnknown, err
	}

	body, err = c.fetchBody(ctx, http.MethodPost, c.signupURL, formURL, payload)
	if err != nil {
		return OutcomeUnknown, err
	}
	fields, err = fieldsFromForm(body, true)
	if err != nil {
		return OutcomeUnknown, err
	}
	fields = append(fields, models.FieldPair{Name: "submit", Value: "verbindliche Buchung"})
	payload, err = formBody(fields)
	if err != nil {
		return OutcomeUnknown, err
	}

	if err := c.pause(ctx); err != nil {
		return OutcomeUnknown, err
	}

	body, err = c.fetchBody(ctx, http.MethodPost, c.signupURL, c.signupURL, payload)
	if err != nil {
		return OutcomeUnknown, err
	}

	return c.classify(body), nil
}

func (c *Client) fetchBody(ctx context.Context, method, target, referer, payload string) (string, error) {
	var bodyReader io.Reader
	if payload != "" {
		bodyReader = strings.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return "", fmt.Errorf("failed to build %s request: %w", method, err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Origin", c.origin)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &ConnError{Phase: method + " " + target, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ConnError{Phase: "reading " + target, Err: err}
	}
	return string(raw), nil
}

// pause keeps the inter-request delay the provider tolerates.
func (c *Client) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.delay):
		return nil
	}
}

// fieldsFromForm extracts the input name/value pairs of the first form on
// the page. Control buttons are always dropped; the person-identifying
// vocabulary is dropped on the first pass and kept on the confirmation pass.
func fieldsFromForm(body string, keepUserParams bool) ([]models.FieldPair, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &ShapeError{Missing: "parseable HTML document"}
	}
	form := doc.Find("form").First()
	if form.Length() == 0 {
		return nil, &ShapeError{Missing: "form element"}
	}

	var fields []models.FieldPair
	form.Find("input").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" || name == "reset" || name == "back" {
			return
		}
		if !keepUserParams && userParams[name] {
			return
		}
		value, _ := sel.Attr("value")
		fields = append(fields, models.FieldPair{Name: name, Value: value})
	})
	return fields, nil
}
