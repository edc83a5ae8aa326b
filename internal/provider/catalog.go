package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"unisport-bot/internal/models"
)

// Column labels of the listing table. Columns are located by header text, so
// the parser survives reordering but fails loudly on a rename.
const (
	headerSignup   = "Anmeldung"
	headerDate     = "Zeitraum"
	headerTime     = "Zeit"
	headerLevel    = "Bezeichnung"
	headerLocation = "Ort"
	headerTrainer  = "Kursleiter/In"
)

var requiredHeaders = []string{
	headerSignup, headerDate, headerTime, headerLevel, headerLocation, headerTrainer,
}

var listingZone = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// Catalog downloads and parses the provider's course listing. It performs no
// persistence; upserting the result is the caller's responsibility.
type Catalog struct {
	http       *http.Client
	listingURL string
	signupPath string
}

func NewCatalog(httpClient *http.Client, listingURL, signupURL string) (*Catalog, error) {
	u, err := url.Parse(signupURL)
	if err != nil {
		return nil, fmt.Errorf("invalid signup URL: %w", err)
	}
	return &Catalog{
		http:       httpClient,
		listingURL: listingURL,
		signupPath: u.Path,
	}, nil
}

// Fetch returns the bookable courses on the listing page plus the number of
// malformed rows that were skipped. A missing table header is fatal (the
// page layout changed); a single bad row is not, the rest of the page is
// still returned.
func (c *Catalog) Fetch(ctx context.Context) ([]models.Course, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listingURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build listing request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &ConnError{Phase: "GET listing", Err: err}
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, 0, &ConnError{Phase: "reading listing", Err: err}
	}

	headers := map[string]int{}
	doc.Find("thead > tr:first-of-type > th").Each(func(i int, sel *goquery.Selection) {
		headers[strings.TrimSpace(sel.Text())] = i
	})
	for _, h := range requiredHeaders {
		if _, ok := headers[h]; !ok {
			return nil, 0, &ShapeError{Missing: fmt.Sprintf("table header %q", h)}
		}
	}

	var courses []models.Course
	skipped := 0
	doc.Find("tbody > tr").Each(func(_ int, row *goquery.Selection) {
		course, ok, err := c.parseRow(row, headers)
		if err != nil {
			skipped++
			return
		}
		if !ok {
			// Row links to the "no sessions available" page; not an error.
			return
		}
		courses = append(courses, course)
	})

	return courses, skipped, nil
}

// parseRow turns one table row into a course. ok=false means the row is
// well-formed but not bookable.
func (c *Catalog) parseRow(row *goquery.Selection, headers map[string]int) (models.Course, bool, error) {
	cells := row.Find("td")

	cell := func(name string) string {
		return strings.TrimSpace(cells.Eq(headers[name]).Text())
	}

	href, ok := cells.Eq(headers[headerSignup]).Find("a").First().Attr("href")
	if !ok {
		return models.Course{}, false, fmt.Errorf("signup cell has no link")
	}
	link, err := url.Parse(href)
	if err != nil {
		return models.Course{}, false, fmt.Errorf("invalid signup link: %w", err)
	}
	if link.Path != c.signupPath {
		return models.Course{}, false, nil
	}
	idString := link.Query().Get("Kursid")
	if idString == "" {
		return models.Course{}, false, nil
	}
	id, err := strconv.ParseInt(idString, 10, 64)
	if err != nil {
		return models.Course{}, false, fmt.Errorf("invalid Kursid %q: %w", idString, err)
	}

	// Date is "d.m.yy" in the provider's zone, time of day "HH:MM-HH:MM".
	dateParts := strings.Split(cell(headerDate), ".")
	if len(dateParts) != 3 {
		return models.Course{}, false, fmt.Errorf("cannot split date %q", cell(headerDate))
	}
	date := fmt.Sprintf("%s.%s.20%s", dateParts[0], dateParts[1], dateParts[2])

	startOfDay, endOfDay, found := strings.Cut(cell(headerTime), "-")
	if !found {
		return models.Course{}, false, fmt.Errorf("cannot split time %q", cell(headerTime))
	}

	startTime, err := time.ParseInLocation("2.1.2006 15:04", date+" "+strings.TrimSpace(startOfDay), listingZone)
	if err != nil {
		return models.Course{}, false, fmt.Errorf("invalid start time: %w", err)
	}
	endTime, err := time.ParseInLocation("2.1.2006 15:04", date+" "+strings.TrimSpace(endOfDay), listingZone)
	if err != nil {
		return models.Course{}, false, fmt.Errorf("invalid end time: %w", err)
	}

	return models.Course{
		ID:        id,
		URL:       href,
		StartTime: startTime.UTC(),
		EndTime:   endTime.UTC(),
		Level:     cell(headerLevel),
		Location:  cell(headerLocation),
		Trainer:   cell(headerTrainer),
	}, true, nil
}
