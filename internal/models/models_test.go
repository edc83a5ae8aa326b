package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusPayloadsAreUnique(t *testing.T) {
	seen := map[string]Status{}
	for _, s := range AllStatuses() {
		code := s.Payload()
		require.NotEmpty(t, code, string(s))
		require.NotContains(t, seen, code, "duplicate wire code")
		seen[code] = s
	}
	assert.Equal(t, "S-UNI", StatusStudentUniKoeln.Payload())
	assert.Equal(t, "B-UK", StatusEmployeeUniKlinik.Payload())
	assert.Equal(t, "Extern", StatusGuest.Payload())
}

func TestStatusByPrettyRoundTrips(t *testing.T) {
	for _, s := range AllStatuses() {
		got, ok := StatusByPretty(s.Pretty())
		require.True(t, ok, string(s))
		assert.Equal(t, s, got)
	}
	_, ok := StatusByPretty("Professor")
	assert.False(t, ok)
}

func TestStatusRelatedInfo(t *testing.T) {
	student := &Participant{Status: StatusStudentDSHSKoeln, MatriculationNumber: "1234567", BusinessPhone: "478-0"}
	assert.Equal(t, "Matrikelnummer", student.StatusRelatedInfoName())
	assert.Equal(t, "1234567", student.StatusRelatedInfo())

	employee := &Participant{Status: StatusEmployeeStateColleges, MatriculationNumber: "1234567", BusinessPhone: "478-0"}
	assert.Equal(t, "Dienstliche Telefonnummer", employee.StatusRelatedInfoName())
	assert.Equal(t, "478-0", employee.StatusRelatedInfo())

	guest := &Participant{Status: StatusGuest}
	assert.Empty(t, guest.StatusRelatedInfoName())
	assert.Empty(t, guest.StatusRelatedInfo())
}

func TestParticipantPayloadOrder(t *testing.T) {
	p := &Participant{
		GivenName:           "Jörg",
		LastName:            "Groß",
		Gender:              GenderDiverse,
		Street:              "Musterweg 1",
		City:                "Köln",
		Phone:               "0221123456",
		Email:               "joerg@example.test",
		Status:              StatusTraineeUniKlinik,
		MatriculationNumber: "1234567",
		BusinessPhone:       "478-0",
	}

	var names []string
	for _, f := range p.Payload() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"Geschlecht", "Vorname", "Name", "Strasse", "Ort",
		"Statusorig", "Matnr", "Institut", "Mail", "Tel",
	}, names)

	fields := p.Payload()
	assert.Equal(t, "D", fields[0].Value)
	assert.Equal(t, "A-UK", fields[5].Value)
}

func TestProviderDayBounds(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// CET: local midnight is 23:00 UTC the evening before.
	from, to := ProviderDayBounds(time.Date(2025, 11, 4, 12, 0, 0, 0, berlin))
	assert.Equal(t, time.Date(2025, 11, 3, 23, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC), to)

	// CEST: offset shifts to two hours.
	from, to = ProviderDayBounds(time.Date(2025, 7, 1, 12, 0, 0, 0, berlin))
	assert.Equal(t, time.Date(2025, 6, 30, 22, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 7, 1, 22, 0, 0, 0, time.UTC), to)
}

func TestCourseDisplayTextUsesProviderLocalTime(t *testing.T) {
	course := &Course{
		ID:        42,
		StartTime: time.Date(2025, 11, 4, 17, 30, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 11, 4, 19, 0, 0, 0, time.UTC),
		Level:     "Fußball Level 1",
		Location:  "Halle 2",
		Trainer:   "Martina Musterfrau",
	}

	text := course.DisplayText()
	assert.Contains(t, text, "04.11.2025")
	assert.Contains(t, text, "18:30")
	assert.Contains(t, text, "20:00")
	assert.Contains(t, text, "Halle 2")
}
