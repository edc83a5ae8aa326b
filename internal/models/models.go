package models

import (
	"fmt"
	"time"
)

// FieldPair is one provider form field in submit order.
type FieldPair struct {
	Name  string
	Value string
}

type Gender string

const (
	GenderMale    Gender = "Male"
	GenderFemale  Gender = "Female"
	GenderDiverse Gender = "Diverse"
)

func AllGenders() []Gender {
	return []Gender{GenderMale, GenderFemale, GenderDiverse}
}

// Payload is the provider's wire code for the gender field.
func (g Gender) Payload() string {
	switch g {
	case GenderMale:
		return "M"
	case GenderFemale:
		return "W"
	case GenderDiverse:
		return "D"
	}
	return ""
}

func (g Gender) Pretty() string {
	switch g {
	case GenderMale:
		return "Männlich"
	case GenderFemale:
		return "Weiblich"
	case GenderDiverse:
		return "Divers"
	}
	return ""
}

type Status string

const (
	StatusStudentUniKoeln       Status = "StudentUniKoeln"
	StatusStudentDSHSKoeln      Status = "StudentDSHSKoeln"
	StatusStudentTHKoeln        Status = "StudentTHKoeln"
	StatusStudentMacromedia     Status = "StudentMacromediaKoeln"
	StatusStudentKHM            Status = "StudentKunsthochschuleFuerMedien"
	StatusStudentHMKW           Status = "StudentHMKW"
	StatusStudentHfMT           Status = "StudentHochschuleFuerMusikKoeln"
	StatusStudentOther          Status = "StudentAndereHochschulen"
	StatusEmployeeStateColleges Status = "BeschaeftigteStaatlicherKoelnerHochschulen"
	StatusEmployeeUniKlinik     Status = "BeschaeftigteUniKlinikKoeln"
	StatusEmployeeStudierenden  Status = "BeschaeftigteKoelnerStudierendenwerk"
	StatusAlumni                Status = "MitgliedKoelnAlumni"
	StatusTraineeUniKoeln       Status = "AzubiUniKoeln"
	StatusTraineeUniKlinik      Status = "AzubiUniKlinik"
	StatusTraineeStudierenden   Status = "AzubiKoelnerStudierendenwerk"
	StatusGuest                 Status = "Gast"
)

func AllStatuses() []Status {
	return []Status{
		StatusStudentUniKoeln,
		StatusStudentDSHSKoeln,
		StatusStudentTHKoeln,
		StatusStudentMacromedia,
		StatusStudentKHM,
		StatusStudentHMKW,
		StatusStudentHfMT,
		StatusStudentOther,
		StatusEmployeeStateColleges,
		StatusEmployeeUniKlinik,
		StatusEmployeeStudierenden,
		StatusAlumni,
		StatusTraineeUniKoeln,
		StatusTraineeUniKlinik,
		StatusTraineeStudierenden,
		StatusGuest,
	}
}

// Payload is the provider's wire code for the Statusorig field.
func (s Status) Payload() string {
	switch s {
	case StatusStudentUniKoeln:
		return "S-UNI"
	case StatusStudentDSHSKoeln:
		return "S-DSHS"
	case StatusStudentTHKoeln:
		return "S-TH"
	case StatusStudentMacromedia:
		return "S-MAC"
	case StatusStudentKHM:
		return "S-KHSM"
	case StatusStudentHMKW:
		return "S-HMKW"
	case StatusStudentHfMT:
		return "S-MH"
	case StatusStudentOther:
		return "S-aH"
	case StatusEmployeeStateColleges:
		return "B-SFH"
	case StatusEmployeeUniKlinik:
		return "B-UK"
	case StatusEmployeeStudierenden:
		return "B-KStW"
	case StatusAlumni:
		return "Alumni"
	case StatusTraineeUniKoeln:
		return "A-Uni"
	case StatusTraineeUniKlinik:
		return "A-UK"
	case StatusTraineeStudierenden:
		return "A-KSTW"
	case StatusGuest:
		return "Extern"
	}
	return ""
}

func (s Status) Pretty() string {
	switch s {
	case StatusStudentUniKoeln:
		return "Stud. Uni Köln"
	case StatusStudentDSHSKoeln:
		return "Stud. DSHS Köln"
	case StatusStudentTHKoeln:
		return "Stud. TH Köln"
	case StatusStudentMacromedia:
		return "Stud. Macromedia Köln"
	case StatusStudentKHM:
		return "Stud. KHM Köln"
	case StatusStudentHMKW:
		return "Stud. HMKW Köln"
	case StatusStudentHfMT:
		return "Stud. HfMT Köln"
	case StatusStudentOther:
		return "Stud. anderer Hochschulen"
	case StatusEmployeeStateColleges:
		return "Beschäft. staatl. Kölner Hochschulen"
	case StatusEmployeeUniKlinik:
		return "Beschäft. UniKlinik Köln"
	case StatusEmployeeStudierenden:
		return "Beschäft. Kölner Studierendenwerk"
	case StatusAlumni:
		return "Mitglied von KölnAlumni"
	case StatusTraineeUniKoeln:
		return "Azubi Uni Köln"
	case StatusTraineeUniKlinik:
		return "Azubi UniKlinik Köln"
	case StatusTraineeStudierenden:
		return "Azubi Kölner Studierendenwerk"
	case StatusGuest:
		return "Gast"
	}
	return ""
}

// StatusByPretty resolves a keyboard label back to its status value.
func StatusByPretty(label string) (Status, bool) {
	for _, s := range AllStatuses() {
		if s.Pretty() == label {
			return s, true
		}
	}
	return "", false
}

func (s Status) IsStudent() bool {
	switch s {
	case StatusStudentUniKoeln, StatusStudentDSHSKoeln, StatusStudentTHKoeln,
		StatusStudentMacromedia, StatusStudentKHM, StatusStudentHMKW,
		StatusStudentHfMT, StatusStudentOther:
		return true
	}
	return false
}

// IsUniversityEmployee reports whether the status requires a business phone
// number on the provider form instead of a matriculation number.
func (s Status) IsUniversityEmployee() bool {
	switch s {
	case StatusEmployeeStateColleges, StatusEmployeeUniKlinik, StatusEmployeeStudierenden:
		return true
	}
	return false
}

type Participant struct {
	ChatID              int64     `db:"chat_id"`
	GivenName           string    `db:"given_name"`
	LastName            string    `db:"last_name"`
	Gender              Gender    `db:"gender"`
	Street              string    `db:"street"`
	City                string    `db:"city"`
	Phone               string    `db:"phone"`
	Email               string    `db:"email"`
	Status              Status    `db:"status"`
	MatriculationNumber string    `db:"matriculation_number"`
	BusinessPhone       string    `db:"business_phone"`
	AutoSignup          bool      `db:"auto_signup"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// Payload maps the participant onto the provider's form field vocabulary.
// The provider cares about field order, so this is a slice, not a map.
func (p *Participant) Payload() []FieldPair {
	return []FieldPair{
		{Name: "Geschlecht", Value: p.Gender.Payload()},
		{Name: "Vorname", Value: p.GivenName},
		{Name: "Name", Value: p.LastName},
		{Name: "Strasse", Value: p.Street},
		{Name: "Ort", Value: p.City},
		{Name: "Statusorig", Value: p.Status.Payload()},
		{Name: "Matnr", Value: p.MatriculationNumber},
		{Name: "Institut", Value: p.BusinessPhone},
		{Name: "Mail", Value: p.Email},
		{Name: "Tel", Value: p.Phone},
	}
}

// StatusRelatedInfoName names the supplementary field the participant's
// status requires, or "" if none is needed.
func (p *Participant) StatusRelatedInfoName() string {
	if p.Status.IsStudent() {
		return "Matrikelnummer"
	}
	if p.Status.IsUniversityEmployee() {
		return "Dienstliche Telefonnummer"
	}
	return ""
}

func (p *Participant) StatusRelatedInfo() string {
	if p.Status.IsStudent() {
		return p.MatriculationNumber
	}
	if p.Status.IsUniversityEmployee() {
		return p.BusinessPhone
	}
	return ""
}

func (p *Participant) DisplayText() string {
	return fmt.Sprintf(`Vorname: %s (/edit_given_name)
Nachname: %s (/edit_last_name)
Geschlecht: %s (/edit_gender)
Straße: %s (/edit_street)
Ort: %s (/edit_city)
Telefonnummer: %s (/edit_phone)
E-Mail-Adresse: %s (/edit_email)
Status: %s (/edit_status)
%s: %s (/edit_status_related_info)`,
		p.GivenName, p.LastName, p.Gender.Pretty(), p.Street, p.City,
		p.Phone, p.Email, p.Status.Pretty(),
		p.StatusRelatedInfoName(), p.StatusRelatedInfo())
}

// Course is one bookable occurrence, keyed by the provider-assigned id taken
// from the registration link. Immutable once stored.
type Course struct {
	ID        int64     `db:"id"`
	URL       string    `db:"url"`
	StartTime time.Time `db:"start_time"` // UTC
	EndTime   time.Time `db:"end_time"`   // UTC
	Level     string    `db:"level"`
	Location  string    `db:"location"`
	Trainer   string    `db:"trainer"`
	CreatedAt time.Time `db:"created_at"`
}

// providerZone is the provider's civil time zone; times are stored UTC and
// rendered back into it for display.
var providerZone = loadZone("Europe/Berlin")

func loadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Course) DisplayText() string {
	start := c.StartTime.In(providerZone)
	end := c.EndTime.In(providerZone)
	return fmt.Sprintf("%s\n%s – %s Uhr\n%s\n%s\nKursleitung: %s",
		start.Format("02.01.2006"),
		start.Format("15:04"), end.Format("15:04"),
		c.Level, c.Location, c.Trainer)
}

// ProviderDayBounds returns the UTC instants bounding the provider-local
// civil day containing t.
func ProviderDayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(providerZone)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, providerZone)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

type SignupStatus string

const (
	SignupNotified SignupStatus = "Notified"
	SignupSignedUp SignupStatus = "SignedUp"
	SignupRejected SignupStatus = "Rejected"
)

// Signup is the per (participant, course) registration record. A missing row
// means the participant has not been informed about the course yet.
type Signup struct {
	ParticipantID int64        `db:"participant_id"`
	CourseID      int64        `db:"course_id"`
	Status        SignupStatus `db:"status"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}
