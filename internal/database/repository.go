package database

import (
	"database/sql"
	"fmt"
	"time"

	"unisport-bot/internal/models"
)

const participantColumns = `chat_id, given_name, last_name, gender, street, city, phone, email,
	       status, matriculation_number, business_phone, auto_signup, created_at, updated_at`

func scanParticipant(row interface{ Scan(...interface{}) error }) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(
		&p.ChatID, &p.GivenName, &p.LastName, &p.Gender, &p.Street, &p.City,
		&p.Phone, &p.Email, &p.Status, &p.MatriculationNumber, &p.BusinessPhone,
		&p.AutoSignup, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Participant operations

// GetOrCreateParticipant inserts an empty profile on first interaction and
// returns the stored row either way.
func (db *DB) GetOrCreateParticipant(chatID int64) (*models.Participant, error) {
	p, err := scanParticipant(db.QueryRow(`
		INSERT INTO participants (chat_id)
		VALUES ($1)
		ON CONFLICT (chat_id) DO UPDATE
		SET updated_at = CURRENT_TIMESTAMP
		RETURNING `+participantColumns, chatID))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create participant: %w", err)
	}
	return p, nil
}

func (db *DB) GetParticipant(chatID int64) (*models.Participant, error) {
	return scanParticipant(db.QueryRow(`
		SELECT `+participantColumns+`
		FROM participants
		WHERE chat_id = $1`, chatID))
}

func (db *DB) UpdateParticipant(p *models.Participant) error {
	_, err := db.Exec(`
		UPDATE participants
		SET given_name = $1,
		    last_name = $2,
		    gender = $3,
		    street = $4,
		    city = $5,
		    phone = $6,
		    email = $7,
		    status = $8,
		    matriculation_number = $9,
		    business_phone = $10,
		    auto_signup = $11,
		    updated_at = CURRENT_TIMESTAMP
		WHERE chat_id = $12
	`, p.GivenName, p.LastName, p.Gender, p.Street, p.City, p.Phone, p.Email,
		p.Status, p.MatriculationNumber, p.BusinessPhone, p.AutoSignup, p.ChatID)
	return err
}

// PurgeParticipant removes the participant and every signup row in a single
// transaction, so a permanently unreachable chat never leaves dangling rows.
func (db *DB) PurgeParticipant(chatID int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin purge: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM signups WHERE participant_id = $1`, chatID); err != nil {
		return fmt.Errorf("failed to delete signups: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM participants WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}

	return tx.Commit()
}

// Course operations

// UpsertCourse records a course if it is new. Courses are immutable, so a
// conflicting id is left untouched.
func (db *DB) UpsertCourse(c *models.Course) error {
	_, err := db.Exec(`
		INSERT INTO courses (id, url, start_time, end_time, level, location, trainer)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.URL, c.StartTime, c.EndTime, c.Level, c.Location, c.Trainer)
	return err
}

func (db *DB) GetCourse(id int64) (*models.Course, error) {
	var c models.Course
	err := db.QueryRow(`
		SELECT id, url, start_time, end_time, level, location, trainer, created_at
		FROM courses
		WHERE id = $1`, id).Scan(
		&c.ID, &c.URL, &c.StartTime, &c.EndTime, &c.Level, &c.Location, &c.Trainer, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CourseBetween returns the first course starting in [from, to), or nil when
// there is none.
func (db *DB) CourseBetween(from, to time.Time) (*models.Course, error) {
	var c models.Course
	err := db.QueryRow(`
		SELECT id, url, start_time, end_time, level, location, trainer, created_at
		FROM courses
		WHERE start_time >= $1 AND start_time < $2
		ORDER BY start_time
		LIMIT 1`, from, to).Scan(
		&c.ID, &c.URL, &c.StartTime, &c.EndTime, &c.Level, &c.Location, &c.Trainer, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Signup operations

// UninformedParticipants computes the candidate set for a course: everyone
// without a signup row for it, regardless of that row's status.
func (db *DB) UninformedParticipants(courseID int64) ([]models.Participant, error) {
	rows, err := db.Query(`
		SELECT `+participantColumns+`
		FROM participants p
		WHERE NOT EXISTS (
			SELECT 1 FROM signups s
			WHERE s.participant_id = p.chat_id AND s.course_id = $1
		)
		ORDER BY p.chat_id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

func (db *DB) GetSignup(participantID, courseID int64) (*models.Signup, error) {
	var s models.Signup
	err := db.QueryRow(`
		SELECT participant_id, course_id, status, created_at, updated_at
		FROM signups
		WHERE participant_id = $1 AND course_id = $2`, participantID, courseID).Scan(
		&s.ParticipantID, &s.CourseID, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSignupStatus creates the row on first notification and updates it in
// place afterwards; there is never a second row for the same pair.
func (db *DB) SetSignupStatus(participantID, courseID int64, status models.SignupStatus) error {
	_, err := db.Exec(`
		INSERT INTO signups (participant_id, course_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_id, course_id) DO UPDATE
		SET status = EXCLUDED.status,
		    updated_at = CURRENT_TIMESTAMP
	`, participantID, courseID, status)
	return err
}
