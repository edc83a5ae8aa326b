// Package notifier drives the daily notification run: for one course, every
// participant is told about it exactly once, either by an automatic booking
// or by a prompt they answer in the chat.
package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"unisport-bot/internal/dialog"
	"unisport-bot/internal/models"
	"unisport-bot/internal/provider"
	"unisport-bot/pkg/logger"
)

// Store is the persistence slice the scheduler needs.
type Store interface {
	UninformedParticipants(courseID int64) ([]models.Participant, error)
	SetSignupStatus(participantID, courseID int64, status models.SignupStatus) error
	PurgeParticipant(chatID int64) error
}

// Sender delivers chat messages.
type Sender interface {
	SendText(chatID int64, text string) error
	SendSignupPrompt(chatID int64, course *models.Course) error
}

// Registrar performs the actual booking against the provider.
type Registrar interface {
	Register(ctx context.Context, p *models.Participant, courseID int64) (provider.Outcome, error)
}

// PermanentSendError reports whether a send failure means the chat is gone
// for good, so the participant should be purged instead of retried.
type PermanentSendError func(err error) bool

// Report summarizes one run for the operator log.
type Report struct {
	Candidates     int
	Prompted       int
	AutoSignedUp   int
	AutoFailed     int
	SkippedBusy    int
	SkippedNoState int
	Purged         int
	SendFailures   int
}

type Scheduler struct {
	store       Store
	dialogs     dialog.Store
	sender      Sender
	registrar   Registrar
	isPermanent PermanentSendError
	sendDelay   time.Duration
	log         *zap.Logger
}

func NewScheduler(store Store, dialogs dialog.Store, sender Sender, registrar Registrar, isPermanent PermanentSendError, sendDelay time.Duration, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.L()
	}
	return &Scheduler{
		store:       store,
		dialogs:     dialogs,
		sender:      sender,
		registrar:   registrar,
		isPermanent: isPermanent,
		sendDelay:   sendDelay,
		log:         log,
	}
}

// Run notifies every uninformed participant about the course. After a
// successful send the signup row is written before the awaiting state, so
// the state never claims an answer is pending for a row that does not
// exist. Participants mid-conversation are skipped and picked up by the
// next run; participants without any stored dialog state are skipped and
// logged, that combination should not exist.
func (s *Scheduler) Run(ctx context.Context, course *models.Course) (Report, error) {
	var report Report

	candidates, err := s.store.UninformedParticipants(course.ID)
	if err != nil {
		return report, err
	}
	report.Candidates = len(candidates)

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p := &candidates[i]

		// Automatic booking needs no answer, so it bypasses the dialog gate.
		if p.AutoSignup {
			s.autoSignup(ctx, p, course, &report)
			if err := s.pace(ctx); err != nil {
				return report, err
			}
			continue
		}

		state, found, err := s.dialogs.Get(ctx, p.ChatID)
		if err != nil {
			return report, err
		}
		if !found {
			s.log.Warn("participant has no dialog state, skipping",
				zap.Int64(logger.FieldChatID, p.ChatID),
				zap.Int64(logger.FieldCourseID, course.ID),
			)
			report.SkippedNoState++
			continue
		}
		if !state.IsIdle() {
			report.SkippedBusy++
			continue
		}

		s.prompt(ctx, p, course, &report)

		if err := s.pace(ctx); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (s *Scheduler) autoSignup(ctx context.Context, p *models.Participant, course *models.Course, report *Report) {
	outcome, err := s.registrar.Register(ctx, p, course.ID)
	if err != nil {
		// Connectivity trouble leaves no signup row, so the next run
		// retries this participant.
		s.log.Error("automatic signup failed",
			zap.Int64(logger.FieldChatID, p.ChatID),
			zap.Int64(logger.FieldCourseID, course.ID),
			zap.Error(err),
		)
		report.AutoFailed++
		return
	}

	status := models.SignupNotified
	if outcome == provider.OutcomeSuccess {
		status = models.SignupSignedUp
	}
	if err := s.store.SetSignupStatus(p.ChatID, course.ID, status); err != nil {
		s.log.Error("failed to record signup status",
			zap.Int64(logger.FieldChatID, p.ChatID),
			zap.Int64(logger.FieldCourseID, course.ID),
			zap.Error(err),
		)
		report.AutoFailed++
		return
	}

	if outcome == provider.OutcomeSuccess {
		report.AutoSignedUp++
	} else {
		report.AutoFailed++
	}
	s.deliver(ctx, p, course, report, func() error {
		return s.sender.SendText(p.ChatID, "Automatische Anmeldung:\n\n"+course.DisplayText()+"\n\n"+outcome.Message())
	})
}

func (s *Scheduler) prompt(ctx context.Context, p *models.Participant, course *models.Course, report *Report) {
	// A transient send failure writes nothing, so the participant stays in
	// the candidate set for the next run.
	delivered, _ := s.deliver(ctx, p, course, report, func() error {
		return s.sender.SendSignupPrompt(p.ChatID, course)
	})
	if !delivered {
		return
	}

	if err := s.store.SetSignupStatus(p.ChatID, course.ID, models.SignupNotified); err != nil {
		// The prompt is out but not recorded; the next run may repeat it.
		// Detectable in the log, nothing sane to do here.
		s.log.Error("failed to record notification",
			zap.Int64(logger.FieldChatID, p.ChatID),
			zap.Int64(logger.FieldCourseID, course.ID),
			zap.Error(err),
		)
		return
	}
	if err := s.dialogs.Set(ctx, p.ChatID, dialog.State{Kind: dialog.KindAwaitingSignup, CourseID: course.ID}); err != nil {
		// The row exists, so the answer can still arrive via /signup.
		s.log.Error("failed to set awaiting state",
			zap.Int64(logger.FieldChatID, p.ChatID),
			zap.Int64(logger.FieldCourseID, course.ID),
			zap.Error(err),
		)
	}
	report.Prompted++
}

// deliver runs send and handles the permanently-gone case by purging the
// participant. It returns whether the message reached the chat and whether
// the participant was purged.
func (s *Scheduler) deliver(ctx context.Context, p *models.Participant, course *models.Course, report *Report, send func() error) (delivered, purged bool) {
	err := send()
	if err == nil {
		return true, false
	}

	if s.isPermanent != nil && s.isPermanent(err) {
		s.log.Info("chat is gone, purging participant",
			zap.Int64(logger.FieldChatID, p.ChatID),
			zap.Error(err),
		)
		if purgeErr := s.store.PurgeParticipant(p.ChatID); purgeErr != nil {
			s.log.Error("failed to purge participant",
				zap.Int64(logger.FieldChatID, p.ChatID),
				zap.Error(purgeErr),
			)
			report.SendFailures++
			return false, false
		}
		if stateErr := s.dialogs.Delete(ctx, p.ChatID); stateErr != nil {
			s.log.Error("failed to delete dialog state",
				zap.Int64(logger.FieldChatID, p.ChatID),
				zap.Error(stateErr),
			)
		}
		report.Purged++
		return false, true
	}

	s.log.Error("failed to send notification",
		zap.Int64(logger.FieldChatID, p.ChatID),
		zap.Int64(logger.FieldCourseID, course.ID),
		zap.Error(err),
	)
	report.SendFailures++
	return false, false
}

// pace spreads sends out so the Bot API rate limit is never hit.
func (s *Scheduler) pace(ctx context.Context) error {
	if s.sendDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.sendDelay):
		return nil
	}
}
