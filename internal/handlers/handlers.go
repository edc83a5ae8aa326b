// Package handlers contains the Telegram-facing conversation logic: command
// dispatch, the guided data-entry flow, single-field edits and the inline
// keyboard callbacks, all keyed off the dialog state in Redis.
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"unisport-bot/internal/bot"
	"unisport-bot/internal/dialog"
	"unisport-bot/internal/models"
	"unisport-bot/internal/provider"
	"unisport-bot/pkg/logger"
)

const (
	msgNotUnderstood = "Das habe ich nicht verstanden. Mit /help siehst du, was ich kann."
	msgNoProfile     = "Ich kenne dich noch nicht. Leg mit /enter_data los."
	msgCancelled     = "Okay, abgebrochen."
	msgUseButtons    = "Bitte benutze die Knöpfe unter der Nachricht."
	msgNoCourseToday = "Heute findet kein Kurs statt."
	msgInternalError = "Da ist etwas schiefgelaufen. Versuch es später noch einmal."

	helpText = `Ich melde dich beim Hochschulsport an.

/enter_data - Deine Daten eingeben
/show_data - Deine Daten anzeigen
/delete_data - Deine Daten löschen
/signup - Für den heutigen Kurs anmelden
/toggle_auto_signup - Automatische Anmeldung ein- oder ausschalten
/cancel - Aktuelle Eingabe abbrechen
/help - Diese Übersicht`
)

// Messenger is the slice of the bot the handlers send through.
type Messenger interface {
	SendMessage(chatID int64, text string, replyMarkup interface{}) error
	EditMessage(chatID int64, messageID int, text string, replyMarkup interface{}) error
	AnswerCallbackQuery(callbackID string, text string) error
}

// Store is the persistence slice the handlers need.
type Store interface {
	GetOrCreateParticipant(chatID int64) (*models.Participant, error)
	GetParticipant(chatID int64) (*models.Participant, error)
	UpdateParticipant(p *models.Participant) error
	PurgeParticipant(chatID int64) error
	CourseBetween(from, to time.Time) (*models.Course, error)
	GetCourse(id int64) (*models.Course, error)
	GetSignup(participantID, courseID int64) (*models.Signup, error)
	SetSignupStatus(participantID, courseID int64, status models.SignupStatus) error
}

// Registrar performs the booking against the provider.
type Registrar interface {
	Register(ctx context.Context, p *models.Participant, courseID int64) (provider.Outcome, error)
}

type Handler struct {
	messenger Messenger
	store     Store
	dialogs   dialog.Store
	registrar Registrar
	log       *zap.Logger
}

func New(messenger Messenger, store Store, dialogs dialog.Store, registrar Registrar, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.L()
	}
	return &Handler{
		messenger: messenger,
		store:     store,
		dialogs:   dialogs,
		registrar: registrar,
		log:       log,
	}
}

// HandleUpdate routes one Telegram update. Errors are logged and answered
// with a generic apology; the update loop never sees them.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	var chatID int64

	switch {
	case update.CallbackQuery != nil:
		chatID = update.CallbackQuery.Message.Chat.ID
		err = h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		chatID = update.Message.Chat.ID
		err = h.handleCommand(ctx, update.Message)
	case update.Message != nil:
		chatID = update.Message.Chat.ID
		err = h.handleMessage(ctx, update.Message)
	default:
		return
	}

	if err != nil {
		h.log.Error("update handling failed",
			zap.Int64(logger.FieldChatID, chatID),
			zap.Error(err),
		)
		_ = h.messenger.SendMessage(chatID, msgInternalError, nil)
	}
}

// Commands

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		return h.commandStart(ctx, chatID)
	case "help":
		return h.messenger.SendMessage(chatID, helpText, nil)
	case "enter_data":
		return h.commandEnterData(ctx, chatID)
	case "show_data":
		return h.commandShowData(chatID)
	case "delete_data":
		return h.commandDeleteData(ctx, chatID)
	case "signup":
		return h.commandSignup(ctx, chatID)
	case "toggle_auto_signup":
		return h.commandToggleAutoSignup(chatID)
	case "cancel":
		return h.commandCancel(ctx, chatID)
	}

	if field, ok := editableField(msg.Command()); ok {
		return h.commandEdit(ctx, chatID, field)
	}
	return h.messenger.SendMessage(chatID, msgNotUnderstood, nil)
}

func (h *Handler) commandStart(ctx context.Context, chatID int64) error {
	if _, err := h.store.GetOrCreateParticipant(chatID); err != nil {
		return err
	}
	if _, found, err := h.dialogs.Get(ctx, chatID); err != nil {
		return err
	} else if !found {
		if err := h.dialogs.Set(ctx, chatID, dialog.Idle()); err != nil {
			return err
		}
	}
	return h.messenger.SendMessage(chatID, "Hallo! "+helpText, nil)
}

func (h *Handler) commandEnterData(ctx context.Context, chatID int64) error {
	if _, err := h.store.GetOrCreateParticipant(chatID); err != nil {
		return err
	}
	if err := h.dialogs.Set(ctx, chatID, dialog.State{Kind: dialog.KindEntering, Field: dialog.FieldGivenName}); err != nil {
		return err
	}
	return h.askField(chatID, dialog.FieldGivenName, nil)
}

func (h *Handler) commandShowData(chatID int64) error {
	p, err := h.store.GetParticipant(chatID)
	if err != nil {
		return h.messenger.SendMessage(chatID, msgNoProfile, nil)
	}
	text := p.DisplayText()
	if p.AutoSignup {
		text += "\n\nAutomatische Anmeldung: an (/toggle_auto_signup)"
	} else {
		text += "\n\nAutomatische Anmeldung: aus (/toggle_auto_signup)"
	}
	return h.messenger.SendMessage(chatID, text, nil)
}

func (h *Handler) commandDeleteData(ctx context.Context, chatID int64) error {
	if err := h.store.PurgeParticipant(chatID); err != nil {
		return err
	}
	if err := h.dialogs.Delete(ctx, chatID); err != nil {
		return err
	}
	return h.messenger.SendMessage(chatID, "Alle deine Daten sind gelöscht.", nil)
}

func (h *Handler) commandToggleAutoSignup(chatID int64) error {
	p, err := h.store.GetParticipant(chatID)
	if err != nil {
		return h.messenger.SendMessage(chatID, msgNoProfile, nil)
	}
	p.AutoSignup = !p.AutoSignup
	if err := h.store.UpdateParticipant(p); err != nil {
		return err
	}
	if p.AutoSignup {
		return h.messenger.SendMessage(chatID, "Automatische Anmeldung ist jetzt an. Ich melde dich ab sofort selbst an.", nil)
	}
	return h.messenger.SendMessage(chatID, "Automatische Anmeldung ist jetzt aus. Ich frage dich vor jeder Anmeldung.", nil)
}

func (h *Handler) commandCancel(ctx context.Context, chatID int64) error {
	if err := h.dialogs.Set(ctx, chatID, dialog.Idle()); err != nil {
		return err
	}
	return h.messenger.SendMessage(chatID, msgCancelled, nil)
}

// commandSignup books today's course on demand, for example after a declined
// prompt or a failed earlier attempt. The signup row keeps the anti-join from
// re-notifying either way.
func (h *Handler) commandSignup(ctx context.Context, chatID int64) error {
	p, err := h.store.GetParticipant(chatID)
	if err != nil {
		return h.messenger.SendMessage(chatID, msgNoProfile, nil)
	}

	from, to := models.ProviderDayBounds(time.Now())
	course, err := h.store.CourseBetween(from, to)
	if err != nil {
		return err
	}
	if course == nil {
		return h.messenger.SendMessage(chatID, msgNoCourseToday, nil)
	}

	signup, err := h.store.GetSignup(chatID, course.ID)
	if err != nil {
		return err
	}
	if signup != nil && signup.Status == models.SignupSignedUp {
		return h.messenger.SendMessage(chatID, "Du bist für heute schon angemeldet.", nil)
	}

	return h.register(ctx, p, course.ID)
}

func (h *Handler) commandEdit(ctx context.Context, chatID int64, field dialog.Field) error {
	p, err := h.store.GetParticipant(chatID)
	if err != nil {
		return h.messenger.SendMessage(chatID, msgNoProfile, nil)
	}
	if field == dialog.FieldStatusRelatedInfo && p.StatusRelatedInfoName() == "" {
		return h.messenger.SendMessage(chatID, "Für deinen Status gibt es keine Zusatzangabe.", nil)
	}
	if err := h.dialogs.Set(ctx, chatID, dialog.State{Kind: dialog.KindEditing, Field: field}); err != nil {
		return err
	}
	return h.askField(chatID, field, p)
}

func editableField(command string) (dialog.Field, bool) {
	name, ok := strings.CutPrefix(command, "edit_")
	if !ok {
		return "", false
	}
	field := dialog.Field(name)
	switch field {
	case dialog.FieldGivenName, dialog.FieldLastName, dialog.FieldGender,
		dialog.FieldStreet, dialog.FieldCity, dialog.FieldPhone,
		dialog.FieldEmail, dialog.FieldStatus, dialog.FieldStatusRelatedInfo:
		return field, true
	}
	return "", false
}

// Free-text messages

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	state, found, err := h.dialogs.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if !found || state.IsIdle() {
		return h.messenger.SendMessage(chatID, msgNotUnderstood, nil)
	}

	switch state.Kind {
	case dialog.KindEntering, dialog.KindEditing:
		return h.handleFieldInput(ctx, chatID, state, strings.TrimSpace(msg.Text))
	case dialog.KindAwaitingSignup:
		return h.messenger.SendMessage(chatID, msgUseButtons, nil)
	}
	return h.messenger.SendMessage(chatID, msgNotUnderstood, nil)
}

func (h *Handler) handleFieldInput(ctx context.Context, chatID int64, state dialog.State, text string) error {
	// Gender and status only come in via the inline keyboards.
	if state.Field == dialog.FieldGender || state.Field == dialog.FieldStatus {
		return h.askField(chatID, state.Field, nil)
	}
	if text == "" {
		return h.askField(chatID, state.Field, nil)
	}

	p, err := h.store.GetParticipant(chatID)
	if err != nil {
		return err
	}
	setField(p, state.Field, text)
	if err := h.store.UpdateParticipant(p); err != nil {
		return err
	}

	if state.Kind == dialog.KindEditing {
		return h.finishEdit(ctx, chatID)
	}
	return h.advanceEntry(ctx, chatID, p, state.Field)
}

// advanceEntry moves the guided flow to the next field, skipping the
// supplementary field when the chosen status has none.
func (h *Handler) advanceEntry(ctx context.Context, chatID int64, p *models.Participant, current dialog.Field) error {
	next, ok := nextEntryField(current)
	if ok && next == dialog.FieldStatusRelatedInfo && p.StatusRelatedInfoName() == "" {
		ok = false
	}
	if !ok {
		return h.finishEntry(ctx, chatID, p)
	}
	if err := h.dialogs.Set(ctx, chatID, dialog.State{Kind: dialog.KindEntering, Field: next}); err != nil {
		return err
	}
	return h.askField(chatID, next, p)
}

func (h *Handler) finishEntry(ctx context.Context, chatID int64, p *models.Participant) error {
	if err := h.dialogs.Set(ctx, chatID, dialog.Idle()); err != nil {
		return err
	}
	return h.messenger.SendMessage(chatID, "Das war's, danke!\n\n"+p.DisplayText(), nil)
}

func (h *Handler) finishEdit(ctx context.Context, chatID int64) error {
	if err := h.dialogs.Set(ctx, chatID, dialog.Idle()); err != nil {
		return err
	}
	return h.messenger.SendMessage(chatID, "Gespeichert.", nil)
}

var entryOrder = []dialog.Field{
	dialog.FieldGivenName,
	dialog.FieldLastName,
	dialog.FieldGender,
	dialog.FieldStreet,
	dialog.FieldCity,
	dialog.FieldPhone,
	dialog.FieldEmail,
	dialog.FieldStatus,
	dialog.FieldStatusRelatedInfo,
}

func nextEntryField(current dialog.Field) (dialog.Field, bool) {
	for i, f := range entryOrder {
		if f == current && i+1 < len(entryOrder) {
			return entryOrder[i+1], true
		}
	}
	return "", false
}

// askField prompts for one field. The participant is only needed for the
// supplementary field, whose wording depends on the status; nil is fine for
// every other field.
func (h *Handler) askField(chatID int64, field dialog.Field, p *models.Participant) error {
	switch field {
	case dialog.FieldGivenName:
		return h.messenger.SendMessage(chatID, "Bitte gib deinen Vornamen ein.", nil)
	case dialog.FieldLastName:
		return h.messenger.SendMessage(chatID, "Bitte gib deinen Nachnamen ein.", nil)
	case dialog.FieldGender:
		return h.messenger.SendMessage(chatID, "Bitte wähle dein Geschlecht.", bot.GenderKeyboard())
	case dialog.FieldStreet:
		return h.messenger.SendMessage(chatID, "Bitte gib deine Straße und Hausnummer ein.", nil)
	case dialog.FieldCity:
		return h.messenger.SendMessage(chatID, "Bitte gib deine Postleitzahl und deinen Ort ein.", nil)
	case dialog.FieldPhone:
		return h.messenger.SendMessage(chatID, "Bitte gib deine Telefonnummer ein.", nil)
	case dialog.FieldEmail:
		return h.messenger.SendMessage(chatID, "Bitte gib deine E-Mail-Adresse ein.", nil)
	case dialog.FieldStatus:
		return h.messenger.SendMessage(chatID, "Bitte wähle deinen Status.", bot.StatusKeyboard())
	case dialog.FieldStatusRelatedInfo:
		name := "Zusatzangabe"
		if p != nil && p.StatusRelatedInfoName() != "" {
			name = p.StatusRelatedInfoName()
		}
		return h.messenger.SendMessage(chatID, fmt.Sprintf("Bitte gib deine %s ein.", name), nil)
	}
	return h.messenger.SendMessage(chatID, msgNotUnderstood, nil)
}

func setField(p *models.Participant, field dialog.Field, text string) {
	switch field {
	case dialog.FieldGivenName:
		p.GivenName = text
	case dialog.FieldLastName:
		p.LastName = text
	case dialog.FieldStreet:
		p.Street = text
	case dialog.FieldCity:
		p.City = text
	case dialog.FieldPhone:
		p.Phone = text
	case dialog.FieldEmail:
		p.Email = text
	case dialog.FieldStatusRelatedInfo:
		if p.Status.IsStudent() {
			p.MatriculationNumber = text
		} else if p.Status.IsUniversityEmployee() {
			p.BusinessPhone = text
		}
	}
}

// Callback queries

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	chatID := cb.Message.Chat.ID
	data := cb.Data

	if err := h.messenger.AnswerCallbackQuery(cb.ID, ""); err != nil {
		h.log.Warn("failed to answer callback query",
			zap.Int64(logger.FieldChatID, chatID),
			zap.Error(err),
		)
	}

	if strings.HasPrefix(data, "signup:") {
		return h.handleSignupResponse(ctx, cb)
	}

	state, found, err := h.dialogs.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if !found || (state.Kind != dialog.KindEntering && state.Kind != dialog.KindEditing) {
		return nil
	}

	switch state.Field {
	case dialog.FieldGender:
		return h.handleGenderChoice(ctx, cb, state)
	case dialog.FieldStatus:
		return h.handleStatusChoice(ctx, cb, state)
	}
	return nil
}

func (h *Handler) handleGenderChoice(ctx context.Context, cb *tgbotapi.CallbackQuery, state dialog.State) error {
	chatID := cb.Message.Chat.ID
	gender := models.Gender(cb.Data)
	if gender.Payload() == "" {
		return nil
	}

	p, err := h.store.GetParticipant(chatID)
	if err != nil {
		return err
	}
	p.Gender = gender
	if err := h.store.UpdateParticipant(p); err != nil {
		return err
	}
	if err := h.messenger.EditMessage(chatID, cb.Message.MessageID, "Geschlecht: "+gender.Pretty(), nil); err != nil {
		return err
	}

	if state.Kind == dialog.KindEditing {
		return h.finishEdit(ctx, chatID)
	}
	return h.advanceEntry(ctx, chatID, p, dialog.FieldGender)
}

func (h *Handler) handleStatusChoice(ctx context.Context, cb *tgbotapi.CallbackQuery, state dialog.State) error {
	chatID := cb.Message.Chat.ID
	status := models.Status(cb.Data)
	if status.Payload() == "" {
		return nil
	}

	p, err := h.store.GetParticipant(chatID)
	if err != nil {
		return err
	}
	p.Status = status
	if err := h.store.UpdateParticipant(p); err != nil {
		return err
	}
	if err := h.messenger.EditMessage(chatID, cb.Message.MessageID, "Status: "+status.Pretty(), nil); err != nil {
		return err
	}

	if state.Kind == dialog.KindEditing {
		// Changing the status usually changes the supplementary field too,
		// so the edit continues there instead of finishing.
		if p.StatusRelatedInfoName() == "" {
			return h.finishEdit(ctx, chatID)
		}
		if err := h.dialogs.Set(ctx, chatID, dialog.State{Kind: dialog.KindEditing, Field: dialog.FieldStatusRelatedInfo}); err != nil {
			return err
		}
		return h.askField(chatID, dialog.FieldStatusRelatedInfo, p)
	}
	return h.advanceEntry(ctx, chatID, p, dialog.FieldStatus)
}

func (h *Handler) handleSignupResponse(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	chatID := cb.Message.Chat.ID

	parts := strings.Split(cb.Data, ":")
	if len(parts) != 3 {
		return nil
	}
	courseID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil
	}

	state, found, err := h.dialogs.Get(ctx, chatID)
	if err != nil {
		return err
	}
	// A stale button from an old prompt; the decision for that course has
	// already been made.
	if !found || state.Kind != dialog.KindAwaitingSignup || state.CourseID != courseID {
		return h.messenger.EditMessage(chatID, cb.Message.MessageID, cb.Message.Text, nil)
	}

	if err := h.messenger.EditMessage(chatID, cb.Message.MessageID, cb.Message.Text, nil); err != nil {
		return err
	}
	if err := h.dialogs.Set(ctx, chatID, dialog.Idle()); err != nil {
		return err
	}

	switch parts[1] {
	case "accept":
		p, err := h.store.GetParticipant(chatID)
		if err != nil {
			return err
		}
		return h.register(ctx, p, courseID)
	case "decline":
		if err := h.store.SetSignupStatus(chatID, courseID, models.SignupRejected); err != nil {
			return err
		}
		return h.messenger.SendMessage(chatID, "Alles klar, dann bis zum nächsten Mal!", nil)
	}
	return nil
}

// register runs the provider exchange and records the result. Anything short
// of success leaves the row at Notified so /signup can try again.
func (h *Handler) register(ctx context.Context, p *models.Participant, courseID int64) error {
	if err := h.messenger.SendMessage(p.ChatID, "Einen Moment, ich melde dich an ...", nil); err != nil {
		return err
	}

	outcome, err := h.registrar.Register(ctx, p, courseID)
	if err != nil {
		h.log.Error("signup attempt failed",
			zap.Int64(logger.FieldChatID, p.ChatID),
			zap.Int64(logger.FieldCourseID, courseID),
			zap.Error(err),
		)
		if recErr := h.store.SetSignupStatus(p.ChatID, courseID, models.SignupNotified); recErr != nil {
			return recErr
		}
		return h.messenger.SendMessage(p.ChatID, "Die Anmeldeseite ist gerade nicht erreichbar. Versuch es mit /signup noch einmal.", nil)
	}

	status := models.SignupNotified
	if outcome == provider.OutcomeSuccess {
		status = models.SignupSignedUp
	}
	if err := h.store.SetSignupStatus(p.ChatID, courseID, status); err != nil {
		return err
	}

	h.log.Info("signup attempt finished",
		zap.Int64(logger.FieldChatID, p.ChatID),
		zap.Int64(logger.FieldCourseID, courseID),
		zap.String(logger.FieldOperation, outcome.String()),
	)
	return h.messenger.SendMessage(p.ChatID, outcome.Message(), nil)
}
