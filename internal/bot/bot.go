package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"unisport-bot/internal/models"
)

type Bot struct {
	API *tgbotapi.BotAPI
}

func New(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Bot{API: api}, nil
}

func (b *Bot) SendMessage(chatID int64, text string, replyMarkup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyMarkup != nil {
		msg.ReplyMarkup = replyMarkup
	}

	_, err := b.API.Send(msg)
	return err
}

func (b *Bot) EditMessage(chatID int64, messageID int, text string, replyMarkup interface{}) error {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if replyMarkup != nil {
		if markup, ok := replyMarkup.(*tgbotapi.InlineKeyboardMarkup); ok {
			msg.ReplyMarkup = markup
		}
	}

	_, err := b.API.Send(msg)
	return err
}

func (b *Bot) SendText(chatID int64, text string) error {
	return b.SendMessage(chatID, text, nil)
}

// SendSignupPrompt asks one chat whether to book the course today.
func (b *Bot) SendSignupPrompt(chatID int64, course *models.Course) error {
	text := "Heute findet wieder folgender Kurs statt:\n\n" + course.DisplayText() + "\n\nBist du dabei?"
	return b.SendMessage(chatID, text, SignupKeyboard(course.ID))
}

func (b *Bot) AnswerCallbackQuery(callbackID string, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := b.API.Request(callback)
	return err
}

// IsPermanentSendError reports whether a send failure means the recipient is
// gone for good (blocked the bot or deleted the account). The Bot API only
// signals this through error text, so this is a phrase match by necessity.
func IsPermanentSendError(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	return strings.Contains(text, "bot was blocked by the user") ||
		strings.Contains(text, "user is deactivated") ||
		strings.Contains(text, "chat not found")
}

// Keyboard builders

func GenderKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, gender := range models.AllGenders() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(gender.Pretty(), string(gender)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func StatusKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, status := range models.AllStatuses() {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(status.Pretty(), string(status)),
		})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func SignupKeyboard(courseID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Aber sowas von!", fmt.Sprintf("signup:accept:%d", courseID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Heute leider nicht.", fmt.Sprintf("signup:decline:%d", courseID)),
		),
	)
}
