package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tarmacbot/tarmac/internal/config"
	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/gateway/event"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// callbackNoop is the callback data used for buttons that are rendered but
// inert (Telegram has no native disabled state for inline buttons).
const callbackNoop = "noop"

type TelegramTransport struct {
	token         string
	updateTimeout int
	eventHandler  EventHandler
	bot           *tgbotapi.BotAPI
	updates       tgbotapi.UpdatesChannel
}

func NewTelegramTransport(token string, eventHandler EventHandler, updateTimeout int) *TelegramTransport {
	if updateTimeout <= 0 {
		updateTimeout = config.DefaultTelegramUpdateTimeout
	}
	return &TelegramTransport{
		token:         token,
		updateTimeout: updateTimeout,
		eventHandler:  eventHandler,
	}
}

func (t *TelegramTransport) Name() string {
	return "telegram"
}

func (t *TelegramTransport) Start(ctx context.Context) error {
	var err error
	t.bot, err = tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return errors.Wrap(err, "failed to init telegram bot")
	}

	slog.Info("Telegram transport started", "user", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.updateTimeout

	t.updates = t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-t.updates:
				t.handleUpdate(ctx, update)
			}
		}
	}()

	return nil
}

func (t *TelegramTransport) Stop(ctx context.Context) error {
	return nil
}

func (t *TelegramTransport) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if t.eventHandler == nil {
		return
	}

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		// Acknowledge so the client stops its spinner, regardless of
		// what the gateway decides to do with the press.
		if _, err := t.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			slog.Debug("Telegram callback ack failed", "error", err)
		}

		if cq.Data == callbackNoop || cq.Message == nil {
			return
		}

		evt := event.New("telegram", event.KindComponent,
			strconv.FormatInt(cq.From.ID, 10),
			strconv.FormatInt(cq.Message.Chat.ID, 10))
		evt.MessageID = strconv.Itoa(cq.Message.MessageID)
		evt.ComponentID, evt.Value = splitCallbackData(cq.Data)

		if err := t.eventHandler(ctx, evt); err != nil {
			slog.Error("Failed to handle Telegram component event", "error", err)
		}

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || !strings.HasPrefix(msg.Text, "/") {
			return
		}

		fields := strings.Fields(msg.Text)
		command := strings.TrimPrefix(fields[0], "/")
		// Strip the "@botname" suffix used in group chats.
		if at := strings.Index(command, "@"); at >= 0 {
			command = command[:at]
		}

		evt := event.New("telegram", event.KindCommand,
			strconv.FormatInt(msg.From.ID, 10),
			strconv.FormatInt(msg.Chat.ID, 10))
		evt.Command = command
		evt.Args = fields[1:]
		evt.Metadata = map[string]string{
			"user_name": msg.From.UserName,
			"msg_id":    strconv.Itoa(msg.MessageID),
		}

		if err := t.eventHandler(ctx, evt); err != nil {
			slog.Error("Failed to handle Telegram command event", "error", err)
		}
	}
}

// splitCallbackData decodes "componentID|value" callback payloads; plain
// button presses carry just the component id.
func splitCallbackData(data string) (string, string) {
	if i := strings.IndexByte(data, '|'); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}

func (t *TelegramTransport) Send(ctx context.Context, channel string, r Render) (MessageRef, error) {
	chatID, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return MessageRef{}, errors.InvalidInput("invalid telegram channel: " + err.Error())
	}

	msg := tgbotapi.NewMessage(chatID, r.Text)
	if markup := buildInlineKeyboard(r); markup != nil {
		msg.ReplyMarkup = *markup
	}

	sent, err := t.bot.Send(msg)
	if err != nil {
		return MessageRef{}, errors.Wrap(errors.MapError(err), "failed to send telegram message")
	}

	return MessageRef{Channel: channel, ID: strconv.Itoa(sent.MessageID)}, nil
}

func (t *TelegramTransport) Edit(ctx context.Context, ref MessageRef, r Render) error {
	chatID, err := strconv.ParseInt(ref.Channel, 10, 64)
	if err != nil {
		return errors.InvalidInput("invalid telegram channel: " + err.Error())
	}
	messageID, err := strconv.Atoi(ref.ID)
	if err != nil {
		return errors.InvalidInput("invalid telegram message id: " + err.Error())
	}

	markup := buildInlineKeyboard(r)
	if markup == nil {
		markup = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, r.Text, *markup)
	if _, err := t.bot.Send(edit); err != nil {
		return errors.Wrap(errors.MapError(err), "failed to edit telegram message")
	}
	return nil
}

func (t *TelegramTransport) Disable(ctx context.Context, ref MessageRef, r Render) error {
	return t.Edit(ctx, ref, r.Disabled())
}

func (t *TelegramTransport) DM(ctx context.Context, actorID string, r Render) (MessageRef, error) {
	// For Telegram a user's private chat id equals their user id.
	return t.Send(ctx, actorID, r)
}

func (t *TelegramTransport) Health(ctx context.Context) error {
	if t.bot == nil {
		return errors.Transient("Telegram bot not initialized")
	}

	if _, err := t.bot.GetMe(); err != nil {
		return errors.Transient("Telegram connection failed: " + err.Error())
	}

	return nil
}

// buildInlineKeyboard maps the platform-neutral render onto Telegram inline
// keyboards. Selects become a row of option buttons (Telegram has no native
// select); the default option is marked. Disabled components stay visible but
// press as no-ops.
func buildInlineKeyboard(r Render) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, row := range r.Rows {
		if len(row.Buttons) > 0 {
			var btns []tgbotapi.InlineKeyboardButton
			for _, b := range row.Buttons {
				data := b.ID
				if b.Disabled {
					data = callbackNoop
				}
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, data))
			}
			rows = append(rows, btns)
		}
		if row.Select != nil {
			var btns []tgbotapi.InlineKeyboardButton
			for _, opt := range row.Select.Options {
				label := opt.Label
				if opt.Default {
					label = "• " + label
				}
				data := fmt.Sprintf("%s|%s", row.Select.ID, opt.Value)
				if row.Select.Disabled {
					data = callbackNoop
				}
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(label, data))
			}
			rows = append(rows, btns)
		}
	}

	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
