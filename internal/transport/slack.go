package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/gateway/event"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

type SlackTransport struct {
	signingSecret string
	botToken      string
	eventHandler  EventHandler
	server        *http.Server
	port          int
	client        *slack.Client
}

func NewSlackTransport(port int, signingSecret, botToken string, eventHandler EventHandler) *SlackTransport {
	if signingSecret == "" {
		signingSecret = os.Getenv("SLACK_SIGNING_SECRET")
	}
	if botToken == "" {
		botToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	return &SlackTransport{
		signingSecret: signingSecret,
		botToken:      botToken,
		eventHandler:  eventHandler,
		port:          port,
		client:        slack.New(botToken),
	}
}

func (s *SlackTransport) Name() string {
	return "slack"
}

func (s *SlackTransport) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/slack/events", s.handleEvents)
	mux.HandleFunc("/slack/interactions", s.handleInteractions)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		slog.Info("Slack transport listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Slack server failed", "error", err)
		}
	}()

	<-ctx.Done()
	return s.server.Shutdown(context.Background())
}

func (s *SlackTransport) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *SlackTransport) Send(ctx context.Context, channel string, r Render) (MessageRef, error) {
	_, ts, err := s.client.PostMessageContext(ctx, channel, renderOptions(r)...)
	if err != nil {
		return MessageRef{}, errors.Wrap(errors.MapError(err), "failed to send Slack message")
	}
	return MessageRef{Channel: channel, ID: ts}, nil
}

func (s *SlackTransport) Edit(ctx context.Context, ref MessageRef, r Render) error {
	_, _, _, err := s.client.UpdateMessageContext(ctx, ref.Channel, ref.ID, renderOptions(r)...)
	if err != nil {
		return errors.Wrap(errors.MapError(err), "failed to update Slack message")
	}
	return nil
}

func (s *SlackTransport) Disable(ctx context.Context, ref MessageRef, r Render) error {
	return s.Edit(ctx, ref, r.Disabled())
}

func (s *SlackTransport) DM(ctx context.Context, actorID string, r Render) (MessageRef, error) {
	channel, _, _, err := s.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{actorID},
	})
	if err != nil {
		return MessageRef{}, errors.Wrap(errors.MapError(err), "failed to open Slack conversation")
	}
	return s.Send(ctx, channel.ID, r)
}

func (s *SlackTransport) Health(ctx context.Context) error {
	if s.server == nil {
		return errors.Transient("Slack server not started")
	}

	if s.client == nil {
		return errors.Transient("Slack client not initialized")
	}

	if _, err := s.client.AuthTestContext(ctx); err != nil {
		return errors.Transient("Slack connection failed")
	}

	return nil
}

func (s *SlackTransport) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !s.verify(r.Header, body, w) {
		return
	}

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if eventsAPIEvent.Type == slackevents.URLVerification {
		var cr *slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &cr); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(cr.Challenge))
		return
	}

	if eventsAPIEvent.Type == slackevents.CallbackEvent {
		innerEvent := eventsAPIEvent.InnerEvent
		switch ev := innerEvent.Data.(type) {
		case *slackevents.MessageEvent:
			// Ignore bot messages
			if ev.BotID != "" {
				break
			}
			if !strings.HasPrefix(ev.Text, "/") {
				break
			}

			fields := strings.Fields(ev.Text)
			evt := event.New("slack", event.KindCommand, ev.User, ev.Channel)
			evt.Command = strings.TrimPrefix(fields[0], "/")
			evt.Args = fields[1:]
			evt.Metadata = map[string]string{"ts": ev.TimeStamp}

			if s.eventHandler != nil {
				if err := s.eventHandler(r.Context(), evt); err != nil {
					slog.Error("Failed to handle Slack command event", "error", err)
				}
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (s *SlackTransport) handleInteractions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !s.verify(r.Header, body, w) {
		return
	}

	// Interaction payloads arrive form-encoded under "payload".
	values, err := parseForm(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(values), &callback); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if callback.Type != slack.InteractionTypeBlockActions || s.eventHandler == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, action := range callback.ActionCallback.BlockActions {
		evt := event.New("slack", event.KindComponent, callback.User.ID, callback.Channel.ID)
		evt.MessageID = callback.Message.Timestamp
		evt.ComponentID = action.ActionID
		if action.SelectedOption.Value != "" {
			evt.Value = action.SelectedOption.Value
		}

		if err := s.eventHandler(r.Context(), evt); err != nil {
			slog.Error("Failed to handle Slack component event", "error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (s *SlackTransport) verify(header http.Header, body []byte, w http.ResponseWriter) bool {
	sv, err := slack.NewSecretsVerifier(header, s.signingSecret)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return false
	}
	if _, err := sv.Write(body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return false
	}
	if err := sv.Ensure(); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func parseForm(body []byte) (string, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", err
	}
	payload := values.Get("payload")
	if payload == "" {
		return "", fmt.Errorf("no payload field")
	}
	return payload, nil
}

// renderOptions maps the platform-neutral render onto Slack block kit.
// Disabled components are dropped from the actions block (block kit has no
// disabled state), which reads as the message going inert.
func renderOptions(r Render) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(r.Text, false)}

	var blocks []slack.Block
	if r.Text != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, r.Text, false, false), nil, nil))
	}

	for i, row := range r.Rows {
		var elements []slack.BlockElement

		for _, b := range row.Buttons {
			if b.Disabled {
				continue
			}
			elements = append(elements, slack.NewButtonBlockElement(b.ID, b.ID,
				slack.NewTextBlockObject(slack.PlainTextType, b.Label, false, false)))
		}

		if row.Select != nil && !row.Select.Disabled {
			var options []*slack.OptionBlockObject
			var initial *slack.OptionBlockObject
			for _, opt := range row.Select.Options {
				obj := slack.NewOptionBlockObject(opt.Value,
					slack.NewTextBlockObject(slack.PlainTextType, opt.Label, false, false), nil)
				options = append(options, obj)
				if opt.Default {
					initial = obj
				}
			}
			sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic,
				slack.NewTextBlockObject(slack.PlainTextType, row.Select.Placeholder, false, false),
				row.Select.ID, options...)
			sel.InitialOption = initial
			elements = append(elements, sel)
		}

		if len(elements) > 0 {
			blocks = append(blocks, slack.NewActionBlock(fmt.Sprintf("row_%d", i), elements...))
		}
	}

	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	return opts
}
