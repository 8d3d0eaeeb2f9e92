package slackapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/MarkoPoloResearchLab/reviu/internal/ingest"
)

const innerEventTypeMessage = "message"

// InboundKind classifies a delivery from the Slack Events API.
type InboundKind string

const (
	InboundKindChallenge InboundKind = "challenge"
	InboundKindMessage   InboundKind = "message"
	InboundKindIgnored   InboundKind = "ignored"
)

var (
	ErrMalformedEvent   = errors.New("malformed_slack_event")
	ErrInvalidSignature = errors.New("invalid_slack_signature")
)

// InboundEvent is a parsed Events API delivery.
type InboundEvent struct {
	Kind      InboundKind
	Challenge string
	Message   ingest.SlackMessage
}

type eventEnvelope struct {
	Type   string `json:"type"`
	TeamID string `json:"team_id"`
	Event  struct {
		Type string `json:"type"`
	} `json:"event"`
}

// ParseInboundEvent decodes a url_verification handshake or an event_callback message.
// Other deliveries are reported as ignored.
func ParseInboundEvent(body []byte) (InboundEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return InboundEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch envelope.Type {
	case slackevents.URLVerification:
	case slackevents.CallbackEvent:
		if envelope.Event.Type != innerEventTypeMessage {
			return InboundEvent{Kind: InboundKindIgnored}, nil
		}
	default:
		return InboundEvent{Kind: InboundKindIgnored}, nil
	}

	parsed, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return InboundEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if verification, ok := parsed.Data.(*slackevents.EventsAPIURLVerificationEvent); ok {
		return InboundEvent{Kind: InboundKindChallenge, Challenge: verification.Challenge}, nil
	}
	messageEvent, ok := parsed.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return InboundEvent{Kind: InboundKindIgnored}, nil
	}
	return InboundEvent{
		Kind: InboundKindMessage,
		Message: ingest.SlackMessage{
			TeamID:  parsed.TeamID,
			Channel: messageEvent.Channel,
			User:    messageEvent.User,
			Text:    messageEvent.Text,
			BotID:   messageEvent.BotID,
			SubType: messageEvent.SubType,
		},
	}, nil
}

// VerifySignature checks the X-Slack-Signature of a request body against the signing secret.
func VerifySignature(header http.Header, body []byte, signingSecret string) error {
	verifier, err := slack.NewSecretsVerifier(header, strings.TrimSpace(signingSecret))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if _, err := verifier.Write(body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := verifier.Ensure(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
