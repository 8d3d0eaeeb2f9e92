package slackapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

const (
	DefaultAuthorizeURL = "https://slack.com/oauth/v2/authorize"

	defaultRequestTimeout   = 15 * time.Second
	conversationsPageLimit  = 200
	conversationTypePublic  = "public_channel"
	conversationTypePrivate = "private_channel"

	logEventSlackConnected       = "slack_connected"
	logEventSlackChannelsUpdated = "slack_listening_channels_updated"
)

// BotScopes are requested when a workspace installs the app.
var BotScopes = []string{"channels:history", "channels:read", "groups:history", "groups:read", "incoming-webhook", "chat:write"}

var (
	ErrOAuthNotConfigured = errors.New("slack_oauth_not_configured")
	ErrNotConnected       = errors.New("slack_not_connected")
	ErrProfileNotFound    = errors.New("profile_not_found")
	ErrMissingCode        = errors.New("missing_oauth_code")
)

// Config describes the Slack app and the endpoints it talks to.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthorizeURL string
	APIURL       string
	HTTPClient   *http.Client
}

// Channel is a conversation the workspace bot can listen to.
type Channel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	IsMember  bool   `json:"is_member"`
}

// ChannelListing pairs the visible channels with the profile's current listening list.
type ChannelListing struct {
	Channels          []Channel `json:"channels"`
	ListeningChannels []string  `json:"listening_channels"`
}

// Service connects profiles to Slack workspaces and manages the channels they listen to.
type Service struct {
	database *gorm.DB
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(database *gorm.DB, config Config, logger *zap.Logger) *Service {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if strings.TrimSpace(config.AuthorizeURL) == "" {
		config.AuthorizeURL = DefaultAuthorizeURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{database: database, config: config, logger: logger, now: time.Now}
}

func (service *Service) oauthConfigured() bool {
	return strings.TrimSpace(service.config.ClientID) != "" && strings.TrimSpace(service.config.ClientSecret) != ""
}

// AuthorizeURL returns the workspace install url carrying the state nonce.
func (service *Service) AuthorizeURL(state string) (string, error) {
	if !service.oauthConfigured() {
		return "", ErrOAuthNotConfigured
	}
	query := url.Values{}
	query.Set("client_id", strings.TrimSpace(service.config.ClientID))
	query.Set("scope", strings.Join(BotScopes, ","))
	query.Set("state", state)
	if redirectURL := strings.TrimSpace(service.config.RedirectURL); redirectURL != "" {
		query.Set("redirect_uri", redirectURL)
	}
	return service.config.AuthorizeURL + "?" + query.Encode(), nil
}

// CompleteOAuth exchanges the install code and stores the workspace token, team and incoming webhook on the profile.
func (service *Service) CompleteOAuth(ctx context.Context, userID string, code string) (model.Profile, error) {
	if !service.oauthConfigured() {
		return model.Profile{}, ErrOAuthNotConfigured
	}
	trimmedCode := strings.TrimSpace(code)
	if trimmedCode == "" {
		return model.Profile{}, ErrMissingCode
	}
	profile, err := service.loadProfile(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	response, err := slack.GetOAuthV2ResponseContext(
		ctx,
		service.config.HTTPClient,
		strings.TrimSpace(service.config.ClientID),
		strings.TrimSpace(service.config.ClientSecret),
		trimmedCode,
		strings.TrimSpace(service.config.RedirectURL),
	)
	if err != nil {
		return model.Profile{}, fmt.Errorf("exchange slack code: %w", err)
	}

	connectedAt := service.now().UTC()
	updates := map[string]interface{}{
		"slack_access_token": response.AccessToken,
		"slack_team_id":      response.Team.ID,
		"slack_team_name":    response.Team.Name,
		"slack_webhook_url":  response.IncomingWebhook.URL,
		"slack_channel":      response.IncomingWebhook.Channel,
		"slack_connected_at": connectedAt,
	}
	if err := service.database.WithContext(ctx).Model(&profile).Updates(updates).Error; err != nil {
		return model.Profile{}, fmt.Errorf("save slack connection: %w", err)
	}
	service.logger.Info(logEventSlackConnected, zap.String("user_id", profile.ID), zap.String("team_id", response.Team.ID))
	return service.loadProfile(ctx, profile.ID)
}

// Channels lists the conversations the bot can read, across every page.
func (service *Service) Channels(ctx context.Context, userID string) (ChannelListing, error) {
	profile, err := service.loadProfile(ctx, userID)
	if err != nil {
		return ChannelListing{}, err
	}
	token := strings.TrimSpace(profile.SlackAccessToken)
	if token == "" {
		return ChannelListing{}, ErrNotConnected
	}

	client := service.apiClient(token)
	channels := make([]Channel, 0)
	cursor := ""
	for {
		page, nextCursor, err := client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Cursor: cursor,
			Limit:  conversationsPageLimit,
			Types:  []string{conversationTypePublic, conversationTypePrivate},
		})
		if err != nil {
			return ChannelListing{}, fmt.Errorf("list slack channels: %w", err)
		}
		for _, conversation := range page {
			if conversation.IsArchived || !(conversation.IsMember || conversation.IsPrivate) {
				continue
			}
			channels = append(channels, Channel{
				ID:        conversation.ID,
				Name:      conversation.Name,
				IsPrivate: conversation.IsPrivate,
				IsMember:  conversation.IsMember,
			})
		}
		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	listening := profile.SlackListeningChannels.Channels
	if listening == nil {
		listening = []string{}
	}
	return ChannelListing{Channels: channels, ListeningChannels: listening}, nil
}

// SetListeningChannels replaces the channels whose messages are ingested for the profile.
func (service *Service) SetListeningChannels(ctx context.Context, userID string, channelIDs []string) (model.ListeningChannels, error) {
	profile, err := service.loadProfile(ctx, userID)
	if err != nil {
		return model.ListeningChannels{}, err
	}
	channels := model.NewListeningChannels(channelIDs)
	if err := service.database.WithContext(ctx).Model(&profile).Update("slack_listening_channels", channels).Error; err != nil {
		return model.ListeningChannels{}, fmt.Errorf("save listening channels: %w", err)
	}
	service.logger.Info(logEventSlackChannelsUpdated, zap.String("user_id", profile.ID), zap.Int("channel_count", len(channels.Channels)))
	return channels, nil
}

func (service *Service) apiClient(token string) *slack.Client {
	options := []slack.Option{slack.OptionHTTPClient(service.config.HTTPClient)}
	if apiURL := strings.TrimSpace(service.config.APIURL); apiURL != "" {
		options = append(options, slack.OptionAPIURL(strings.TrimRight(apiURL, "/")+"/"))
	}
	return slack.New(token, options...)
}

func (service *Service) loadProfile(ctx context.Context, userID string) (model.Profile, error) {
	var profile model.Profile
	err := service.database.WithContext(ctx).Where("id = ?", strings.TrimSpace(userID)).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}
