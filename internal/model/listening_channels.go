package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ListeningChannelsSchemaVersion is the version written for newly stored channel lists.
const ListeningChannelsSchemaVersion = 1

var (
	ErrUnsupportedChannelSchema = errors.New("unsupported_listening_channels_schema")
	ErrInvalidChannelEncoding   = errors.New("invalid_listening_channels_encoding")
)

// ListeningChannels lists the Slack channel ids a profile captures messages from.
// Version 0 marks a list decoded from the legacy bare JSON array encoding.
type ListeningChannels struct {
	Version  int      `json:"version"`
	Channels []string `json:"channels"`
}

// NewListeningChannels builds a current-version list with trimmed, de-duplicated ids.
func NewListeningChannels(channelIDs []string) ListeningChannels {
	seen := make(map[string]struct{}, len(channelIDs))
	channels := make([]string, 0, len(channelIDs))
	for _, channelID := range channelIDs {
		trimmed := strings.TrimSpace(channelID)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		channels = append(channels, trimmed)
	}
	return ListeningChannels{Version: ListeningChannelsSchemaVersion, Channels: channels}
}

// DecodeListeningChannels accepts both the versioned object and the legacy array encoding.
func DecodeListeningChannels(raw []byte) (ListeningChannels, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ListeningChannels{Version: ListeningChannelsSchemaVersion, Channels: []string{}}, nil
	}

	switch trimmed[0] {
	case '[':
		var channelIDs []string
		if err := json.Unmarshal(trimmed, &channelIDs); err != nil {
			return ListeningChannels{}, fmt.Errorf("%w: %v", ErrInvalidChannelEncoding, err)
		}
		legacy := NewListeningChannels(channelIDs)
		legacy.Version = 0
		return legacy, nil
	case '{':
		var decoded ListeningChannels
		if err := json.Unmarshal(trimmed, &decoded); err != nil {
			return ListeningChannels{}, fmt.Errorf("%w: %v", ErrInvalidChannelEncoding, err)
		}
		if decoded.Version > ListeningChannelsSchemaVersion {
			return ListeningChannels{}, fmt.Errorf("%w: %d", ErrUnsupportedChannelSchema, decoded.Version)
		}
		normalized := NewListeningChannels(decoded.Channels)
		normalized.Version = decoded.Version
		return normalized, nil
	default:
		return ListeningChannels{}, ErrInvalidChannelEncoding
	}
}

// Contains reports whether the channel id is in the list.
func (channels ListeningChannels) Contains(channelID string) bool {
	trimmed := strings.TrimSpace(channelID)
	if trimmed == "" {
		return false
	}
	for _, candidate := range channels.Channels {
		if candidate == trimmed {
			return true
		}
	}
	return false
}

// IsEmpty reports whether no channel is being listened to.
func (channels ListeningChannels) IsEmpty() bool {
	return len(channels.Channels) == 0
}

// Value stores the list in its versioned encoding.
func (channels ListeningChannels) Value() (driver.Value, error) {
	normalized := NewListeningChannels(channels.Channels)
	encoded, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan decodes a stored list.
func (channels *ListeningChannels) Scan(value any) error {
	var raw []byte
	switch typed := value.(type) {
	case nil:
		raw = nil
	case []byte:
		raw = typed
	case string:
		raw = []byte(typed)
	default:
		return fmt.Errorf("%w: unexpected column type %T", ErrInvalidChannelEncoding, value)
	}
	decoded, err := DecodeListeningChannels(raw)
	if err != nil {
		return err
	}
	*channels = decoded
	return nil
}
