package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultAPIBaseURL = "https://api.figma.com"

	personalTokenHeader    = "X-Figma-Token"
	defaultRequestTimeout  = 15 * time.Second
	nodeImageFormat        = "png"
	nodeImageScale         = "2"
	maxErrorMessageRunes   = 300
	fallbackAPIErrorFormat = "figma api responded with status %d"
)

// Credential authorizes a request against the Figma REST API.
type Credential interface {
	Authorize(request *http.Request) error
}

// PersonalToken is a user-generated Figma access token.
type PersonalToken string

func (token PersonalToken) Authorize(request *http.Request) error {
	request.Header.Set(personalTokenHeader, strings.TrimSpace(string(token)))
	return nil
}

// TokenSourceCredential authorizes requests with an OAuth bearer token, refreshing it when needed.
type TokenSourceCredential struct {
	Source oauth2.TokenSource
}

func (credential TokenSourceCredential) Authorize(request *http.Request) error {
	token, err := credential.Source.Token()
	if err != nil {
		return fmt.Errorf("figma token: %w", err)
	}
	token.SetAuthHeader(request)
	return nil
}

// APIError is a non-2xx answer from the Figma API.
type APIError struct {
	StatusCode int
	Message    string
}

func (apiError *APIError) Error() string {
	if apiError.Message != "" {
		return apiError.Message
	}
	return fmt.Sprintf(fallbackAPIErrorFormat, apiError.StatusCode)
}

// FileMetadata is the subset of GET /v1/files/:key used here.
type FileMetadata struct {
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnailUrl"`
	LastModified string `json:"lastModified"`
}

// User is the authenticated Figma account returned by GET /v1/me.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Handle string `json:"handle"`
}

// Client talks to the Figma REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client. Empty arguments select the public API and a bounded HTTP client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBaseURL == "" {
		trimmedBaseURL = DefaultAPIBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{baseURL: trimmedBaseURL, httpClient: httpClient}
}

// File fetches file metadata.
func (client *Client) File(ctx context.Context, credential Credential, fileKey string) (FileMetadata, error) {
	var metadata FileMetadata
	err := client.getJSON(ctx, credential, "/v1/files/"+url.PathEscape(fileKey), nil, &metadata)
	return metadata, err
}

// NodeImage renders one node and returns its image url, or "" when Figma returns none.
func (client *Client) NodeImage(ctx context.Context, credential Credential, fileKey string, nodeID string) (string, error) {
	query := url.Values{}
	query.Set("ids", nodeID)
	query.Set("format", nodeImageFormat)
	query.Set("scale", nodeImageScale)
	var response struct {
		Images map[string]*string `json:"images"`
	}
	if err := client.getJSON(ctx, credential, "/v1/images/"+url.PathEscape(fileKey), query, &response); err != nil {
		return "", err
	}
	imageURL := response.Images[nodeID]
	if imageURL == nil {
		return "", nil
	}
	return *imageURL, nil
}

// Me returns the account behind the credential.
func (client *Client) Me(ctx context.Context, credential Credential) (User, error) {
	var user User
	err := client.getJSON(ctx, credential, "/v1/me", nil, &user)
	return user, err
}

func (client *Client) getJSON(ctx context.Context, credential Credential, path string, query url.Values, target interface{}) error {
	endpoint := client.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if credential != nil {
		if err := credential.Authorize(request); err != nil {
			return err
		}
	}
	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("figma request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		var failure struct {
			Err     string `json:"err"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(response.Body).Decode(&failure)
		message := failure.Err
		if message == "" {
			message = failure.Message
		}
		if runes := []rune(message); len(runes) > maxErrorMessageRunes {
			message = string(runes[:maxErrorMessageRunes])
		}
		return &APIError{StatusCode: response.StatusCode, Message: message}
	}
	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("decode figma response: %w", err)
	}
	return nil
}
