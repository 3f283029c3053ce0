// Package omnivore fetches RSS subscriptions from the Omnivore GraphQL API.
package omnivore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tesso57/omnivore-rss-export/internal/application/settings"
	"github.com/tesso57/omnivore-rss-export/internal/domain/subscription"
)

const (
	userAgent       = "omnivore-rss-export/1.0"
	maxErrorSnippet = 500
)

const subscriptionsQuery = `query GetSubscriptions {
  subscriptions {
    ... on SubscriptionsSuccess {
      subscriptions {
        name
        url
        folder
        createdAt
        lastFetchedAt
        description
        newsletterEmail
        refreshedAt
        count
        icon
        isPrivate
        autoAddToLibrary
        fetchContent
        failedAt
      }
    }
    ... on SubscriptionsError {
      errorCodes
    }
  }
}`

// TransportError reports a failed or unusable API response.
type TransportError struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("omnivore ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type headerTransport struct {
	base  http.RoundTripper
	token string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	// Omnivore expects the bare token, without a Bearer prefix.
	clone.Header.Set("Authorization", t.token)
	clone.Header.Set("User-Agent", userAgent)
	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", "application/json")
	}
	return base.RoundTrip(clone)
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type subscriptionsResult struct {
	Subscriptions []subscription.Record `json:"subscriptions"`
	ErrorCodes    []string              `json:"errorCodes"`
}

type graphQLResponse struct {
	Data *struct {
		Subscriptions *subscriptionsResult `json:"subscriptions"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Client talks to the Omnivore GraphQL endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a Client. It fails with a *settings.ConfigurationError
// when required values are missing, before any request is made.
func NewClient(cfg settings.OmnivoreConfig, logger zerolog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		endpoint: cfg.Endpoint(),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout(),
			Transport: headerTransport{base: http.DefaultTransport, token: cfg.APIToken},
		},
		logger: logger.With().Str("component", "omnivore").Logger(),
	}, nil
}

// Subscriptions fetches every RSS subscription in a single request.
func (c *Client) Subscriptions(ctx context.Context) ([]subscription.Record, error) {
	body, err := json.Marshal(graphQLRequest{Query: subscriptionsQuery})
	if err != nil {
		return nil, &TransportError{Op: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("endpoint", c.endpoint).Msg("fetching subscriptions")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug().Int("status", resp.StatusCode).Msg("response received")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		return nil, &TransportError{
			Op:         "request",
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(snippet)),
		}
	}

	var out graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &TransportError{Op: "decode response", StatusCode: resp.StatusCode, Err: err}
	}
	return recordsFrom(out)
}

func recordsFrom(out graphQLResponse) ([]subscription.Record, error) {
	if len(out.Errors) > 0 {
		messages := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			messages = append(messages, e.Message)
		}
		return nil, &TransportError{Op: "graphql", Detail: strings.Join(messages, "; ")}
	}
	if out.Data == nil || out.Data.Subscriptions == nil {
		return nil, &TransportError{Op: "decode response", Err: errors.New("missing data.subscriptions")}
	}
	result := out.Data.Subscriptions
	if len(result.ErrorCodes) > 0 {
		return nil, &TransportError{Op: "subscriptions", Detail: strings.Join(result.ErrorCodes, ", ")}
	}
	if result.Subscriptions == nil {
		return nil, &TransportError{Op: "decode response", Err: errors.New("missing subscriptions list")}
	}
	return result.Subscriptions, nil
}
