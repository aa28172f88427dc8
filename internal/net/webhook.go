package net

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"tickle-go/internal/incident"

	"github.com/rs/zerolog"
)

// Notifier posts status-change events to a webhook.
type Notifier struct {
	URL    string
	Token  string
	Client *http.Client
	Logger zerolog.Logger
}

func NewNotifier(url, token string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		URL:   url,
		Token: token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
		Logger: logger.With().Str("component", "webhook").Logger(),
	}
}

type eventPayload struct {
	Host       string         `json:"host"`
	Module     string         `json:"module"`
	Severity   string         `json:"severity"`
	Status     string         `json:"status"`
	Message    string         `json:"message"`
	Event      string         `json:"event"`
	Tags       []string       `json:"tags"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Notify sends every event and returns the joined errors of the failed ones.
func (n *Notifier) Notify(ctx context.Context, events []incident.Event) error {
	if n == nil || n.URL == "" {
		return nil
	}

	host, _ := os.Hostname()

	var errs []error
	for _, event := range events {
		payload := eventPayload{
			Host:     host,
			Module:   "tickle",
			Severity: string(event.Severity),
			Status:   string(event.Status),
			Message:  event.Message(),
			Event:    "tickle_" + string(event.Type),
			Tags:     []string{"uptime", "streamlit"},
			Attributes: map[string]any{
				"site":       event.Site,
				"previous":   event.Previous,
				"current":    event.Current,
				"checked_at": event.At,
			},
		}

		response, body, err := n.sendRequest(ctx, http.MethodPost, n.URL, payload)
		if err != nil {
			n.Logger.Error().Str("site", event.Site).Msgf("Failed to send notification: %v", err)
			errs = append(errs, err)
			continue
		}

		if response.StatusCode < 200 || response.StatusCode >= 300 {
			err := fmt.Errorf("webhook returned status code %d. Body: %s", response.StatusCode, string(body))
			n.Logger.Error().Str("site", event.Site).Msg(err.Error())
			errs = append(errs, err)
			continue
		}

		n.Logger.Info().Str("site", event.Site).Msgf("Sent %s notification", event.Type)
	}

	return errors.Join(errs...)
}

func (n *Notifier) sendRequest(ctx context.Context, method string, url string, payload any) (*http.Response, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request for %s: %w", url, err)
	}

	if n.Token != "" {
		request.Header.Set("Authorization", "Bearer "+n.Token)
	}
	request.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return response, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return response, respBody, nil
}
