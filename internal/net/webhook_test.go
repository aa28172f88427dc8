package net

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tickle-go/internal/incident"
	"tickle-go/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify(t *testing.T) {
	var mu sync.Mutex
	var received []eventPayload
	var auth []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload eventPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		mu.Lock()
		received = append(received, payload)
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL, "secret", zerolog.Nop())
	events := []incident.Event{
		{Site: "lookout", Type: incident.SiteDown, Severity: incident.HIGH, Status: incident.OnInvestigation, Current: models.StatusDown, At: time.Now()},
		{Site: "docs", Type: incident.SiteRecovered, Severity: incident.INFO, Status: incident.Resolved, Previous: models.StatusDown, Current: models.StatusUp, At: time.Now()},
	}

	err := notifier.Notify(context.Background(), events)

	require.NoError(t, err)
	require.Len(t, received, 2)
	assert.Equal(t, []string{"Bearer secret", "Bearer secret"}, auth)

	assert.Equal(t, "tickle", received[0].Module)
	assert.Equal(t, "HIGH", received[0].Severity)
	assert.Equal(t, "tickle_site_down", received[0].Event)
	assert.Equal(t, "lookout is down", received[0].Message)
	assert.Equal(t, "lookout", received[0].Attributes["site"])

	assert.Equal(t, "Resolved", received[1].Status)
	assert.Equal(t, "docs is up again (was down)", received[1].Message)
}

func TestNotifyFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL, "", zerolog.Nop())
	err := notifier.Notify(context.Background(), []incident.Event{{Site: "lookout", Type: incident.SiteDown}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 401")
}

func TestNotifyDisabled(t *testing.T) {
	var notifier *Notifier
	assert.NoError(t, notifier.Notify(context.Background(), []incident.Event{{Site: "a"}}))
	assert.NoError(t, NewNotifier("", "", zerolog.Nop()).Notify(context.Background(), []incident.Event{{Site: "a"}}))
}
