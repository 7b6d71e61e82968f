package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"chama-connect/internal/models"
)

func testAnnouncement() models.Announcement {
	return models.Announcement{
		Year:  2026,
		Month: 9,
		Winners: []models.AnnouncedWinner{
			{Name: "Wanjiru", Position: 1},
			{Name: "Otieno", Position: 2},
		},
	}
}

func TestBuildMessage(t *testing.T) {
	users := []models.User{
		{ID: "1", Name: "Wanjiru", Email: "wanjiru@chama.test"},
		{ID: "2", Name: "Kamau"},
	}
	msg := BuildMessage(users, testAnnouncement())

	require.Equal(t, "Raffle winners for October 2026", msg.Subject)
	require.Contains(t, msg.Text, "1. Wanjiru\n2. Otieno\n")
	require.Equal(t, []Recipient{{Name: "Wanjiru", Email: "wanjiru@chama.test"}}, msg.Recipients)
}

func TestWebhookPostsAnnouncement(t *testing.T) {
	var got Message
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	hook := NewWebhook([]string{srv.URL}, "secret", "raffle@chama.test")
	users := []models.User{{Name: "Wanjiru", Email: "wanjiru@chama.test"}, {Name: "Otieno", Email: "otieno@chama.test"}}
	require.NoError(t, hook.SendWinnersAnnouncement(context.Background(), users, testAnnouncement()))

	require.Equal(t, "Bearer secret", auth)
	require.Equal(t, "raffle@chama.test", got.From)
	require.Len(t, got.Recipients, 2)
	require.Len(t, got.Winners, 2)
}

func TestWebhookReportsFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hook := NewWebhook([]string{srv.URL}, "", "")
	users := []models.User{{Name: "Wanjiru", Email: "wanjiru@chama.test"}}
	err := hook.SendWinnersAnnouncement(context.Background(), users, testAnnouncement())
	var se *SendError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestWebhookFailsOver(t *testing.T) {
	var primaryHits, backupHits int
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupHits++
		w.WriteHeader(http.StatusOK)
	}))
	defer backup.Close()

	hook := NewWebhook([]string{primary.URL, backup.URL}, "", "")
	users := []models.User{{Name: "Wanjiru", Email: "wanjiru@chama.test"}}
	require.NoError(t, hook.SendWinnersAnnouncement(context.Background(), users, testAnnouncement()))
	require.Equal(t, 1, primaryHits)
	require.Equal(t, 1, backupHits)
}

func TestWebhookDoesNotFailOverOnClientError(t *testing.T) {
	var backupHits int
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad token"))
	}))
	defer primary.Close()
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupHits++
	}))
	defer backup.Close()

	hook := NewWebhook([]string{primary.URL, backup.URL}, "", "")
	users := []models.User{{Name: "Wanjiru", Email: "wanjiru@chama.test"}}
	err := hook.SendWinnersAnnouncement(context.Background(), users, testAnnouncement())
	var se *SendError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "bad token", se.Body)
	require.Zero(t, backupHits)
}

func TestWebhookSkipsWithoutRecipients(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	hook := NewWebhook([]string{srv.URL}, "", "")
	require.NoError(t, hook.SendWinnersAnnouncement(context.Background(), nil, testAnnouncement()))
	require.False(t, called)
}
