package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chama-connect/internal/models"
)

// Webhook posts winner announcements to a mail relay. With several relay
// URLs it fails over to the next one on transport errors and 5xx replies.
type Webhook struct {
	urls       []string
	token      string
	from       string
	httpClient *http.Client
}

func NewWebhook(urls []string, token, from string) *Webhook {
	return &Webhook{
		urls:       urls,
		token:      token,
		from:       from,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("notify webhook returned status %d", e.StatusCode)
}

func retryable(err error) bool {
	var se *SendError
	if !errors.As(err, &se) {
		return true
	}
	return se.StatusCode >= 500
}

type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Message struct {
	From       string                   `json:"from,omitempty"`
	Subject    string                   `json:"subject"`
	Text       string                   `json:"text"`
	Recipients []Recipient              `json:"recipients"`
	Winners    []models.AnnouncedWinner `json:"winners"`
}

func (w *Webhook) buildHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	if w.token != "" {
		h.Set("Authorization", "Bearer "+w.token)
	}
	return h
}

func (w *Webhook) SendWinnersAnnouncement(ctx context.Context, recipients []models.User, a models.Announcement) error {
	msg := BuildMessage(recipients, a)
	if len(msg.Recipients) == 0 {
		return nil
	}
	msg.From = w.from
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if len(w.urls) == 0 {
		return &SendError{StatusCode: 0, Body: "notify webhook not configured"}
	}

	var lastErr error
	for _, url := range w.urls {
		err := w.post(ctx, url, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}
	return lastErr
}

func (w *Webhook) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header = w.buildHeaders()

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SendError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// BuildMessage renders the announcement. Members without an email address
// are left out of the recipient list.
func BuildMessage(recipients []models.User, a models.Announcement) Message {
	period := fmt.Sprintf("%s %d", time.Month(a.Month+1), a.Year)
	var sb strings.Builder
	fmt.Fprintf(&sb, "The raffle winners for %s have been drawn:\n", period)
	for _, w := range a.Winners {
		fmt.Fprintf(&sb, "%d. %s\n", w.Position, w.Name)
	}
	sb.WriteString("\nCongratulations to the winners.\n")

	msg := Message{
		Subject:    "Raffle winners for " + period,
		Text:       sb.String(),
		Recipients: []Recipient{},
		Winners:    a.Winners,
	}
	for _, u := range recipients {
		if strings.TrimSpace(u.Email) == "" {
			continue
		}
		msg.Recipients = append(msg.Recipients, Recipient{Name: u.Name, Email: u.Email})
	}
	return msg
}

// LogNotifier writes announcements to the log instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendWinnersAnnouncement(ctx context.Context, recipients []models.User, a models.Announcement) error {
	msg := BuildMessage(recipients, a)
	n.logger.Info("winners announcement", "subject", msg.Subject, "recipients", len(msg.Recipients), "winners", len(msg.Winners))
	return nil
}
