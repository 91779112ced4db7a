package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	KindDiscord = "discord"
	KindSlack   = "slack"

	username = "fisherman"
	// discord rejects messages longer than this many characters
	discordMaxContent = 2000
)

// Func delivers message to the named target of a notification sink.
type Func func(ctx context.Context, target, message string) error

// Error is returned when the sink answers with a non-2xx status.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("notification rejected with status %d: %s", e.StatusCode, e.Body)
}

type Notifier struct {
	kind   string
	url    string
	client *http.Client
}

func NewNotifier(kind, url string) (*Notifier, error) {
	if kind != KindDiscord && kind != KindSlack {
		return nil, fmt.Errorf("unsupported notification kind %q", kind)
	}
	return &Notifier{
		kind: kind,
		url:  url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

type discordMessage struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}

type slackMessage struct {
	Channel  string `json:"channel,omitempty"`
	Text     string `json:"text"`
	Username string `json:"username"`
}

func (n *Notifier) Notify(ctx context.Context, target, message string) error {
	var body any
	switch n.kind {
	case KindDiscord:
		body = discordMessage{Content: truncate(message, discordMaxContent), Username: username}
	default:
		body = slackMessage{Channel: target, Text: message, Username: username}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("err sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
