package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/medtrackhq/medtrack-server/internal/model"
)

// EmailSender posts to the transactional email gateway.
type EmailSender struct {
	client *resty.Client
	url    string
}

func NewEmailSender(url string, timeout time.Duration) *EmailSender {
	return &EmailSender{client: resty.New().SetTimeout(timeout), url: url}
}

func (e *EmailSender) Name() string { return "email" }

func (e *EmailSender) Send(ctx context.Context, user *model.User, note Note) error {
	if user.Email == "" {
		return fmt.Errorf("user %s: %w", user.UserID, ErrNoEndpoint)
	}
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"to":      user.Email,
			"subject": note.Title,
			"body":    note.Body,
		}).
		Post(e.url)
	if err != nil {
		return fmt.Errorf("email gateway: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("email gateway returned %s", resp.Status())
	}
	return nil
}
