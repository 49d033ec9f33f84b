package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/medtrackhq/medtrack-server/internal/model"
)

// PushSender posts to the push gateway, which owns device-token delivery.
type PushSender struct {
	client *resty.Client
	url    string
}

func NewPushSender(url string, timeout time.Duration) *PushSender {
	return &PushSender{client: resty.New().SetTimeout(timeout), url: url}
}

func (p *PushSender) Name() string { return "push" }

func (p *PushSender) Send(ctx context.Context, user *model.User, note Note) error {
	if user.PushToken == nil || *user.PushToken == "" {
		return fmt.Errorf("user %s: %w", user.UserID, ErrNoEndpoint)
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"token": *user.PushToken,
			"title": note.Title,
			"body":  note.Body,
		}).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("push gateway: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("push gateway returned %s", resp.Status())
	}
	return nil
}
