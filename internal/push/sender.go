// Package push wraps the outbound delivery channel.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// tokenPlaceholder marks where a patient's delivery token is substituted
// into the configured service URL.
const tokenPlaceholder = "{token}"

// Sender delivers one rendered notification to one device token. It returns
// a provider message identifier on success.
type Sender interface {
	Send(ctx context.Context, token, title, body string) (string, error)
}

// shoutrrrSender sends through a shoutrrr service URL template.
type shoutrrrSender struct {
	urlTemplate string
}

// NewShoutrrrSender creates a Sender from a shoutrrr URL template containing
// a {token} placeholder (e.g. "ntfy://ntfy.example.org/{token}").
func NewShoutrrrSender(urlTemplate string) (Sender, error) {
	if urlTemplate == "" {
		return nil, errors.New("push URL template is empty")
	}
	if !strings.Contains(urlTemplate, tokenPlaceholder) {
		return nil, fmt.Errorf("push URL template must contain %s", tokenPlaceholder)
	}
	// Validate the template shape eagerly with a dummy token so a bad URL
	// fails at startup instead of on the first dispatch.
	probe := strings.ReplaceAll(urlTemplate, tokenPlaceholder, "probe")
	if _, err := shoutrrr.CreateSender(probe); err != nil {
		return nil, fmt.Errorf("invalid push URL template: %w", err)
	}
	return &shoutrrrSender{urlTemplate: urlTemplate}, nil
}

func (s *shoutrrrSender) Send(ctx context.Context, token, title, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	serviceURL := strings.ReplaceAll(s.urlTemplate, tokenPlaceholder, url.PathEscape(token))
	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		return "", fmt.Errorf("failed to create push sender: %w", err)
	}
	params := types.Params{"title": title}
	if errs := sender.Send(body, &params); len(errs) > 0 {
		if joined := errors.Join(errs...); joined != nil {
			return "", fmt.Errorf("push send failed: %w", joined)
		}
	}
	return uuid.NewString(), nil
}
