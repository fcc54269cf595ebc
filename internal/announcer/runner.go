package announcer

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const webhookAnnouncePath = "/announcements"

type Option func(*owaAnnouncer)

type Service interface {
	Do(action, folder, messageID string, count int) error
}

func WithWebhookURL(webhookURL string) Option {
	return func(owa *owaAnnouncer) {
		owa.baseURL = strings.TrimSpace(webhookURL)
	}
}

type owaAnnouncer struct {
	baseURL string
}

func New(opts ...Option) *owaAnnouncer {
	announcer := &owaAnnouncer{}
	for _, opt := range opts {
		opt(announcer)
	}
	return announcer
}

func (o *owaAnnouncer) Do(action, folder, messageID string, count int) error {
	if o.baseURL == "" {
		return nil
	}
	baseURL := strings.TrimRight(o.baseURL, "/")
	message := fmt.Sprintf("%s: folder %q message %q (%d messages listed)\n", action, folder, messageID, count)
	payload := fmt.Sprintf("{\"message\": %q}", message)
	req, err := http.NewRequest("POST", baseURL+webhookAnnouncePath, strings.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reporting webhook returned status %s", resp.Status)
	}
	return nil
}
