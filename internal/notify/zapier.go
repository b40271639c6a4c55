// Package notify dispatches alert messages through a Zapier SMS webhook.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/sauvie/weedwatch/internal/httputil"
)

// maxSMSLength keeps messages inside the carrier concatenation limit the
// webhook's SMS step tolerates.
const maxSMSLength = 1500

// Notifier delivers one alert message to the recipient.
type Notifier interface {
	Send(message string) error
}

// ZapierClient posts messages to a Zapier catch hook that forwards them
// as SMS.
type ZapierClient struct {
	webhookURL string
	phone      string
	client     *http.Client
}

func NewZapierClient(webhookURL, phone string) *ZapierClient {
	return &ZapierClient{
		webhookURL: webhookURL,
		phone:      phone,
		client:     httputil.NewClient(),
	}
}

func (z *ZapierClient) Send(message string) error {
	payload, err := json.Marshal(map[string]string{
		"message": Truncate(message),
		"phone":   z.phone,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := z.client.Post(z.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// Truncate caps a message at the SMS limit, marking the cut.
func Truncate(message string) string {
	if len(message) <= maxSMSLength {
		return message
	}
	return message[:maxSMSLength-3] + "..."
}

// LogNotifier prints messages instead of sending them. Used when no
// webhook is configured so the engine still runs end to end.
type LogNotifier struct{}

func (LogNotifier) Send(message string) error {
	log.Printf("notify (dry run):\n%s", message)
	return nil
}
