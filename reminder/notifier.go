package reminder

import (
	"fmt"

	"github.com/gregdel/pushover"
)

// Notifier delivers a reminder message
type Notifier interface {
	Notify(title, message string) error
}

// Pushover sends reminders through the pushover API
type Pushover struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
	device    string
}

// NewPushover for the app token and user key. An empty device reaches every
// device of the user.
func NewPushover(apiToken, userKey, device string) *Pushover {
	return &Pushover{
		app:       pushover.New(apiToken),
		recipient: pushover.NewRecipient(userKey),
		device:    device,
	}
}

// Notify the recipient
func (p *Pushover) Notify(title, message string) error {
	msg := pushover.NewMessageWithTitle(message, title)
	msg.DeviceName = p.device

	if _, err := p.app.SendMessage(msg, p.recipient); err != nil {
		return fmt.Errorf("failed to send pushover message: %w", err)
	}

	return nil
}
