package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// NotificationKind tells the mailer which message to compose.
type NotificationKind string

const (
	KindActivation     NotificationKind = "activation"
	KindPasswordReset  NotificationKind = "password_reset"
	KindAccountDeleted NotificationKind = "account_deleted"
)

var ErrInvalidNotification = errors.New("invalid notification")

// Notification is an e-mail the development backend wants delivered. Link
// points at the frontend page that consumes Pin.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Email     string           `json:"email"`
	FirstName string           `json:"firstName,omitempty"`
	Username  string           `json:"username,omitempty"`
	Pin       string           `json:"pin,omitempty"`
	Link      string           `json:"link,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewNotification(kind NotificationKind, email string) *Notification {
	return &Notification{Kind: kind, Email: email, Timestamp: time.Now()}
}

// Validate checks the fields the mailer needs for the kind.
func (n *Notification) Validate() error {
	if n.Email == "" {
		return fmt.Errorf("%w: missing email", ErrInvalidNotification)
	}
	switch n.Kind {
	case KindActivation, KindPasswordReset:
		if n.Pin == "" {
			return fmt.Errorf("%w: %s without pin", ErrInvalidNotification, n.Kind)
		}
	case KindAccountDeleted:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidNotification, n.Kind)
	}
	return nil
}

// Subject is the e-mail subject line for the kind.
func (n *Notification) Subject() string {
	switch n.Kind {
	case KindActivation:
		return "Potwierdź rejestrację konta"
	case KindPasswordReset:
		return "Resetowanie hasła"
	case KindAccountDeleted:
		return "Twoje konto zostało usunięte"
	default:
		return string(n.Kind)
	}
}

func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// NotificationFromJSON decodes and validates a message body.
func NotificationFromJSON(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}
