package tracker

import (
	"fmt"
	"strings"
	"time"
)

// ChannelType selects the carrier a user receives portions on.
type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelSMS   ChannelType = "sms"
)

func (c ChannelType) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// User is a registered translator.
type User struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	Preferred ChannelType `json:"preferred"`
	CreatedAt time.Time   `json:"created_at"`
}

// Contact returns the address portions are dispatched to.
func (u *User) Contact() string {
	if u.Preferred == ChannelSMS {
		return u.Phone
	}
	return u.Email
}

func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("user name is required")
	}
	switch u.Preferred {
	case ChannelEmail:
		if strings.TrimSpace(u.Email) == "" {
			return fmt.Errorf("email address is required for email delivery")
		}
	case ChannelSMS:
		if strings.TrimSpace(u.Phone) == "" {
			return fmt.Errorf("phone number is required for sms delivery")
		}
	default:
		return fmt.Errorf("unknown delivery channel %q", u.Preferred)
	}
	return nil
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	tmp := *u
	return &tmp
}
