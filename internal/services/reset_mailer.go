package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/njugunanduati/medicine-dose-tracker/internal/models"
)

const resetEmailSubject = "[Medicine Dose Tracker] Reset Your Password"

// ResetMailer renders and sends the password-reset email.
type ResetMailer struct {
	sender  EmailSender
	baseURL string
	ttl     time.Duration
}

func NewResetMailer(sender EmailSender, baseURL string, ttl time.Duration) *ResetMailer {
	return &ResetMailer{
		sender:  sender,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
	}
}

func (m *ResetMailer) ResetURL(token string) string {
	return m.baseURL + "/reset_password/" + token
}

func (m *ResetMailer) SendResetEmail(ctx context.Context, user *models.User, token string) error {
	body := fmt.Sprintf(`Dear %s,

To reset your password click on the following link:

%s

The link expires in %d minutes. If you have not requested a password reset simply ignore this message.

Sincerely,

The Medicine Dose Tracker Team
`, user.Username, m.ResetURL(token), int(m.ttl.Minutes()))

	return m.sender.Send(ctx, user.Email, resetEmailSubject, body)
}
