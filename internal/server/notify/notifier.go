// Package notify delivers account mail. The auth service only knows the
// Notifier interface; which implementation runs is a configuration choice.
package notify

import (
	"context"
	"fmt"
)

// Notifier sends one plain-text message to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// VerificationSubject is the subject line of account activation mail.
const VerificationSubject = "Verify your account"

// VerificationBody renders the activation mail text around link.
func VerificationBody(link string) string {
	return fmt.Sprintf("Welcome!\n\nTo activate your account, open the link below:\n\n%s\n\nThe link is valid for 24 hours and can be used once.\n", link)
}
