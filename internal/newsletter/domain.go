// Package newsletter selects eligible recipients for a published item and
// delivers it by email in rate-limited batches.
package newsletter

import (
	"fmt"

	"github.com/agentacademy/academy/internal/access"
)

// Recipient is a member who may receive newsletter email.
type Recipient struct {
	UserID                 string
	Email                  string
	Name                   string
	SubscribedToNewsletter bool
	PaidState              access.Viewer
}

// RecipientsFor keeps the recipients who opted in and may access item.
// Order is preserved.
func RecipientsFor(item access.Item, all []Recipient) []Recipient {
	out := make([]Recipient, 0, len(all))
	for _, r := range all {
		if !r.SubscribedToNewsletter {
			continue
		}
		if !access.CanAccess(item, r.PaidState) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RecipientSendError records a failed delivery to one recipient.
type RecipientSendError struct {
	Email string
	Err   error
}

func (e RecipientSendError) Error() string {
	return fmt.Sprintf("newsletter: send to %s: %v", e.Email, e.Err)
}

func (e RecipientSendError) Unwrap() error { return e.Err }

// Result summarises one dispatch.
type Result struct {
	Sent   int
	Total  int
	Errors []RecipientSendError
}

// Failed returns the number of recipients that did not receive the email.
func (r Result) Failed() int { return len(r.Errors) }

// Issue is the content handed to the dispatcher.
type Issue struct {
	Item    access.Item
	Subject string
	HTML    string
	Text    string
}
