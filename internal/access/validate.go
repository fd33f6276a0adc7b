package access

import (
	"errors"
	"fmt"

	"github.com/agentacademy/academy/internal/tiers"
)

// ErrMalformedItem is matched by every MalformedItemError.
var ErrMalformedItem = errors.New("access: malformed content item")

// MalformedItemError reports content whose access policy cannot be evaluated.
type MalformedItemError struct {
	ItemID string
	Reason string
	Err    error
}

func (e *MalformedItemError) Error() string {
	msg := "access: malformed content item"
	if e.ItemID != "" {
		msg += " " + e.ItemID
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is lets errors.Is match ErrMalformedItem.
func (e *MalformedItemError) Is(target error) bool {
	return target == ErrMalformedItem
}

func (e *MalformedItemError) Unwrap() error {
	return e.Err
}

// Validate checks the item's policy fields. Content must pass Validate
// before it is stored.
func Validate(item Item) error {
	if !item.Status.Valid() {
		return &MalformedItemError{ItemID: item.ID, Reason: fmt.Sprintf("unknown status %q", item.Status)}
	}
	switch item.Visibility {
	case Public, Subscribers:
		if item.RequiredTier != nil {
			return &MalformedItemError{ItemID: item.ID, Reason: fmt.Sprintf("required tier set on %s item", item.Visibility)}
		}
		return nil
	case Tiered:
		if item.RequiredTier == nil {
			return &MalformedItemError{ItemID: item.ID, Reason: "tiered item without required tier"}
		}
		if _, err := tiers.Rank(*item.RequiredTier); err != nil {
			return &MalformedItemError{ItemID: item.ID, Reason: "invalid required tier", Err: err}
		}
		return nil
	default:
		return &MalformedItemError{ItemID: item.ID, Reason: fmt.Sprintf("unknown visibility %q", item.Visibility)}
	}
}
