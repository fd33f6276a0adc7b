package newsletter

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/content"
	"github.com/agentacademy/academy/internal/shared"
)

const idempotencyModule = "newsletter"

// Domain errors for newsletter operations.
var (
	ErrNotPublished  = errors.New("newsletter: item is not published")
	ErrAlreadySent   = errors.New("newsletter: item already sent")
	ErrUnknownMember = errors.New("newsletter: unknown member")
	ErrInvalidInput  = errors.New("newsletter: invalid input")
)

// Store defines data access methods for newsletter delivery.
type Store interface {
	ListRecipients(ctx context.Context) ([]Member, error)
	SetOptIn(ctx context.Context, userID string, optIn bool) error
	RecordSend(ctx context.Context, log SendLog) error
}

// ItemSource loads content items.
type ItemSource interface {
	Get(ctx context.Context, id uuid.UUID) (content.Item, error)
}

// Claims guards against sending the same item twice.
type Claims interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// OptInInput toggles the newsletter preference.
type OptInInput struct {
	OptIn *bool `json:"opt_in" validate:"required"`
}

// Service sends published items to eligible members.
type Service struct {
	store      Store
	items      ItemSource
	claims     Claims
	dispatcher *Dispatcher
	logger     *slog.Logger
	validator  *validator.Validate
	html       *bluemonday.Policy
	text       *bluemonday.Policy
	clock      func() time.Time
}

// NewService builds Service instance. A nil claims store disables the
// duplicate-send guard.
func NewService(store Store, items ItemSource, claims Claims, dispatcher *Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		items:      items,
		claims:     claims,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "newsletter")),
		validator:  validator.New(),
		html:       bluemonday.UGCPolicy(),
		text:       bluemonday.StrictPolicy(),
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// CheckSendable reports whether itemID may be queued for sending.
func (s *Service) CheckSendable(ctx context.Context, itemID uuid.UUID) error {
	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != access.StatusPublished {
		return ErrNotPublished
	}
	return nil
}

// SendItem emails a published item to every opted-in member who may read it
// and records the outcome. Individual delivery failures are part of the
// returned log, not an error.
func (s *Service) SendItem(ctx context.Context, itemID uuid.UUID) (SendLog, error) {
	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		return SendLog{}, fmt.Errorf("newsletter: load item: %w", err)
	}
	if item.Status != access.StatusPublished {
		return SendLog{}, ErrNotPublished
	}

	key := "newsletter:" + itemID.String()
	if s.claims != nil {
		if err := s.claims.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return SendLog{}, ErrAlreadySent
			}
			return SendLog{}, fmt.Errorf("newsletter: claim send: %w", err)
		}
	}

	members, err := s.store.ListRecipients(ctx)
	if err != nil {
		s.release(ctx, key)
		return SendLog{}, err
	}

	started := s.clock()
	res := s.dispatcher.Dispatch(ctx, s.issueFor(item), s.recipients(ctx, members, started))
	if err := interrupted(ctx, res); err != nil {
		s.release(context.WithoutCancel(ctx), key)
		return SendLog{}, fmt.Errorf("newsletter: send interrupted: %w", err)
	}
	log := SendLog{
		ID:         uuid.New(),
		ItemID:     item.ID,
		Total:      res.Total,
		Sent:       res.Sent,
		Failed:     res.Failed(),
		Failures:   res.Errors,
		StartedAt:  started,
		FinishedAt: s.clock(),
	}
	if err := s.store.RecordSend(context.WithoutCancel(ctx), log); err != nil {
		return log, fmt.Errorf("newsletter: record send: %w", err)
	}
	s.logger.InfoContext(ctx, "newsletter sent",
		slog.String("item_id", item.ID.String()),
		slog.Int("total", log.Total),
		slog.Int("sent", log.Sent),
		slog.Int("failed", log.Failed),
	)
	return log, nil
}

// SetOptIn stores a member's newsletter preference.
func (s *Service) SetOptIn(ctx context.Context, userID string, input OptInInput) error {
	if err := s.validator.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(userID) == "" {
		return ErrUnknownMember
	}
	return s.store.SetOptIn(ctx, userID, *input.OptIn)
}

func (s *Service) recipients(ctx context.Context, members []Member, now time.Time) []Recipient {
	out := make([]Recipient, 0, len(members))
	for _, m := range members {
		viewer := access.Anonymous()
		if m.Subscription != nil {
			v, err := m.Subscription.Viewer(now)
			if err != nil {
				s.logger.ErrorContext(ctx, "recipient tier not in catalog", slog.String("user_id", m.UserID), slog.Any("error", err))
			}
			viewer = v
		}
		out = append(out, Recipient{
			UserID:                 m.UserID,
			Email:                  m.Email,
			Name:                   m.Name,
			SubscribedToNewsletter: m.OptedIn,
			PaidState:              viewer,
		})
	}
	return out
}

func (s *Service) issueFor(item content.Item) Issue {
	return Issue{
		Item:    item.Access(),
		Subject: item.Title,
		HTML:    s.html.Sanitize(item.Body),
		Text:    strings.TrimSpace(html.UnescapeString(s.text.Sanitize(item.Body))),
	}
}

// interrupted returns the context error when the dispatch was cut short
// before any email left.
func interrupted(ctx context.Context, res Result) error {
	cause := ctx.Err()
	if cause == nil || res.Sent > 0 {
		return nil
	}
	for _, e := range res.Errors {
		if !errors.Is(e.Err, cause) {
			return nil
		}
	}
	return cause
}

func (s *Service) release(ctx context.Context, key string) {
	if s.claims == nil {
		return
	}
	if err := s.claims.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "release newsletter claim", slog.String("key", key), slog.Any("error", err))
	}
}
