package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

const defaultRecentThreads = 5

// ChatAggregator joins chat thread metadata onto the bookings they discuss.
type ChatAggregator struct {
	threads  ports.ChatThreadRepository
	bookings ports.BookingRepository
	catalog  ports.ServiceCatalog
	profiles ports.ProfileStore
	limit    int
	log      zerolog.Logger
}

func NewChatAggregator(
	threads ports.ChatThreadRepository,
	bookings ports.BookingRepository,
	catalog ports.ServiceCatalog,
	profiles ports.ProfileStore,
	limit int,
	log zerolog.Logger,
) *ChatAggregator {
	if limit <= 0 {
		limit = defaultRecentThreads
	}
	return &ChatAggregator{
		threads:  threads,
		bookings: bookings,
		catalog:  catalog,
		profiles: profiles,
		limit:    limit,
		log:      log,
	}
}

// RecentThreads counts the user's threads up front and returns the newest
// ones as a sequence that queries and joins bookings while it is ranged over.
func (a *ChatAggregator) RecentThreads(ctx context.Context, userID string, role domain.Role) (*ports.ThreadDigest, error) {
	if userID == "" {
		return nil, fmt.Errorf("recent threads: %w", domain.ErrUnauthorized)
	}
	if role != domain.RoleClient && role != domain.RoleProvider {
		return nil, fmt.Errorf("recent threads: %w: role must be client or provider", domain.ErrInvalidInput)
	}

	total, err := a.threads.CountForUser(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("recent threads: count: %w", err)
	}

	limit := a.limit
	seq := func(yield func(domain.ChatThreadSummary, error) bool) {
		threads, err := a.threads.RecentForUser(ctx, userID, role, limit)
		if err != nil {
			yield(domain.ChatThreadSummary{}, fmt.Errorf("recent threads: %w", err))
			return
		}
		slices.SortStableFunc(threads, func(x, y domain.ChatThread) int {
			return y.LastMessageAt.Compare(x.LastMessageAt)
		})
		if len(threads) > limit {
			threads = threads[:limit]
		}

		serviceNames := make(map[string]string)
		for _, t := range threads {
			summary, err := a.summarize(ctx, t, userID, role, serviceNames)
			if errors.Is(err, domain.ErrNotFound) {
				a.log.Warn().Str("thread_id", t.ID).Str("booking_id", t.BookingID).Msg("thread without booking skipped")
				continue
			}
			if err != nil {
				yield(domain.ChatThreadSummary{}, fmt.Errorf("recent threads: %w", err))
				return
			}
			if !yield(summary, nil) {
				return
			}
		}
	}

	return &ports.ThreadDigest{Total: total, Limit: limit, Threads: seq}, nil
}

func (a *ChatAggregator) summarize(ctx context.Context, t domain.ChatThread, userID string, role domain.Role, serviceNames map[string]string) (domain.ChatThreadSummary, error) {
	b, err := a.bookings.FindByID(ctx, t.BookingID)
	if err != nil {
		return domain.ChatThreadSummary{}, err
	}

	name, ok := serviceNames[b.ServiceID]
	if !ok {
		if svc, err := a.catalog.FindService(ctx, b.ServiceID); err == nil {
			name = svc.Name
		}
		serviceNames[b.ServiceID] = name
	}

	counterpart, counterpartRole := b.ProviderID, domain.RoleProvider
	if role == domain.RoleProvider {
		counterpart, counterpartRole = b.ClientID, domain.RoleClient
	}
	var counterpartName string
	if set, err := a.profiles.FindProfiles(ctx, counterpart); err == nil {
		counterpartName = set.DisplayName(counterpartRole)
	}

	return domain.ChatThreadSummary{
		ThreadID:      t.ID,
		BookingID:     b.ID,
		LastMessage:   t.LastMessage,
		LastMessageAt: t.LastMessageAt,
		UnreadCount:   t.Unread[userID],
		Booking: domain.BookingSnapshot{
			BookingID:       b.ID,
			ServiceName:     name,
			CounterpartID:   counterpart,
			CounterpartName: counterpartName,
			Status:          b.Status,
			ScheduledTime:   b.ScheduledTime,
		},
	}, nil
}
