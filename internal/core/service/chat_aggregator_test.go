package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

type stubThreadRepo struct {
	threads []domain.ChatThread
	err     error
	queries int
}

func (r *stubThreadRepo) RecentForUser(_ context.Context, userID string, role domain.Role, limit int) ([]domain.ChatThread, error) {
	r.queries++
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.ChatThread
	for _, t := range r.threads {
		if (role == domain.RoleClient && t.ClientID == userID) || (role == domain.RoleProvider && t.ProviderID == userID) {
			out = append(out, t)
		}
	}
	// Deliberately unsorted and uncapped: the aggregator owns ordering.
	return out, nil
}

func (r *stubThreadRepo) CountForUser(_ context.Context, userID string, role domain.Role) (int64, error) {
	var n int64
	for _, t := range r.threads {
		if (role == domain.RoleClient && t.ClientID == userID) || (role == domain.RoleProvider && t.ProviderID == userID) {
			n++
		}
	}
	return n, nil
}

func seedThreads(t *testing.T, s *memStore, svc *BookingService, n int) []domain.ChatThread {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	threads := make([]domain.ChatThread, 0, n)
	for i := range n {
		b := mustCreate(t, svc)
		threads = append(threads, domain.ChatThread{
			ID:            "thread-" + b.ID,
			BookingID:     b.ID,
			ClientID:      b.ClientID,
			ProviderID:    b.ProviderID,
			LastMessage:   "message",
			LastMessageAt: base.Add(time.Duration(i) * time.Hour),
			Unread:        map[string]int{clientID: i, providerID: 10 + i},
		})
	}
	return threads
}

func TestChatAggregator_RecentThreads(t *testing.T) {
	s := seededStore()
	bsvc := newBookingSvc(s, &stubPublisher{})
	repo := &stubThreadRepo{threads: seedThreads(t, s, bsvc, 7)}
	agg := NewChatAggregator(repo, stubBookingRepo{s}, stubCatalog{s}, stubProfiles{s: s}, 0, discardLogger)

	digest, err := agg.RecentThreads(context.Background(), clientID, domain.RoleClient)
	if err != nil {
		t.Fatalf("RecentThreads: %v", err)
	}
	if digest.Total != 7 || digest.Limit != 5 {
		t.Errorf("expected total 7 limit 5, got %d/%d", digest.Total, digest.Limit)
	}
	if repo.queries != 0 {
		t.Errorf("expected no thread query before ranging, got %d", repo.queries)
	}

	var got []domain.ChatThreadSummary
	for summary, err := range digest.Threads {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		got = append(got, summary)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 summaries, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].LastMessageAt.After(got[i-1].LastMessageAt) {
			t.Errorf("summaries out of order at %d", i)
		}
	}
	first := got[0]
	if first.UnreadCount != 6 {
		t.Errorf("expected unread passed through as 6, got %d", first.UnreadCount)
	}
	if first.Booking.ServiceName != "Plumbing" || first.Booking.CounterpartName != "Pablo's Plumbing" || first.Booking.Status != domain.StatusPending {
		t.Errorf("unexpected snapshot: %+v", first.Booking)
	}

	// Restartable: ranging again re-runs the query and sees fresh booking state.
	if _, err := transition(bsvc, first.BookingID, domain.ActionAccept, providerActor, cents(100)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	for summary, err := range digest.Threads {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		if summary.Booking.Status != domain.StatusAccepted {
			t.Errorf("expected fresh status, got %s", summary.Booking.Status)
		}
		break
	}
	if repo.queries != 2 {
		t.Errorf("expected two queries, got %d", repo.queries)
	}
	if got[0].Booking.Status != domain.StatusPending {
		t.Error("earlier snapshot must not change")
	}
}

func TestChatAggregator_ProviderSideCounterpart(t *testing.T) {
	s := seededStore()
	bsvc := newBookingSvc(s, &stubPublisher{})
	repo := &stubThreadRepo{threads: seedThreads(t, s, bsvc, 1)}
	agg := NewChatAggregator(repo, stubBookingRepo{s}, stubCatalog{s}, stubProfiles{s: s}, 3, discardLogger)

	digest, err := agg.RecentThreads(context.Background(), providerID, domain.RoleProvider)
	if err != nil {
		t.Fatalf("RecentThreads: %v", err)
	}
	for summary, err := range digest.Threads {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		if summary.Booking.CounterpartID != clientID || summary.Booking.CounterpartName != "Carla" {
			t.Errorf("unexpected counterpart: %+v", summary.Booking)
		}
		if summary.UnreadCount != 10 {
			t.Errorf("expected provider unread 10, got %d", summary.UnreadCount)
		}
	}
}

func TestChatAggregator_SkipsThreadsWithoutBooking(t *testing.T) {
	s := seededStore()
	bsvc := newBookingSvc(s, &stubPublisher{})
	threads := seedThreads(t, s, bsvc, 2)
	threads = append(threads, domain.ChatThread{
		ID: "orphan", BookingID: "gone", ClientID: clientID, ProviderID: providerID,
		LastMessageAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	agg := NewChatAggregator(&stubThreadRepo{threads: threads}, stubBookingRepo{s}, stubCatalog{s}, stubProfiles{s: s}, 5, discardLogger)

	digest, err := agg.RecentThreads(context.Background(), clientID, domain.RoleClient)
	if err != nil {
		t.Fatalf("RecentThreads: %v", err)
	}
	n := 0
	for summary, err := range digest.Threads {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		if summary.ThreadID == "orphan" {
			t.Error("orphan thread should be skipped")
		}
		n++
	}
	if n != 2 {
		t.Errorf("expected 2 summaries, got %d", n)
	}
}

func TestChatAggregator_Errors(t *testing.T) {
	s := seededStore()
	repo := &stubThreadRepo{err: errors.New("transport offline")}
	agg := NewChatAggregator(repo, stubBookingRepo{s}, stubCatalog{s}, stubProfiles{s: s}, 5, discardLogger)

	if _, err := agg.RecentThreads(context.Background(), clientID, domain.RoleNone); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for role none, got %v", err)
	}
	if _, err := agg.RecentThreads(context.Background(), "", domain.RoleClient); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected unauthorized for anonymous, got %v", err)
	}

	digest, err := agg.RecentThreads(context.Background(), clientID, domain.RoleClient)
	if err != nil {
		t.Fatalf("RecentThreads: %v", err)
	}
	var iterErr error
	for _, err := range digest.Threads {
		iterErr = err
	}
	if iterErr == nil {
		t.Error("expected the query error to surface through the sequence")
	}
}
