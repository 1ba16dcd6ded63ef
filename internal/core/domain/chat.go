package domain

import "time"

// ChatThread is the transport layer's metadata for one booking conversation.
type ChatThread struct {
	ID            string         `bson:"_id"`
	BookingID     string         `bson:"booking_id"`
	ClientID      string         `bson:"client_id"`
	ProviderID    string         `bson:"provider_id"`
	LastMessage   string         `bson:"last_message"`
	LastMessageAt time.Time      `bson:"last_message_at"`
	Unread        map[string]int `bson:"unread"`
}

// BookingSnapshot is the booking as seen when a thread summary was built.
type BookingSnapshot struct {
	BookingID       string
	ServiceName     string
	CounterpartID   string
	CounterpartName string
	Status          BookingStatus
	ScheduledTime   time.Time
}

// ChatThreadSummary is derived per query and never persisted.
type ChatThreadSummary struct {
	ThreadID      string
	BookingID     string
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
	Booking       BookingSnapshot
}
