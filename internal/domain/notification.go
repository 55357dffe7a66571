package domain

import "time"

// Channel is the delivery channel for a notification. Each channel maps to
// its own durable bus stream consumed by a dedicated downstream process.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// Channels lists every valid channel; used for stream provisioning.
var Channels = []Channel{ChannelPush, ChannelEmail}

func (c Channel) IsValid() bool {
	switch c {
	case ChannelPush, ChannelEmail:
		return true
	}
	return false
}

// Priority selects the scheduler tier a notification is dispatched from.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityLow:
		return true
	}
	return false
}

// Status tracks the lifecycle of a notification. The only legal transitions
// are pending → sent, pending → failed, and pending → cancelled; terminal
// statuses never change again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether a notification in this status is done for good.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Recipient identifies the target of a notification. The timezone offset
// ("±HH:MM") drives the quiet-hours filter; the id keys the bus subject.
type Recipient struct {
	ID             string `json:"id" bson:"id"`
	TimezoneOffset string `json:"timezone_offset" bson:"timezone_offset"`
}

// Notification is the single persisted aggregate. Field names match the
// wire and document layout exactly; the struct is marshalled as-is onto the
// bus and into the store.
type Notification struct {
	ID            string    `json:"_id,omitempty" bson:"_id,omitempty"`
	Content       string    `json:"content" bson:"content"`
	Channel       Channel   `json:"channel" bson:"channel"`
	Recipient     Recipient `json:"recipient" bson:"recipient"`
	ScheduledTime time.Time `json:"scheduledTime" bson:"scheduledTime"`
	Priority      Priority  `json:"priority" bson:"priority"`
	Status        Status    `json:"status" bson:"status"`
	RetryCount    uint32    `json:"retryCount" bson:"retryCount"`
}

// Validate checks the client-supplied fields of a notification before it is
// persisted. The id and status are server-owned and not validated here.
func (n *Notification) Validate() error {
	if !n.Channel.IsValid() {
		return ErrInvalidChannel
	}
	if !n.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if n.Recipient.ID == "" {
		return ErrInvalidRecipient
	}
	if n.Content == "" {
		return ErrInvalidContent
	}
	if n.ScheduledTime.IsZero() {
		return ErrInvalidSchedule
	}
	return nil
}

// QueryOptions narrows a repository Find. All supplied predicates apply
// conjunctively; nil pointers mean "no constraint".
type QueryOptions struct {
	Priority *Priority
	Status   *Status

	// ScheduledBefore is the inclusive upper bound on scheduledTime.
	ScheduledBefore *time.Time

	// RespectNighttime further restricts results to recipients whose local
	// hour at ScheduledBefore falls inside the waking window. Only effective
	// when ScheduledBefore is set.
	RespectNighttime bool

	// Limit caps the number of returned documents; 0 means unlimited.
	Limit int64
}
