package domain

import (
	"errors"
	"testing"
	"time"
)

func validNotification() Notification {
	return Notification{
		Content:       "hi",
		Channel:       ChannelPush,
		Recipient:     Recipient{ID: "u1", TimezoneOffset: "+00:00"},
		ScheduledTime: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
		Priority:      PriorityHigh,
	}
}

func TestNotification_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(n *Notification)
		wantErr error
	}{
		{"valid", func(n *Notification) {}, nil},
		{"invalid channel", func(n *Notification) { n.Channel = "sms" }, ErrInvalidChannel},
		{"invalid priority", func(n *Notification) { n.Priority = "normal" }, ErrInvalidPriority},
		{"empty recipient", func(n *Notification) { n.Recipient.ID = "" }, ErrInvalidRecipient},
		{"empty content", func(n *Notification) { n.Content = "" }, ErrInvalidContent},
		{"zero schedule", func(n *Notification) { n.ScheduledTime = time.Time{} }, ErrInvalidSchedule},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := validNotification()
			tc.mutate(&n)
			err := n.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr != nil && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected %v to wrap ErrValidation", err)
			}
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, s := range []Status{StatusSent, StatusFailed, StatusCancelled} {
		if !s.IsTerminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}

func TestChannel_IsValid(t *testing.T) {
	for _, c := range Channels {
		if !c.IsValid() {
			t.Fatalf("%s must be valid", c)
		}
	}
	if Channel("sms").IsValid() {
		t.Fatal("sms must be invalid")
	}
}
