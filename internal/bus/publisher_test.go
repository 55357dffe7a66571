package bus

import (
	"testing"

	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

func TestNaming(t *testing.T) {
	if got := StreamName(domain.ChannelPush); got != "notifications_push" {
		t.Fatalf("unexpected stream name: %s", got)
	}
	if got := StreamSubjects(domain.ChannelEmail); got != "notifications_email.*" {
		t.Fatalf("unexpected stream subjects: %s", got)
	}
	if got := Subject(domain.ChannelPush, "u1"); got != "notifications_push.u1" {
		t.Fatalf("unexpected subject: %s", got)
	}
}
