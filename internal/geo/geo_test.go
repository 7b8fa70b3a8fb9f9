package geo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
)

type mockLocator struct {
	loc Location
	err error
}

func (m *mockLocator) Locate() (Location, error) {
	return m.loc, m.err
}

type mockMailer struct {
	sent []sentMail
	err  error
}

type sentMail struct {
	to      []string
	subject string
	body    string
}

func (m *mockMailer) Send(_ context.Context, to []string, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReporter(locator Locator, mailer Mailer) (*Reporter, *alert.Queue) {
	queue := alert.NewQueue(alert.NewCooldownFilter())
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Contact = "contact@example.com"
	return NewReporter(locator, mailer, queue, cfg, quietLogger()), queue
}

func TestCheckInIncludesLocation(t *testing.T) {
	mailer := &mockMailer{}
	r, _ := newTestReporter(&mockLocator{loc: Location{Latitude: 18.5204, Longitude: 73.8567}}, mailer)

	r.checkIn()

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.sent))
	}
	mail := mailer.sent[0]
	if mail.to[0] != "contact@example.com" {
		t.Errorf("to = %v", mail.to)
	}
	if !strings.Contains(mail.body, "18.520400, 73.856700") {
		t.Errorf("body missing coordinates: %q", mail.body)
	}
	if !strings.Contains(mail.body, "maps.google.com") {
		t.Errorf("body missing map link: %q", mail.body)
	}
}

func TestCheckInWithoutFixReportsUnknown(t *testing.T) {
	mailer := &mockMailer{}
	r, _ := newTestReporter(&mockLocator{err: errors.New("no satellites")}, mailer)

	r.checkIn()

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.sent))
	}
	if !strings.Contains(mailer.sent[0].body, "Location unknown") {
		t.Errorf("body = %q, want unknown location", mailer.sent[0].body)
	}
}

func TestNilLocatorReportsUnknown(t *testing.T) {
	mailer := &mockMailer{}
	r, _ := newTestReporter(nil, mailer)

	r.checkIn()

	if !strings.Contains(mailer.sent[0].body, "Location unknown") {
		t.Errorf("body = %q, want unknown location", mailer.sent[0].body)
	}
}

func TestConsecutiveFailuresRaiseSingleAlert(t *testing.T) {
	mailer := &mockMailer{err: errors.New("connection refused")}
	r, queue := newTestReporter(nil, mailer)

	for i := 0; i < failureAlertThreshold+2; i++ {
		r.checkIn()
	}

	events := queue.Drain()
	if len(events) != 1 {
		t.Fatalf("got %d system events, want 1", len(events))
	}
	if events[0].Category != alert.CategorySystem {
		t.Errorf("category = %q, want system", events[0].Category)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	mailer := &mockMailer{err: errors.New("connection refused")}
	r, queue := newTestReporter(nil, mailer)

	r.checkIn()
	r.checkIn()
	mailer.err = nil
	r.checkIn()
	mailer.err = errors.New("connection refused")
	r.checkIn()
	r.checkIn()

	if events := queue.Drain(); len(events) != 0 {
		t.Fatalf("got %d events, want 0 (threshold never reached)", len(events))
	}
}

func TestSendEmergency(t *testing.T) {
	mailer := &mockMailer{}
	r, _ := newTestReporter(&mockLocator{loc: Location{Latitude: 1, Longitude: 2}}, mailer)

	if err := r.SendEmergency(); err != nil {
		t.Fatalf("SendEmergency() = %v", err)
	}
	mail := mailer.sent[0]
	if !strings.Contains(mail.subject, "EMERGENCY") {
		t.Errorf("subject = %q", mail.subject)
	}
	if !strings.Contains(mail.body, "1.000000, 2.000000") {
		t.Errorf("body missing location: %q", mail.body)
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	mailer := &mockMailer{}
	queue := alert.NewQueue(alert.NewCooldownFilter())
	cfg := DefaultConfig()
	cfg.Contact = "contact@example.com"
	r := NewReporter(nil, mailer, queue, cfg, quietLogger())

	if err := r.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if r.IsRunning() {
		t.Error("disabled reporter reports running")
	}
}

func TestStartAndStop(t *testing.T) {
	mailer := &mockMailer{}
	r, _ := newTestReporter(nil, mailer)

	if err := r.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if !r.IsRunning() {
		t.Fatal("reporter not running after Start")
	}
	r.Stop()
	if r.IsRunning() {
		t.Fatal("reporter still running after Stop")
	}
}
