// Package geo reports the wearer's location to an emergency contact by
// email, both on a periodic schedule and on demand when the emergency
// command fires.
package geo

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
)

// Location is a GPS fix in decimal degrees.
type Location struct {
	Latitude  float64
	Longitude float64
}

func (l Location) String() string {
	return fmt.Sprintf("%.6f, %.6f", l.Latitude, l.Longitude)
}

// MapsURL returns a link the contact can open directly.
func (l Location) MapsURL() string {
	return fmt.Sprintf("https://maps.google.com/?q=%.6f,%.6f", l.Latitude, l.Longitude)
}

// Locator is the positioning collaborator.
type Locator interface {
	Locate() (Location, error)
}

// Mailer delivers a plain-text message to the emergency contact.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTPSender sends emails via SMTP.
type SMTPSender struct {
	host     string
	port     int
	from     string
	username string
	password string
}

// NewSMTPSender creates a new SMTP email sender.
func NewSMTPSender(host string, port int, from, username, password string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		from:     from,
		username: username,
		password: password,
	}
}

// Send sends a plain-text email via SMTP.
func (s *SMTPSender) Send(_ context.Context, to []string, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ",")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	return smtp.SendMail(addr, auth, s.from, to, []byte(msg.String()))
}

// Config tunes the reporter.
type Config struct {
	Enabled  bool
	Schedule string // cron spec for periodic check-ins
	Contact  string // emergency contact address
	Timezone string
}

// DefaultConfig returns check-in defaults: every 30 minutes.
func DefaultConfig() Config {
	return Config{
		Schedule: "*/30 * * * *",
		Timezone: "UTC",
	}
}

// failureAlertThreshold is how many consecutive delivery failures it takes
// before the wearer hears about it. One flaky send stays silent.
const failureAlertThreshold = 3

// Reporter owns the location check-in schedule.
type Reporter struct {
	locator Locator
	mailer  Mailer
	queue   *alert.Queue
	cfg     Config
	logger  *slog.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	entryID cron.EntryID
	fails   int
}

// NewReporter creates a location reporter. locator may be nil when no GPS
// hardware is present; check-ins then report an unknown location.
func NewReporter(locator Locator, mailer Mailer, queue *alert.Queue, cfg Config, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultConfig().Schedule
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, using UTC", "timezone", cfg.Timezone, "error", err)
		loc = time.UTC
	}

	return &Reporter{
		locator: locator,
		mailer:  mailer,
		queue:   queue,
		cfg:     cfg,
		logger:  logger,
		cron:    cron.New(cron.WithLocation(loc)),
	}
}

// Start begins the check-in schedule.
func (r *Reporter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if !r.cfg.Enabled {
		r.logger.Info("location reporting disabled")
		return nil
	}

	entryID, err := r.cron.AddFunc(r.cfg.Schedule, r.checkIn)
	if err != nil {
		return err
	}

	r.entryID = entryID
	r.cron.Start()
	r.running = true

	r.logger.Info("location reporting started",
		"schedule", r.cfg.Schedule,
		"next_run", r.cron.Entry(r.entryID).Next,
	)
	return nil
}

// Stop stops the schedule, waiting for an in-flight check-in to finish.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	ctx := r.cron.Stop()
	<-ctx.Done()
	r.running = false
	r.logger.Info("location reporting stopped")
}

// IsRunning returns whether the schedule is active.
func (r *Reporter) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// SendEmergency delivers an immediate emergency email with the current
// location, or "Location unknown" when no fix is available. Safe to call
// from any goroutine.
func (r *Reporter) SendEmergency() error {
	body := r.locationBody()
	err := r.mailer.Send(context.Background(), []string{r.cfg.Contact},
		"EMERGENCY: assistance needed", "Emergency triggered by the wearer.\n\n"+body)
	if err != nil {
		r.logger.Error("emergency email failed", "error", err)
		return err
	}
	r.logger.Info("emergency email sent", "contact", r.cfg.Contact)
	return nil
}

// checkIn runs on the cron schedule.
func (r *Reporter) checkIn() {
	err := r.mailer.Send(context.Background(), []string{r.cfg.Contact},
		"Location check-in", r.locationBody())

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.fails++
		r.logger.Warn("location check-in failed", "error", err, "consecutive", r.fails)
		if r.fails == failureAlertThreshold {
			r.queue.Push(alert.NewKeyed(alert.CategorySystem, alert.PriorityWarning,
				"Location reporting is not working", "geo_failure"))
		}
		return
	}

	r.fails = 0
	r.logger.Debug("location check-in sent", "contact", r.cfg.Contact)
}

func (r *Reporter) locationBody() string {
	if r.locator == nil {
		return "Location unknown"
	}
	loc, err := r.locator.Locate()
	if err != nil {
		r.logger.Warn("location fix failed", "error", err)
		return "Location unknown"
	}
	return fmt.Sprintf("Current location: %s\n%s\nTime: %s",
		loc, loc.MapsURL(), time.Now().Format(time.RFC1123))
}
