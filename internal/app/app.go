// Package app wires the VisionAid pipeline together: producers feeding the
// alert queue, the speech dispatcher draining it, the voice command loop,
// and the coordinated shutdown sequence.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
	"github.com/Rajvardhan-Desai/vision-aid/internal/config"
	"github.com/Rajvardhan-Desai/vision-aid/internal/faces"
	"github.com/Rajvardhan-Desai/vision-aid/internal/geo"
	"github.com/Rajvardhan-Desai/vision-aid/internal/history"
	"github.com/Rajvardhan-Desai/vision-aid/internal/ranging"
	"github.com/Rajvardhan-Desai/vision-aid/internal/remote"
	"github.com/Rajvardhan-Desai/vision-aid/internal/speech"
	"github.com/Rajvardhan-Desai/vision-aid/internal/supervisor"
	"github.com/Rajvardhan-Desai/vision-aid/internal/vision"
	"github.com/Rajvardhan-Desai/vision-aid/internal/voice"
)

// Collaborators are the hardware-facing dependencies. Any of them may be
// nil; the corresponding feature is then disabled and the matching voice
// commands answer with a spoken notice.
type Collaborators struct {
	Objects     vision.Source
	Currency    vision.Source
	Faces       faces.Recognizer
	Ranger      ranging.Ranger
	Pulser      ranging.Pulser
	Speaker     speech.Speaker
	Transcripts <-chan string
	Locator     geo.Locator
	Mailer      geo.Mailer // overrides the SMTP sender built from config
}

// commandBuffer bounds pending voice commands; the interpreter never blocks
// on a slow executor.
const commandBuffer = 8

// App owns the assembled pipeline.
type App struct {
	cfg    *config.Config
	collab Collaborators
	logger *slog.Logger

	queue      *alert.Queue
	filter     *alert.CooldownFilter
	dispatcher *speech.Dispatcher
	interp     *voice.Interpreter

	visionProd  *vision.Producer
	rangingProd *ranging.Producer
	facesProd   *faces.Producer
	reporter    *geo.Reporter
	store       *history.Store
	feed        *remote.Feed

	sup   *supervisor.Supervisor
	coord *supervisor.Coordinator

	commands chan voice.Command
	stopReq  chan struct{}
	stopOnce sync.Once
}

// New assembles an App from configuration and collaborators.
func New(cfg *config.Config, collab Collaborators, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{
		cfg:      cfg,
		collab:   collab,
		logger:   logger,
		commands: make(chan voice.Command, commandBuffer),
		stopReq:  make(chan struct{}),
	}

	a.filter = alert.NewCooldownFilter()
	a.queue = alert.NewQueue(a.filter)

	speaker := collab.Speaker
	if speaker == nil {
		espeak := speech.NewEspeak(cfg.Speech.Volume)
		if cfg.Speech.Rate > 0 {
			espeak.Rate = cfg.Speech.Rate
		}
		speaker = espeak
	}
	a.dispatcher = speech.NewDispatcher(a.queue, a.filter, speaker,
		speech.WithLogger(logger.With("component", "dispatcher")),
		speech.WithPopTimeout(time.Duration(cfg.Speech.PopTimeoutMs)*time.Millisecond),
	)

	a.interp = voice.NewInterpreter(a.queue, a.enqueueCommand,
		voice.WithWakeWord(cfg.Voice.WakeWord),
		voice.WithConfirmWindow(cfg.ConfirmWindow()),
		voice.WithInterpreterLogger(logger.With("component", "voice")),
	)

	if collab.Objects != nil {
		a.visionProd = vision.NewProducer(collab.Objects, collab.Currency, a.queue, vision.Config{
			Threshold:         cfg.Detection.Threshold,
			CurrencyThreshold: cfg.Detection.CurrencyThreshold,
			GridSize:          cfg.Detection.GridSize,
			RequiredFrames:    cfg.Detection.RequiredFrames,
			CurrencyWindow:    time.Duration(cfg.Detection.CurrencyWindowSeconds) * time.Second,
			AlertAll:          cfg.Detection.AlertAll,
		}, logger.With("component", "vision"))
	}
	if collab.Ranger != nil {
		a.rangingProd = ranging.NewProducer(collab.Ranger, collab.Pulser, a.queue, ranging.Config{
			Interval:   time.Duration(cfg.Ranging.IntervalMs) * time.Millisecond,
			WindowSize: cfg.Ranging.WindowSize,
		}, logger.With("component", "ranging"))
	}
	if collab.Faces != nil {
		a.facesProd = faces.NewProducer(collab.Faces, a.queue, faces.Config{
			Interval:  time.Duration(cfg.Faces.IntervalMs) * time.Millisecond,
			Threshold: cfg.Faces.Threshold,
		}, logger.With("component", "faces"))
	}

	if cfg.Email.Host != "" && cfg.Email.Contact != "" {
		mailer := collab.Mailer
		if mailer == nil {
			mailer = geo.NewSMTPSender(cfg.Email.Host, cfg.Email.Port,
				cfg.Email.From, cfg.Email.Username, cfg.Email.Password)
		}
		a.reporter = geo.NewReporter(collab.Locator, mailer, a.queue, geo.Config{
			Enabled:  cfg.Email.Enabled,
			Schedule: cfg.Email.Schedule,
			Contact:  cfg.Email.Contact,
			Timezone: cfg.Email.Timezone,
		}, logger.With("component", "geo"))
	}

	if cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		a.store = store
		a.dispatcher.OnSpoken(func(ev alert.Event) {
			if err := store.Record(ev, time.Now()); err != nil {
				logger.Warn("failed to record announcement", "error", err)
			}
		})
	}

	if cfg.Remote.Enabled {
		a.feed = remote.NewFeed(cfg.Remote.Addr, logger.With("component", "remote"))
		a.dispatcher.OnSpoken(a.feed.Publish)
	}

	a.sup = supervisor.New(
		supervisor.WithLogger(logger.With("component", "supervisor")),
		supervisor.WithJoinGrace(time.Duration(cfg.Shutdown.JoinGraceSeconds)*time.Second),
	)

	coordOpts := []supervisor.CoordinatorOption{
		supervisor.WithDrainDeadline(time.Duration(cfg.Shutdown.DrainDeadlineSeconds) * time.Second),
		supervisor.WithCoordinatorLogger(logger.With("component", "shutdown")),
	}
	if a.reporter != nil {
		coordOpts = append(coordOpts, supervisor.WithReleaseHook(a.reporter.Stop))
	}
	if a.feed != nil {
		coordOpts = append(coordOpts, supervisor.WithReleaseHook(a.feed.Stop))
	}
	if a.store != nil {
		coordOpts = append(coordOpts, supervisor.WithReleaseHook(func() {
			if err := a.store.Close(); err != nil {
				logger.Warn("failed to close history store", "error", err)
			}
		}))
	}
	a.coord = supervisor.NewCoordinator(a.sup, a.dispatcher.Flush, coordOpts...)

	return a, nil
}

// fillDefaults backfills sections a hand-written config file left out.
func fillDefaults(cfg *config.Config) {
	d := config.DefaultConfig()
	if cfg.Logging == nil {
		cfg.Logging = d.Logging
	}
	if cfg.Speech == nil {
		cfg.Speech = d.Speech
	}
	if cfg.Voice == nil {
		cfg.Voice = d.Voice
	}
	if cfg.Detection == nil {
		cfg.Detection = d.Detection
	}
	if cfg.Ranging == nil {
		cfg.Ranging = d.Ranging
	}
	if cfg.Faces == nil {
		cfg.Faces = d.Faces
	}
	if cfg.Email == nil {
		cfg.Email = d.Email
	}
	if cfg.History == nil {
		cfg.History = d.History
	}
	if cfg.Remote == nil {
		cfg.Remote = d.Remote
	}
	if cfg.Shutdown == nil {
		cfg.Shutdown = d.Shutdown
	}
}

// Queue exposes the alert queue for simulated producers.
func (a *App) Queue() *alert.Queue { return a.queue }

// Run starts the pipeline and blocks until the context is canceled or a
// confirmed stop command arrives, then performs the full shutdown sequence.
func (a *App) Run(ctx context.Context) error {
	a.start()
	a.logger.Info("pipeline started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutdown requested", "reason", "signal")
			a.coord.Shutdown()
			return nil
		case <-a.stopReq:
			a.logger.Info("shutdown requested", "reason", "voice command")
			a.coord.Shutdown()
			return nil
		case cmd := <-a.commands:
			a.execute(cmd)
		}
	}
}

func (a *App) start() {
	if a.reporter != nil {
		if err := a.reporter.Start(); err != nil {
			a.logger.Error("failed to start location reporting", "error", err)
		}
	}
	if a.feed != nil {
		a.feed.Start()
	}

	a.sup.StartConsumer("dispatcher", a.dispatcher.Run)

	if a.visionProd != nil {
		a.sup.StartProducer("vision", a.visionProd.Run)
	}
	if a.rangingProd != nil {
		a.sup.StartProducer("ranging", a.rangingProd.Run)
	}
	if a.facesProd != nil {
		a.sup.StartProducer("faces", a.facesProd.Run)
	}
	a.sup.StartProducer("voice", a.voiceWorker)
}

// voiceWorker feeds recognized transcripts to the interpreter and drives
// confirmation expiry between utterances.
func (a *App) voiceWorker(stop *supervisor.StopFlag) {
	transcripts := a.collab.Transcripts
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case text, ok := <-transcripts:
			if !ok {
				transcripts = nil // recognizer gone; keep ticking for expiry
				continue
			}
			a.interp.Feed(text)
		case <-ticker.C:
			if stop.IsSet() {
				return
			}
			a.interp.Tick()
		}
	}
}

// enqueueCommand hands a parsed command to the main loop. Never blocks.
func (a *App) enqueueCommand(cmd voice.Command) {
	select {
	case a.commands <- cmd:
	default:
		a.logger.Warn("command dropped, executor busy", "command", cmd.Kind)
	}
}

func (a *App) requestStop() {
	a.stopOnce.Do(func() { close(a.stopReq) })
}

// execute runs one confirmed voice command.
func (a *App) execute(cmd voice.Command) {
	a.logger.Info("executing command", "command", cmd.Kind)

	switch cmd.Kind {
	case voice.KindHelp:
		a.feedback("Commands: " + strings.Join(voice.Kinds(), ", "))

	case voice.KindMute:
		a.dispatcher.SetMuted(true)
		a.feedback("Muted")

	case voice.KindUnmute:
		a.dispatcher.SetMuted(false)
		a.feedback("Audio on")

	case voice.KindVerbosityAll:
		if a.visionProd != nil {
			a.visionProd.SetAlertAll(true)
		}
		a.feedback("Announcing all objects")

	case voice.KindVerbosityLess:
		if a.visionProd != nil {
			a.visionProd.SetAlertAll(false)
		}
		a.feedback("Announcing important objects only")

	case voice.KindReportFaces:
		a.feedback(a.facesReport())

	case voice.KindReportScan:
		a.feedback(a.scanReport())

	case voice.KindReportDistance:
		a.feedback(a.distanceReport())

	case voice.KindSaveFace:
		a.feedback("Face saving is not available")

	case voice.KindCurrencyMode:
		if a.visionProd != nil && a.visionProd.EnableCurrencyMode() {
			a.feedback("Currency mode on")
		} else {
			a.feedback("Currency detection is not available")
		}

	case voice.KindStop:
		a.feedback("Shutting down")
		a.requestStop()

	case voice.KindEmergency:
		a.queue.Push(alert.New(alert.CategoryEmergency, alert.PriorityEmergency,
			"Emergency alert triggered"))
		if a.reporter != nil {
			go func() {
				if err := a.reporter.SendEmergency(); err == nil {
					a.feedback("Emergency contact notified")
				}
			}()
		} else {
			a.feedback("Emergency contact not configured")
		}

	default:
		a.logger.Warn("unhandled command", "command", cmd.Kind)
	}
}

func (a *App) facesReport() string {
	if a.facesProd == nil {
		return "Face recognition is not available"
	}
	seen := a.facesProd.LastSeen()
	if len(seen) == 0 {
		return "No faces recognized"
	}
	return "I can see " + strings.Join(seen, ", ")
}

func (a *App) scanReport() string {
	if a.visionProd == nil {
		return "Object detection is not available"
	}
	seen := a.visionProd.LastSeen()
	if len(seen) == 0 {
		return "Nothing detected"
	}
	return "Detected " + strings.Join(seen, ", ")
}

func (a *App) distanceReport() string {
	if a.rangingProd == nil {
		return "Distance sensing is not available"
	}
	cm := a.rangingProd.LastDistance()
	if cm < 0 {
		return "No distance reading yet"
	}
	return fmt.Sprintf("Nearest obstacle at %d centimeters", int(cm))
}

// feedback speaks a response to the wearer. Voice feedback bypasses
// cooldowns and the mute switch.
func (a *App) feedback(text string) {
	a.queue.Push(alert.New(alert.CategoryVoiceFeedback, alert.PriorityUrgent, text))
}
