// Package vision maps detection collaborator output to announcement events:
// confidence filtering, a grid-stability window that keeps flickering boxes
// quiet, a harmful-object fast path, and the timed currency mode.
package vision

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
	"github.com/Rajvardhan-Desai/vision-aid/internal/supervisor"
)

// Detection is one labeled box from the detection collaborator. Coordinates
// are x1,y1,x2,y2 in the inference frame.
type Detection struct {
	Label      string
	Confidence float64
	Box        [4]float64
}

// Source yields one round of detections per call, blocking for frame pacing.
// The collaborator owns camera acquisition and model inference.
type Source interface {
	Next() ([]Detection, error)
}

// harmfulObjects are always announced regardless of the verbosity setting.
var harmfulObjects = map[string]bool{
	"knife":    true,
	"scissors": true,
	"fire":     true,
	"gun":      true,
}

// DefaultCurrencyWindow is how long currency mode stays active after being
// requested.
const DefaultCurrencyWindow = 60 * time.Second

// Config tunes the producer.
type Config struct {
	Threshold         float64       // object confidence floor
	CurrencyThreshold float64       // currency floor, at least 0.85
	GridSize          int           // stability grid cell size, px
	RequiredFrames    int           // consecutive frames before announcing
	CurrencyWindow    time.Duration // currency mode duration
	AlertAll          bool          // announce every stable object
}

// DefaultConfig returns the device defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:         0.5,
		CurrencyThreshold: 0.85,
		GridSize:          50,
		RequiredFrames:    3,
		CurrencyWindow:    DefaultCurrencyWindow,
	}
}

// Producer is the capture+detection worker. It owns the verbosity and
// currency-mode toggles so the command executor can flip them without
// touching producer internals.
type Producer struct {
	objects  Source
	currency Source
	queue    *alert.Queue
	cfg      Config
	logger   *slog.Logger

	alertAll      atomic.Bool
	currencyUntil atomic.Int64 // unix nanos; 0 = inactive

	mu          sync.Mutex
	history     map[gridKey]int
	lastObjects []string
}

type gridKey struct {
	label  string
	cx, cy int
}

// NewProducer creates a detection producer. currency may be nil when no
// currency model is configured; currency mode requests are then refused
// with a spoken notice.
func NewProducer(objects, currency Source, queue *alert.Queue, cfg Config, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GridSize <= 0 {
		cfg.GridSize = 50
	}
	if cfg.RequiredFrames <= 0 {
		cfg.RequiredFrames = 3
	}
	if cfg.CurrencyWindow <= 0 {
		cfg.CurrencyWindow = DefaultCurrencyWindow
	}
	if cfg.CurrencyThreshold < 0.85 {
		cfg.CurrencyThreshold = 0.85
	}
	p := &Producer{
		objects:  objects,
		currency: currency,
		queue:    queue,
		cfg:      cfg,
		logger:   logger,
		history:  make(map[gridKey]int),
	}
	p.alertAll.Store(cfg.AlertAll)
	return p
}

// SetAlertAll toggles announcing every stable object versus harmful ones
// only.
func (p *Producer) SetAlertAll(all bool) {
	p.alertAll.Store(all)
}

// AlertAll reports the current verbosity setting.
func (p *Producer) AlertAll() bool {
	return p.alertAll.Load()
}

// EnableCurrencyMode switches detection to the currency model for the
// configured window. Returns false when no currency source is available.
func (p *Producer) EnableCurrencyMode() bool {
	if p.currency == nil {
		return false
	}
	p.currencyUntil.Store(time.Now().Add(p.cfg.CurrencyWindow).UnixNano())
	return true
}

// CurrencyActive reports whether the currency window is still open.
func (p *Producer) CurrencyActive() bool {
	until := p.currencyUntil.Load()
	return until != 0 && time.Now().UnixNano() < until
}

// LastSeen returns the labels from the most recent processed frame, for the
// "scan" voice command.
func (p *Producer) LastSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.lastObjects))
	copy(out, p.lastObjects)
	return out
}

// Run is the producer loop; polls its stop flag once per frame.
func (p *Producer) Run(stop *supervisor.StopFlag) {
	for !stop.IsSet() {
		if p.CurrencyActive() {
			p.currencyFrame(stop)
		} else {
			p.objectFrame(stop)
		}
	}
}

func (p *Producer) objectFrame(stop *supervisor.StopFlag) {
	dets, err := p.objects.Next()
	if err != nil {
		p.logger.Warn("detection source error", "error", err)
		stop.Sleep(50 * time.Millisecond)
		return
	}

	confident := dets[:0:0]
	for _, d := range dets {
		if d.Confidence >= p.cfg.Threshold {
			confident = append(confident, d)
		}
	}

	stable := p.updateHistory(confident)

	labels := make([]string, 0, len(stable))
	for _, d := range stable {
		labels = append(labels, d.Label)
	}
	p.setLastSeen(labels)

	announceAll := p.alertAll.Load()
	for _, d := range stable {
		harmful := harmfulObjects[d.Label]
		if !announceAll && !harmful {
			continue
		}
		priority := alert.PriorityRoutine
		if harmful {
			priority = alert.PriorityUrgent
		}
		p.queue.Push(alert.NewKeyed(alert.CategoryObject, priority, d.Label, d.Label))
	}
}

func (p *Producer) currencyFrame(stop *supervisor.StopFlag) {
	dets, err := p.currency.Next()
	if err != nil {
		p.logger.Warn("currency source error", "error", err)
		stop.Sleep(50 * time.Millisecond)
		return
	}

	notes := ProcessCurrency(dets, p.cfg.CurrencyThreshold)

	labels := make([]string, 0, len(notes))
	for _, d := range notes {
		labels = append(labels, d.Label)
	}
	p.setLastSeen(labels)

	if len(notes) == 0 {
		return
	}
	if len(notes) > 3 {
		notes = notes[:3]
	}
	parts := make([]string, len(notes))
	for i, d := range notes {
		parts[i] = fmt.Sprintf("%s %.0f percent", d.Label, d.Confidence*100)
	}
	p.queue.Push(alert.NewKeyed(alert.CategoryCurrency, alert.PriorityWarning,
		"Currency: "+strings.Join(parts, ", "), "currency"))
}

// updateHistory counts consecutive frames each (label, grid cell) was seen
// in; a detection is stable once the count reaches RequiredFrames. Cells
// absent from the current frame reset.
func (p *Producer) updateHistory(dets []Detection) []Detection {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[gridKey]bool, len(dets))
	var stable []Detection
	for _, d := range dets {
		cx := int((d.Box[0] + d.Box[2]) / 2 / float64(p.cfg.GridSize))
		cy := int((d.Box[1] + d.Box[3]) / 2 / float64(p.cfg.GridSize))
		key := gridKey{label: d.Label, cx: cx, cy: cy}
		if seen[key] {
			continue
		}
		seen[key] = true
		p.history[key]++
		if p.history[key] >= p.cfg.RequiredFrames {
			stable = append(stable, d)
		}
	}
	for key := range p.history {
		if !seen[key] {
			delete(p.history, key)
		}
	}
	return stable
}

func (p *Producer) setLastSeen(labels []string) {
	p.mu.Lock()
	p.lastObjects = labels
	p.mu.Unlock()
}

// ProcessCurrency filters currency detections by confidence and collapses
// overlapping boxes of the same class with per-class NMS.
func ProcessCurrency(dets []Detection, minConf float64) []Detection {
	var cand []Detection
	for _, d := range dets {
		if d.Confidence >= minConf {
			cand = append(cand, d)
		}
	}
	return nmsPerClass(cand, 0.45)
}

func nmsPerClass(dets []Detection, iouThres float64) []Detection {
	byClass := make(map[string][]Detection)
	for _, d := range dets {
		byClass[d.Label] = append(byClass[d.Label], d)
	}

	var out []Detection
	for _, arr := range byClass {
		sort.Slice(arr, func(i, j int) bool { return arr[i].Confidence > arr[j].Confidence })
		for len(arr) > 0 {
			best := arr[0]
			out = append(out, best)
			remaining := arr[:0]
			for _, d := range arr[1:] {
				if iou(best.Box, d.Box) < iouThres {
					remaining = append(remaining, d)
				}
			}
			arr = remaining
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func iou(a, b [4]float64) float64 {
	interX1 := max(a[0], b[0])
	interY1 := max(a[1], b[1])
	interX2 := min(a[2], b[2])
	interY2 := min(a[3], b[3])

	iw := max(0, interX2-interX1)
	ih := max(0, interY2-interY1)
	inter := iw * ih

	areaA := max(0, a[2]-a[0]) * max(0, a[3]-a[1])
	areaB := max(0, b[2]-b[0]) * max(0, b[3]-b[1])
	union := areaA + areaB - inter + 1e-6
	return inter / union
}
