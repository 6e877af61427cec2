// Package progress collects timing for one story generation run. The
// tracker is purely observational: it feeds the summary log line at the
// end of a run and has no correctness role, so every method is safe on a
// nil receiver and never blocks the pipeline.
package progress

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase names the timed windows within one scene's processing.
type Phase string

const (
	PhaseImage  Phase = "image"
	PhaseAudio  Phase = "audio"
	PhaseUpload Phase = "upload"
	PhaseTotal  Phase = "total"
)

// scenePhases is the reporting order of per-scene windows.
var scenePhases = []Phase{PhaseImage, PhaseAudio, PhaseUpload, PhaseTotal}

// Tracker accumulates step and scene timings for a single story. Scenes in
// a batch record concurrently, so all state is mutex guarded.
type Tracker struct {
	logger  *slog.Logger
	storyID uuid.UUID
	clock   func() time.Time

	mu      sync.Mutex
	started time.Time
	steps   []step
	scenes  map[int]map[Phase]time.Duration
}

type step struct {
	name     string
	duration time.Duration
}

// NewTracker creates a tracker scoped to one story generation request.
func NewTracker(storyID uuid.UUID, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	now := time.Now
	return &Tracker{
		logger:  log.With(slog.String("component", "progress"), slog.String("story_id", storyID.String())),
		storyID: storyID,
		clock:   now,
		started: now(),
		scenes:  make(map[int]map[Phase]time.Duration),
	}
}

// StartStep begins timing a named pipeline step and returns the function
// that ends it. Repeated steps with the same name accumulate.
func (t *Tracker) StartStep(name string) func() {
	if t == nil {
		return func() {}
	}
	begin := t.clock()
	t.logger.Debug("step started", slog.String("step", name))

	return func() {
		duration := t.clock().Sub(begin)

		t.mu.Lock()
		t.steps = append(t.steps, step{name: name, duration: duration})
		t.mu.Unlock()

		t.logger.Debug("step completed",
			slog.String("step", name),
			slog.Float64("seconds", round2(duration.Seconds())))
	}
}

// ScenePhase begins timing one phase window of a scene and returns the
// function that ends it.
func (t *Tracker) ScenePhase(sceneOrder int, phase Phase) func() {
	if t == nil {
		return func() {}
	}
	begin := t.clock()

	return func() {
		duration := t.clock().Sub(begin)

		t.mu.Lock()
		windows, ok := t.scenes[sceneOrder]
		if !ok {
			windows = make(map[Phase]time.Duration)
			t.scenes[sceneOrder] = windows
		}
		windows[phase] += duration
		t.mu.Unlock()
	}
}

// StepSummary is one named step's share of the run.
type StepSummary struct {
	Name    string
	Seconds float64
	Percent float64
}

// SceneSummary is one scene's phase table.
type SceneSummary struct {
	Scene   int
	Seconds map[Phase]float64
}

// Summary is the aggregate report for a run.
type Summary struct {
	StoryID      string
	TotalSeconds float64
	SceneCount   int
	Steps        []StepSummary
	Scenes       []SceneSummary
	Averages     map[Phase]float64
}

// Summary aggregates everything recorded so far: step totals merged by
// name with their share of the run, the per-scene phase table, and phase
// averages across scenes.
func (t *Tracker) Summary() Summary {
	if t == nil {
		return Summary{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	total := t.clock().Sub(t.started).Seconds()

	merged := make(map[string]float64)
	order := make([]string, 0, len(t.steps))
	for _, s := range t.steps {
		if _, seen := merged[s.name]; !seen {
			order = append(order, s.name)
		}
		merged[s.name] += s.duration.Seconds()
	}

	steps := make([]StepSummary, 0, len(order))
	for _, name := range order {
		percent := 0.0
		if total > 0 {
			percent = merged[name] / total * 100
		}
		steps = append(steps, StepSummary{
			Name:    name,
			Seconds: round2(merged[name]),
			Percent: round1(percent),
		})
	}

	sceneOrders := make([]int, 0, len(t.scenes))
	for order := range t.scenes {
		sceneOrders = append(sceneOrders, order)
	}
	sort.Ints(sceneOrders)

	sums := make(map[Phase]float64)
	counts := make(map[Phase]int)
	scenes := make([]SceneSummary, 0, len(sceneOrders))
	for _, order := range sceneOrders {
		row := SceneSummary{Scene: order, Seconds: make(map[Phase]float64, len(scenePhases))}
		for _, phase := range scenePhases {
			if d, ok := t.scenes[order][phase]; ok {
				seconds := d.Seconds()
				row.Seconds[phase] = round2(seconds)
				sums[phase] += seconds
				counts[phase]++
			}
		}
		scenes = append(scenes, row)
	}

	averages := make(map[Phase]float64, len(scenePhases))
	for _, phase := range scenePhases {
		if counts[phase] > 0 {
			averages[phase] = round2(sums[phase] / float64(counts[phase]))
		} else {
			averages[phase] = 0
		}
	}

	return Summary{
		StoryID:      t.storyID.String(),
		TotalSeconds: round2(total),
		SceneCount:   len(t.scenes),
		Steps:        steps,
		Scenes:       scenes,
		Averages:     averages,
	}
}

// LogSummary writes the aggregate report. Headline numbers go out at info,
// the step and scene tables at debug.
func (t *Tracker) LogSummary() {
	if t == nil {
		return
	}
	summary := t.Summary()

	t.logger.Info("story generation summary",
		slog.Float64("total_seconds", summary.TotalSeconds),
		slog.Int("scene_count", summary.SceneCount),
		slog.Group("avg_scene_seconds",
			slog.Float64("image", summary.Averages[PhaseImage]),
			slog.Float64("audio", summary.Averages[PhaseAudio]),
			slog.Float64("upload", summary.Averages[PhaseUpload])))

	for _, s := range summary.Steps {
		t.logger.Debug("step timing",
			slog.String("step", s.Name),
			slog.Float64("seconds", s.Seconds),
			slog.Float64("percent", s.Percent))
	}
	for _, scene := range summary.Scenes {
		t.logger.Debug("scene timing",
			slog.Int("scene", scene.Scene),
			slog.Float64("image", scene.Seconds[PhaseImage]),
			slog.Float64("audio", scene.Seconds[PhaseAudio]),
			slog.Float64("upload", scene.Seconds[PhaseUpload]),
			slog.Float64("total", scene.Seconds[PhaseTotal]))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
