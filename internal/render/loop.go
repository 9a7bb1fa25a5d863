package render

import (
	"context"
	"image"
	"image/draw"
	"sync/atomic"
	"time"

	"match-replay/internal/viewer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "replay_render_duration_seconds",
		Help:    "Time spent on one render loop iteration",
		Buckets: []float64{0.002, 0.005, 0.01, 0.0167, 0.033, 0.05, 0.1},
	})

	framesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_frames_rendered_total",
		Help: "Total render loop iterations",
	})

	framesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_frames_published_total",
		Help: "Frames copied out for readers",
	})
)

// Source advances state by one display tick and returns what to draw.
// viewer.Context implements it.
type Source interface {
	Tick() viewer.Scene
}

// Frame is an immutable rendered image.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64
	State      viewer.State
	RenderedAt time.Time
}

// Loop redraws the scene at a fixed display rate.
type Loop struct {
	src    Source
	raster *Rasterizer
	fps    int

	seq    atomic.Uint64
	latest atomic.Pointer[Frame]
	wanted atomic.Bool
}

// NewLoop creates a loop drawing src with r at fps frames per second.
func NewLoop(src Source, r *Rasterizer, fps int) *Loop {
	if fps <= 0 {
		fps = 60
	}
	return &Loop{src: src, raster: r, fps: fps}
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.fps))
	defer ticker.Stop()

	log.Info().Int("fps", l.fps).Msg("🎬 Render loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Uint64("frames", l.seq.Load()).Msg("🛑 Render loop stopped")
			return nil
		case <-ticker.C:
			l.Step()
		}
	}
}

// Step runs one iteration: state tick, draw, and publish when a reader has
// asked for a frame since the last publish. The first frame is always
// published.
func (l *Loop) Step() {
	start := time.Now()

	s := l.src.Tick()
	img := l.raster.Draw(s)
	seq := l.seq.Add(1)

	if l.wanted.Swap(false) || l.latest.Load() == nil {
		l.publish(img, seq, s.State)
	}

	renderDuration.Observe(time.Since(start).Seconds())
	framesRendered.Inc()
}

// Latest returns the most recently published frame, or nil before the
// first Step. Calling it requests a fresh frame on the next Step.
func (l *Loop) Latest() *Frame {
	l.wanted.Store(true)
	return l.latest.Load()
}

// Seq returns the number of iterations run so far.
func (l *Loop) Seq() uint64 { return l.seq.Load() }

func (l *Loop) publish(img image.Image, seq uint64, st viewer.State) {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	l.latest.Store(&Frame{
		Image:      out,
		Seq:        seq,
		State:      st,
		RenderedAt: time.Now(),
	})
	framesPublished.Inc()
}
