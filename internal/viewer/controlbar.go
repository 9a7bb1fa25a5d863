package viewer

import "time"

const (
	// RevealZone is the distance from the bottom edge, in pixels, that
	// reveals the control bar.
	RevealZone = 50.0

	// HideDelay is how long the bar stays up after the pointer leaves.
	HideDelay = 5 * time.Second
)

// ControlBar is the auto-hiding play/seek bar state machine. Callers pass
// the current time in; nothing here sleeps or starts timers.
type ControlBar struct {
	visible  bool
	hovering bool
	pending  bool
	hideAt   time.Time
}

// NewControlBar returns a bar that is visible, as on page load.
func NewControlBar() *ControlBar {
	return &ControlBar{visible: true}
}

// Pointer handles a pointer or touch move at y within a viewport of the
// given height.
func (b *ControlBar) Pointer(y, height float64, now time.Time) {
	if y > height-RevealZone {
		b.show()
		return
	}
	b.scheduleHide(now)
}

// Enter marks the pointer as over the bar. Any pending hide is cancelled.
func (b *ControlBar) Enter() {
	b.hovering = true
	b.show()
}

// Leave marks the pointer as off the bar and restarts the hide timer.
func (b *ControlBar) Leave(now time.Time) {
	b.hovering = false
	b.scheduleHide(now)
}

// Update applies an expired hide timer.
func (b *ControlBar) Update(now time.Time) {
	if b.pending && !now.Before(b.hideAt) {
		b.pending = false
		b.visible = false
	}
}

// Visible reports whether the bar is shown.
func (b *ControlBar) Visible() bool { return b.visible }

// Hovering reports whether the pointer is over the bar.
func (b *ControlBar) Hovering() bool { return b.hovering }

func (b *ControlBar) show() {
	b.pending = false
	b.visible = true
}

// The first pending timer wins; later moves outside the zone do not push
// the deadline back.
func (b *ControlBar) scheduleHide(now time.Time) {
	if b.hovering || b.pending {
		return
	}
	b.pending = true
	b.hideAt = now.Add(HideDelay)
}
