// Package matchlog holds the recorded positional data of a match.
//
// A MatchLog is an ordered, immutable sequence of frames. The index of a frame
// is its time axis: frame i is shown at i × frameInterval.
package matchlog

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// RosterSize is the number of players per side.
const RosterSize = 11

// ErrMalformedSample is returned when a tuple in the input does not match
// the fixed [id, _, x, z] / [x, z] schema.
var ErrMalformedSample = errors.New("malformed sample")

// PlayerSample is one player's ground-plane position in a frame.
// Height is implicitly 0.
type PlayerSample struct {
	ID int
	X  float64
	Z  float64
}

// BallSample is the ball's ground-plane position in a frame.
type BallSample struct {
	X float64
	Z float64
}

// Frame is one logical snapshot of every entity position.
type Frame struct {
	Left  []PlayerSample
	Right []PlayerSample
	Ball  BallSample
}

// MatchLog is the immutable position store.
type MatchLog struct {
	frames []Frame
}

// New builds a MatchLog from already decoded frames. The slice is copied.
func New(frames []Frame) *MatchLog {
	cp := make([]Frame, len(frames))
	copy(cp, frames)
	return &MatchLog{frames: cp}
}

// Len returns the total frame count N.
func (m *MatchLog) Len() int {
	if m == nil {
		return 0
	}
	return len(m.frames)
}

// Frame returns the frame at index i. ok is false when i is out of range.
func (m *MatchLog) Frame(i int) (Frame, bool) {
	if m == nil || i < 0 || i >= len(m.frames) {
		return Frame{}, false
	}
	return m.frames[i], true
}

// Load reads a match log document from disk.
func Load(path string) (*MatchLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open match log: %w", err)
	}
	defer f.Close()

	ml, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ml, nil
}

// Decode parses a {"game_log": [...]} document.
func Decode(r io.Reader) (*MatchLog, error) {
	frames, err := decodeDocument(r)
	if err != nil {
		return nil, err
	}
	return &MatchLog{frames: frames}, nil
}
