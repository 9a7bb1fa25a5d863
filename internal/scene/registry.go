// Package scene holds the renderable entities of the viewer and the
// asynchronous loading of the models behind them.
package scene

import "fmt"

// Team identifies a roster side.
type Team int

const (
	TeamLeft Team = iota
	TeamRight
)

func (t Team) String() string {
	if t == TeamLeft {
		return "left"
	}
	return "right"
}

// BallScale is applied uniformly to the ball model.
const BallScale = 0.3

// Entity is a live renderable handle. Transforms are mutated in place every
// playback tick.
type Entity struct {
	Name     string
	Model    *Model
	Position Vec3
	Rotation Vec3 // Euler radians: Y is yaw, Z is roll
	Scale    Vec3
}

// Registry owns the field, the ball and the two rosters.
// It is populated once, after all initial assets resolve.
type Registry struct {
	Field *Entity
	Ball  *Entity
	Left  []*Entity
	Right []*Entity

	initialPositionsSet bool
}

// NewRegistry instantiates the scene from loaded models. Each roster gets
// rosterSize entities sharing the same team model.
func NewRegistry(field, ball, leftPlayer, rightPlayer *Model, rosterSize int) *Registry {
	r := &Registry{
		Field: newEntity("field", field),
		Ball:  newEntity("ball", ball),
		Left:  make([]*Entity, 0, rosterSize),
		Right: make([]*Entity, 0, rosterSize),
	}
	r.Ball.Scale = V(BallScale, BallScale, BallScale)

	for i := 0; i < rosterSize; i++ {
		r.Left = append(r.Left, newEntity(fmt.Sprintf("left-%d", i+1), leftPlayer))
		r.Right = append(r.Right, newEntity(fmt.Sprintf("right-%d", i+1), rightPlayer))
	}
	return r
}

func newEntity(name string, m *Model) *Entity {
	return &Entity{Name: name, Model: m, Scale: V(1, 1, 1)}
}

// Roster returns the entities of one side.
func (r *Registry) Roster(t Team) []*Entity {
	if r == nil {
		return nil
	}
	if t == TeamLeft {
		return r.Left
	}
	return r.Right
}

// BallLoaded reports whether the ball entity exists yet.
func (r *Registry) BallLoaded() bool {
	return r != nil && r.Ball != nil
}

// MarkInitialPositionsSet records that frame 0 has been applied.
func (r *Registry) MarkInitialPositionsSet() {
	if r != nil {
		r.initialPositionsSet = true
	}
}

// InitialPositionsSet reports whether frame 0 has been applied.
func (r *Registry) InitialPositionsSet() bool {
	return r != nil && r.initialPositionsSet
}
