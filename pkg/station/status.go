package station

import (
	"time"

	"aetherfm/pkg/model"
)

// PlayState is the coarse station state shown to the operator.
type PlayState string

const (
	StatePlaying PlayState = "playing"
	StatePaused  PlayState = "paused"
	StateStopped PlayState = "stopped"
	StateIdle    PlayState = "idle" // nothing eligible to play
)

// Snapshot is a value-typed view of the controller's observable state.
// Producing one has no side effects on the controller.
type Snapshot struct {
	State        PlayState
	Persona      model.PersonaID
	CurrentKind  model.QueueKind
	CurrentLabel string
	NextLabel    string
	QueueLength  int
	Uptime       time.Duration
	SongsPlayed  int
	Errors       int
	Message      string
}
