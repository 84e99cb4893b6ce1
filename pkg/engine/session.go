package engine

import (
	"github.com/google/uuid"

	"salsatempo/pkg/model"
)

// Session is the mutable state of one playback. It is owned by a single
// Scheduler and only touched from its render calls.
type Session struct {
	ID                   string
	CurrentIndex         int // next sample frame to play
	BeatCounter          int // 1..8, the number the next beat will get
	BeatsSinceLastFigure int
	FigureInProgress     *model.Figure // nil when idle
	CurrentGroup         string
}

// NewSession returns an idle session positioned at the start of the track.
func NewSession(group string) *Session {
	if group == "" {
		group = model.GroupArriba
	}
	return &Session{
		ID:           uuid.NewString(),
		BeatCounter:  1,
		CurrentGroup: group,
	}
}
