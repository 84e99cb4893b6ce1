package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"salsatempo/pkg/engine"
)

// metronome prints the beat count and called figures as the scheduler
// reports them.
type metronome struct {
	w      io.Writer
	one    *color.Color
	count  *color.Color
	figure *color.Color
	group  *color.Color
}

func newMetronome(w io.Writer) *metronome {
	return &metronome{
		w:      w,
		one:    color.New(color.FgYellow, color.Bold),
		count:  color.New(color.FgWhite),
		figure: color.New(color.FgGreen, color.Bold),
		group:  color.New(color.FgMagenta),
	}
}

func (m *metronome) tick(r engine.RenderResult) {
	if !r.BeatDetected {
		return
	}

	c := m.count
	if r.Beat == 1 || r.Beat == 5 {
		c = m.one
	}
	c.Fprintf(m.w, "%d ", r.Beat)

	if r.StartedFigure != nil {
		if r.Switched {
			m.group.Fprintf(m.w, "\nSwitching Groups -> %s\n", r.Group)
		}
		m.figure.Fprintf(m.w, "[%s] ", r.StartedFigure.Name)
	}
	if r.Beat == 8 {
		fmt.Fprintln(m.w)
	}
}
