package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func TestRun_KeepsOrder(t *testing.T) {
	minor := errors.New("minor issue")
	results := Run(context.Background(), []Probe{
		{Name: "slow", Check: func(context.Context) error { time.Sleep(20 * time.Millisecond); return nil }},
		{Name: "broken", Check: func(context.Context) error { return minor }},
		{Name: "fast", Check: pass, Critical: true},
	})

	require.Len(t, results, 3)
	assert.Equal(t, []string{"slow", "broken", "fast"}, []string{results[0].Name, results[1].Name, results[2].Name})
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, minor)
	assert.True(t, results[2].Critical)
	assert.GreaterOrEqual(t, results[0].Took, 20*time.Millisecond)
}

func TestRun_Concurrent(t *testing.T) {
	// Two probes that each wait for the other would deadlock if run in sequence.
	a, b := make(chan struct{}), make(chan struct{})
	results := Run(context.Background(), []Probe{
		{Name: "a", Check: func(ctx context.Context) error { close(a); <-b; return nil }},
		{Name: "b", Check: func(ctx context.Context) error { close(b); <-a; return nil }},
	})
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
}

func TestRun_Timeout(t *testing.T) {
	results := Run(context.Background(), []Probe{{
		Name: "hung",
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		Timeout: 10 * time.Millisecond,
	}})
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestSummarize(t *testing.T) {
	fail := errors.New("fail")
	tests := []struct {
		name    string
		results []Result
		wantErr bool
	}{
		{"All pass", []Result{{Name: "db", Critical: true}}, false},
		{"Critical failure", []Result{{Name: "source", Critical: true, Err: fail}}, true},
		{"Non-critical failure", []Result{{Name: "db", Err: fail}}, false},
		{"Mixed", []Result{{Name: "db", Err: fail}, {Name: "source", Critical: true, Err: fail}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Summarize(tt.results)
			if (err != nil) != tt.wantErr {
				t.Errorf("Summarize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	err := Summarize([]Result{{Name: "source", Critical: true, Err: fail}})
	assert.ErrorIs(t, err, fail)
	assert.Contains(t, err.Error(), "source: fail")
}
