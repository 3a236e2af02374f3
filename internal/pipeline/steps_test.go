package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordStep struct {
	name  string
	calls *[]string
	err   error
}

func (s *recordStep) Execute(ctx context.Context, state *PipelineState) error {
	*s.calls = append(*s.calls, s.name)
	return s.err
}

func TestPipeline_Execute(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		failAt    int // 0 means no failure
		wantCalls string
		wantMsg   string
	}{
		{name: "all steps run in order", wantCalls: "a,b,c"},
		{name: "stops at first failure", failAt: 2, wantCalls: "a,b", wantMsg: "pipeline step 2 failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			var steps []PipelineStep
			for i, n := range []string{"a", "b", "c"} {
				s := &recordStep{name: n, calls: &calls}
				if i+1 == tt.failAt {
					s.err = boom
				}
				steps = append(steps, s)
			}

			err := NewPipeline(steps...).Execute(context.Background(), &PipelineState{})

			if got := strings.Join(calls, ","); got != tt.wantCalls {
				t.Errorf("calls = %q, want %q", got, tt.wantCalls)
			}
			if tt.wantMsg == "" {
				if err != nil {
					t.Errorf("Execute() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) || !errors.Is(err, boom) {
				t.Errorf("Execute() error = %v, want %q wrapping boom", err, tt.wantMsg)
			}
		})
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []string
	err := NewPipeline(&recordStep{name: "a", calls: &calls}).Execute(ctx, &PipelineState{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
	if len(calls) != 0 {
		t.Errorf("steps ran after cancellation: %v", calls)
	}
}
