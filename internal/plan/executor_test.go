package plan

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"

	xerrors "NetBank-Chain/internal/errors"
)

type stubRunner struct {
	outputs map[int]string
	failAt  int
	calls   []int
	seen    [][]StepOutput
}

func (s *stubRunner) RunStep(_ context.Context, _ string, step Step, prior []StepOutput) (string, error) {
	s.calls = append(s.calls, step.Step)
	snapshot := make([]StepOutput, len(prior))
	copy(snapshot, prior)
	s.seen = append(s.seen, snapshot)
	if s.failAt == step.Step {
		return "", fmt.Errorf("boom at step %d", step.Step)
	}
	return s.outputs[step.Step], nil
}

func TestExecuteRunsStepsInOrder(t *testing.T) {
	runner := &stubRunner{outputs: map[int]string{1: "balances listed", 2: "spend summarized"}}
	exec := NewExecutor(runner)

	result, err := exec.Execute(context.Background(), "alice01", &Plan{
		UserQuery: "how much can I spend",
		Steps: []Step{
			{Step: 1, Query: "list balances", Target: "banking"},
			{Step: 2, Query: "summarize spend", Target: "money"},
		},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(runner.calls) != 2 || runner.calls[0] != 1 || runner.calls[1] != 2 {
		t.Fatalf("steps ran out of order: %v", runner.calls)
	}
	// 第二步必须看得到第一步的输出。
	if len(runner.seen[1]) != 1 || runner.seen[1][0].Summary != "balances listed" {
		t.Fatalf("step 2 did not receive step 1 output: %+v", runner.seen[1])
	}
	if result.Summary != "balances listed\nspend summarized" {
		t.Fatalf("unexpected aggregate: %q", result.Summary)
	}
}

func TestExecuteNoPlan(t *testing.T) {
	exec := NewExecutor(&stubRunner{})
	_, err := exec.Execute(context.Background(), "alice01", nil)
	if !stdErrors.Is(err, ErrNoPlanFound) {
		t.Fatalf("Execute(nil plan) error = %v, want ErrNoPlanFound", err)
	}
	if xerrors.CodeOf(err) != CodeNoPlanFound {
		t.Fatalf("code = %v, want %v", xerrors.CodeOf(err), CodeNoPlanFound)
	}
}

func TestExecuteRefusalRunsNothing(t *testing.T) {
	runner := &stubRunner{}
	exec := NewExecutor(runner)
	result, err := exec.Execute(context.Background(), "alice01", &Plan{UserQuery: "poem", Steps: []Step{}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Refused {
		t.Fatalf("refusal plan must mark execution refused")
	}
	if len(runner.calls) != 0 {
		t.Fatalf("refusal plan must not dispatch steps, got %v", runner.calls)
	}
}

func TestExecuteStepFailureAborts(t *testing.T) {
	runner := &stubRunner{outputs: map[int]string{1: "ok"}, failAt: 2}
	exec := NewExecutor(runner)
	_, err := exec.Execute(context.Background(), "alice01", &Plan{
		UserQuery: "q",
		Steps: []Step{
			{Step: 1, Query: "a"},
			{Step: 2, Query: "b"},
			{Step: 3, Query: "c"},
		},
	})
	if xerrors.CodeOf(err) != CodePlanStep {
		t.Fatalf("code = %v, want %v", xerrors.CodeOf(err), CodePlanStep)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("execution must stop at failing step, got calls %v", runner.calls)
	}
}
