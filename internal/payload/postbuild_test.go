package payload

import (
	"errors"
	"testing"

	"golang.org/x/time/rate"
)

func TestRunPostBuildRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	w := &Writer{
		PostBuild: func(outputPath string) error {
			attempts++
			if attempts < 2 {
				return errors.New("transient failure")
			}
			return nil
		},
		PostBuildLimiter: rate.NewLimiter(rate.Inf, 1),
	}
	if err := w.runPostBuild("out"); err != nil {
		t.Fatalf("runPostBuild: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestRunPostBuildGivesUpAfterRetries(t *testing.T) {
	attempts := 0
	w := &Writer{
		PostBuild: func(outputPath string) error {
			attempts++
			return errors.New("permanent failure")
		},
		PostBuildLimiter: rate.NewLimiter(rate.Inf, 1),
		PostBuildRetries: 2,
	}
	if err := w.runPostBuild("out"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestRunPostBuildNoHookIsNoOp(t *testing.T) {
	w := &Writer{}
	if err := w.runPostBuild("out"); err != nil {
		t.Fatalf("runPostBuild: %v", err)
	}
}

func TestRunPostBuildNoLimiterRunsOnce(t *testing.T) {
	attempts := 0
	w := &Writer{
		PostBuild: func(outputPath string) error {
			attempts++
			return errors.New("fails")
		},
	}
	if err := w.runPostBuild("out"); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no limiter means no retry)", attempts)
	}
}
