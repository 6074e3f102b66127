package scheduler

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingLedgerTask struct{ calls int }

func (t *countingLedgerTask) RefreshLiability() { t.calls++ }

type panickingOrderTask struct{}

func (panickingOrderTask) CountOverdueDrafts() { panic("boom") }

func TestNewScheduler_RegistersJobs(t *testing.T) {
	c := NewScheduler(Deps{
		LedgerJob: &countingLedgerTask{},
		OrderJob:  panickingOrderTask{},
	}, nil)

	if got := len(c.Entries()); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}
}

func TestNewScheduler_SkipsMissingJobs(t *testing.T) {
	c := NewScheduler(Deps{}, nil)
	if got := len(c.Entries()); got != 0 {
		t.Fatalf("expected no entries, got %d", got)
	}
}

func TestJobPanicIsRecovered(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	c := NewScheduler(Deps{OrderJob: panickingOrderTask{}}, zap.New(core))

	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entries[0].Job.Run()

	if logs.FilterMessage("scheduler job panic recovered").Len() != 1 {
		t.Fatalf("expected recovered panic to be logged, got %v", logs.All())
	}
}

func TestLedgerJobRuns(t *testing.T) {
	task := &countingLedgerTask{}
	c := NewScheduler(Deps{LedgerJob: task}, nil)

	c.Entries()[0].Job.Run()
	if task.calls != 1 {
		t.Fatalf("expected one call, got %d", task.calls)
	}
}
