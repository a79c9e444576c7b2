package cron

import "testing"

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	first := &countingJob{name: "a"}
	second := &countingJob{name: "b"}
	registry := NewRegistry(first, nil)
	registry.Register(nil)
	registry.Register(second)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != first || jobs[1] != second {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}
