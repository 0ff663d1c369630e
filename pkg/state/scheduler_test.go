package state

import (
	"testing"
	"time"
)

func TestManualSchedulerDefersReentrantWork(t *testing.T) {
	var m ManualScheduler
	var order []string

	m.Schedule(func() {
		order = append(order, "a")
		m.Schedule(func() { order = append(order, "c") })
	})
	m.Schedule(func() { order = append(order, "b") })

	if n := m.Tick(); n != 2 {
		t.Errorf("first Tick() ran %d, want 2", n)
	}
	if got := len(order); got != 2 {
		t.Fatalf("order after first tick = %v", order)
	}
	if n := m.Tick(); n != 1 {
		t.Errorf("second Tick() ran %d, want 1", n)
	}
	if order[2] != "c" {
		t.Errorf("order = %v, want [a b c]", order)
	}
	if n := m.Tick(); n != 0 {
		t.Errorf("idle Tick() ran %d", n)
	}
}

func TestFrameSchedulerRunsOnTick(t *testing.T) {
	s := NewFrameScheduler(time.Millisecond)
	defer s.Stop()

	done := make(chan []int, 1)
	var ran []int
	s.Schedule(func() { ran = append(ran, 1) })
	s.Schedule(func() {
		ran = append(ran, 2)
		done <- ran
	})

	select {
	case got := <-done:
		if len(got) != 2 || got[0] != 1 {
			t.Errorf("ran = %v, want [1 2]", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled work did not run")
	}
}

func TestFrameSchedulerStop(t *testing.T) {
	s := NewFrameScheduler(0)
	if s.Interval() != DefaultFrameInterval {
		t.Errorf("Interval() = %v, want %v", s.Interval(), DefaultFrameInterval)
	}
	s.Stop()
	s.Stop()

	s.Schedule(func() { t.Error("work ran after Stop") })
	time.Sleep(3 * DefaultFrameInterval)
}

func TestStoreWithFrameScheduler(t *testing.T) {
	sched := NewFrameScheduler(time.Millisecond)
	defer sched.Stop()

	s := NewStore(Record{}, sched)
	got := make(chan Record, 4)
	s.Subscribe(func(r Record) { got <- r })

	s.SetBatched(Record{"a": 1})
	s.SetBatched(Record{"b": 2})

	select {
	case r := <-got:
		if r["a"] != 1 || r["b"] != 2 {
			t.Errorf("flushed record = %v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not run")
	}
	select {
	case r := <-got:
		t.Errorf("extra notification %v", r)
	case <-time.After(20 * time.Millisecond):
	}
}
