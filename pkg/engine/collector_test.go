package engine

import (
	"fmt"
	"sync"
	"testing"
)

func TestCollector_RoutesOutcomes(t *testing.T) {
	c := NewCollector()

	c.Add(Outcome{ItemID: "a", Succeeded: true, StatusCode: 200, Attempts: 1})
	c.Add(Outcome{ItemID: "b", Succeeded: true, Skipped: true, StatusCode: 404, Attempts: 1})
	c.Add(Outcome{ItemID: "c", StatusCode: 500, Error: "boom", Attempts: 5})

	succeeded, failed := c.Counts()
	if succeeded != 2 || failed != 1 {
		t.Errorf("Counts() = (%d, %d), want (2, 1)", succeeded, failed)
	}
	if got := len(c.Successes()); got != 2 {
		t.Errorf("len(Successes()) = %d, want 2", got)
	}
	if got := len(c.Failures()); got != 1 {
		t.Errorf("len(Failures()) = %d, want 1", got)
	}
	if c.Failures()[0].ItemID != "c" {
		t.Errorf("Failures()[0].ItemID = %s, want c", c.Failures()[0].ItemID)
	}
}

func TestCollector_ReturnsCopies(t *testing.T) {
	c := NewCollector()
	c.Add(Outcome{ItemID: "a", Succeeded: true})

	got := c.Successes()
	got[0].ItemID = "tampered"

	if c.Successes()[0].ItemID != "a" {
		t.Error("Successes() must return a copy, internal state was mutated")
	}
}

func TestCollector_ConcurrentAdd(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Add(Outcome{
					ItemID:    fmt.Sprintf("w%d-i%d", w, i),
					Succeeded: i%2 == 0,
				})
			}
		}(w)
	}
	wg.Wait()

	succeeded, failed := c.Counts()
	if succeeded+failed != 800 {
		t.Errorf("total outcomes = %d, want 800", succeeded+failed)
	}
	if succeeded != 400 || failed != 400 {
		t.Errorf("Counts() = (%d, %d), want (400, 400)", succeeded, failed)
	}
}
