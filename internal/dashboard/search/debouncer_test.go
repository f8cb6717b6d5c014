package search

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commits struct {
	mu     sync.Mutex
	values []string
	signal chan struct{}
}

func newCommits() *commits {
	return &commits{signal: make(chan struct{}, 16)}
}

func (c *commits) record(q string) {
	c.mu.Lock()
	c.values = append(c.values, q)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *commits) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.values...)
}

func (c *commits) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.signal:
	case <-time.After(time.Second):
		t.Fatal("commit not received")
	}
}

func TestDebouncerBurstCommitsOnceWithFinalInput(t *testing.T) {
	got := newCommits()
	d := NewDebouncer(40*time.Millisecond, got.record)
	defer d.Stop()

	for _, q := range []string{"a", "an", "ana", "ana "} {
		d.Input(q)
		time.Sleep(5 * time.Millisecond)
	}
	got.wait(t)
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, []string{"ana"}, got.snapshot())
	assert.False(t, d.Pending())
}

func TestDebouncerSeparatedInputsCommitEach(t *testing.T) {
	got := newCommits()
	d := NewDebouncer(20*time.Millisecond, got.record)
	defer d.Stop()

	d.Input("ana")
	got.wait(t)
	d.Input("luis")
	got.wait(t)

	assert.Equal(t, []string{"ana", "luis"}, got.snapshot())
}

func TestDebouncerSearchNowCancelsPending(t *testing.T) {
	got := newCommits()
	d := NewDebouncer(30*time.Millisecond, got.record)
	defer d.Stop()

	d.Input("an")
	require.True(t, d.Pending())
	d.SearchNow("ana")
	got.wait(t)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, []string{"ana"}, got.snapshot())
}

func TestDebouncerStopDropsPending(t *testing.T) {
	got := newCommits()
	d := NewDebouncer(20*time.Millisecond, got.record)

	d.Input("ana")
	d.Stop()
	d.Input("luis")
	d.SearchNow("maria")
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, got.snapshot())
}

func TestNewDebouncerDefaultDelay(t *testing.T) {
	d := NewDebouncer(0, nil)
	assert.Equal(t, DefaultDelay, d.delay)
}
