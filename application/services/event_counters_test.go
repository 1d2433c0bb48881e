package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrainIfAtLeastBelowThresholdLeavesCount(t *testing.T) {
	c := NewEventCounters()
	c.Increment("ingestion_epoch")
	c.Increment("ingestion_epoch")

	assert.False(t, c.DrainIfAtLeast("ingestion_epoch", 5))
	assert.Equal(t, 2, c.Peek("ingestion_epoch"))
}

func TestDrainIfAtLeastResetsOnFire(t *testing.T) {
	c := NewEventCounters()
	for i := 0; i < 5; i++ {
		c.Increment("ingestion_epoch")
	}

	assert.True(t, c.DrainIfAtLeast("ingestion_epoch", 5))
	assert.Equal(t, 0, c.Peek("ingestion_epoch"))
	assert.False(t, c.DrainIfAtLeast("ingestion_epoch", 5))
}

func TestCountersAreIndependent(t *testing.T) {
	c := NewEventCounters()
	c.Increment("vocabulary_changed")
	assert.Equal(t, 0, c.Peek("ingestion_epoch"))
	assert.Equal(t, 1, c.Peek("vocabulary_changed"))
}

func TestIncrementIsSafeUnderConcurrency(t *testing.T) {
	c := NewEventCounters()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Increment("vocabulary_changed")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, c.Peek("vocabulary_changed"))
}
