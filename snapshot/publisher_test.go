package snapshot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hostguardian/guardian/model"
)

func TestGet_NoneBeforeFirstPublish(t *testing.T) {
	p := New()
	_, ok := p.Get()
	assert.False(t, ok)
}

func TestPublishGet_RoundTrip(t *testing.T) {
	p := New()
	p.Publish(model.Snapshot{SamplesCount: 3})

	s, ok := p.Get()
	assert.True(t, ok)
	assert.Equal(t, 3, s.SamplesCount)
}

func TestPublish_LatestWins(t *testing.T) {
	p := New()
	p.Publish(model.Snapshot{SamplesCount: 1})
	p.Publish(model.Snapshot{SamplesCount: 2})

	s, _ := p.Get()
	assert.Equal(t, 2, s.SamplesCount)
}

func TestConcurrentPublishAndGet_NoRace(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			p.Publish(model.Snapshot{SamplesCount: n})
		}(i)
		go func() {
			defer wg.Done()
			p.Get()
		}()
	}
	wg.Wait()
}
