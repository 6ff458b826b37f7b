package events

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type E1 struct{ A int }
type E2 struct{ S string }

func TestBus_SubscribePublish_TypeIsolation(t *testing.T) {
	b := New(nil)
	var c1 int32

	cancel := Subscribe(b, func(ev E1) {
		atomic.AddInt32(&c1, int32(ev.A))
	})
	defer cancel()

	Publish(b, E1{A: 1})
	Publish(b, E1{A: 2})
	Publish(b, E2{S: "noop"})

	assert.Equal(t, int32(3), atomic.LoadInt32(&c1))
}

func TestBus_Cancel_Unsubscribe(t *testing.T) {
	b := New(nil)
	var hits, other int32

	cancel := Subscribe(b, func(E1) { atomic.AddInt32(&hits, 1) })
	keep := Subscribe(b, func(E1) { atomic.AddInt32(&other, 1) })
	defer keep()
	cancel()
	cancel()

	Publish(b, E1{A: 1})

	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&other))
	assert.Equal(t, 1, Count[E1](b))
}

func TestBus_InstancesIsolated(t *testing.T) {
	b1, b2 := New(nil), New(nil)
	var hits int32
	defer Subscribe(b1, func(E1) { atomic.AddInt32(&hits, 1) })()

	Publish(b2, E1{A: 1})
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestBus_PanicIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	b := New(zap.New(core))
	var hits int32

	defer Subscribe(b, func(E1) { panic("boom") })()
	defer Subscribe(b, func(E1) { atomic.AddInt32(&hits, 1) })()

	Publish(b, E1{A: 1})
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 1, logs.FilterMessage("events: subscriber panic").Len())
}

func TestBus_Concurrency_NoRaces(t *testing.T) {
	b := New(nil)
	var hits int32

	cancel := Subscribe(b, func(E1) { atomic.AddInt32(&hits, 1) })
	defer cancel()

	const G = 50
	const N = 100
	var wg sync.WaitGroup
	wg.Add(G)
	for g := 0; g < G; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < N; i++ {
				Publish(b, E1{A: 1})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(G*N), atomic.LoadInt32(&hits))
}
