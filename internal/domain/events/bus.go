// Package events is a small typed pub/sub bus. The core publishes state
// changes here and the presentation layer subscribes to render them.
package events

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

type subscriber struct {
	id int
	fn func(any)
}

// Bus routes events by their Go type. The zero value is not usable; use New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscriber // type name -> subs
	nextID int
	log    *zap.Logger
}

func New(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{subs: map[string][]subscriber{}, log: log}
}

func typeNameOf[T any]() string {
	var zero *T
	rt := reflect.TypeOf(zero).Elem() // *T -> T without dereferencing nil
	return rt.PkgPath() + "." + rt.Name()
}

// Subscribe registers fn for events of type T and returns its cancel func.
func Subscribe[T any](b *Bus, fn func(T)) func() {
	name := typeNameOf[T]()
	wrapped := func(v any) {
		if ev, ok := v.(T); ok {
			fn(ev)
		}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscriber{id: id, fn: wrapped})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		ss := b.subs[name]
		for i, s := range ss {
			if s.id == id {
				b.subs[name] = append(ss[:i:i], ss[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev synchronously to every subscriber of T. A panicking
// subscriber is logged and does not stop delivery.
func Publish[T any](b *Bus, ev T) {
	if b == nil {
		return
	}
	name := typeNameOf[T]()
	b.mu.RLock()
	ss := append([]subscriber(nil), b.subs[name]...)
	b.mu.RUnlock()
	for _, s := range ss {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("events: subscriber panic", zap.String("event", name), zap.Any("panic", r))
				}
			}()
			s.fn(ev)
		}()
	}
}

// Count returns the number of subscribers for T.
func Count[T any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[typeNameOf[T]()])
}
