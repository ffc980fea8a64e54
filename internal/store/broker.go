package store

import "sync"

// Broker is an in-process pub/sub for document snapshots, keyed by
// collection/id. Each subscriber gets the full document JSON after
// every committed write; nil means the document was deleted.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

func (b *Broker) Subscribe(key string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan []byte]struct{})
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(key string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[key], ch)
	if len(b.subs[key]) == 0 {
		delete(b.subs, key)
	}
	b.mu.Unlock()
}

func (b *Broker) Publish(key string, snapshot []byte) {
	b.mu.RLock()
	for ch := range b.subs[key] {
		select {
		case ch <- snapshot:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
