package inspector

import "time"

// A ChunkEvent describes one transport read observed on a relayed connection.
type ChunkEvent struct {
	ConnID    uint64
	Direction Direction
	// Data is only valid for the duration of the ObserveChunk call.
	Data  []byte
	Class Classification
	// Delta is the time since the previous chunk in the same direction of the same connection.
	Delta time.Duration
	Time  time.Time
}

// An Observer receives every classified chunk and the final statistics of each connection.
// Implementations must be safe for concurrent use: chunks of different
// connections and directions are delivered concurrently.
type Observer interface {
	ObserveChunk(ev ChunkEvent)
	// ConnectionClosed is called exactly once per relayed connection,
	// after both directions have stopped.
	ConnectionClosed(id uint64, snap Snapshot)
}

type multiObserver []Observer

// MultiObserver returns an Observer that forwards to all non-nil observers in order.
func MultiObserver(observers ...Observer) Observer {
	m := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) ObserveChunk(ev ChunkEvent) {
	for _, o := range m {
		o.ObserveChunk(ev)
	}
}

func (m multiObserver) ConnectionClosed(id uint64, snap Snapshot) {
	for _, o := range m {
		o.ConnectionClosed(id, snap)
	}
}
