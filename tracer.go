package inspector

import "net"

// A Tracer can be used to monitor the lifecycle of relayed connections.
// All callbacks are optional and may be called concurrently.
type Tracer struct {
	// ConnectionAccepted is called when the listener accepts a client connection.
	ConnectionAccepted func(id uint64, remote net.Addr)
	// DialFailed is called when the target could not be reached. The client connection is closed.
	DialFailed func(id uint64, target string, err error)
	// ConnectionEstablished is called once the target connection is open and relaying starts.
	ConnectionEstablished func(id uint64, target string)
	// ConnectionClosed is called when both directions of a relayed connection have stopped.
	// err is the first unexpected socket error, if any.
	ConnectionClosed func(id uint64, err error)
}

func (t *Tracer) connectionAccepted(id uint64, remote net.Addr) {
	if t != nil && t.ConnectionAccepted != nil {
		t.ConnectionAccepted(id, remote)
	}
}

func (t *Tracer) dialFailed(id uint64, target string, err error) {
	if t != nil && t.DialFailed != nil {
		t.DialFailed(id, target, err)
	}
}

func (t *Tracer) connectionEstablished(id uint64, target string) {
	if t != nil && t.ConnectionEstablished != nil {
		t.ConnectionEstablished(id, target)
	}
}

func (t *Tracer) connectionClosed(id uint64, err error) {
	if t != nil && t.ConnectionClosed != nil {
		t.ConnectionClosed(id, err)
	}
}
