package inspector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBufferSize is the read buffer used per direction when Relay.BufferSize is not set.
// Every read is treated as one candidate message frame.
const DefaultBufferSize = 64 << 10

// maxAcceptDelay caps the backoff after failed Accept calls.
const maxAcceptDelay = time.Second

var nopLogger = zerolog.Nop()

// connPair is one accepted client connection and its outbound target connection.
// Closing it closes both sides.
type connPair struct {
	client net.Conn
	target net.Conn

	once sync.Once
	err  error
}

func (p *connPair) Close() error {
	p.once.Do(func() {
		p.err = errors.Join(p.client.Close(), p.target.Close())
	})
	return p.err
}

// A Relay forwards TCP connections to a fixed target and accounts
// the traffic flowing in both directions.
type Relay struct {
	// Target is the host:port every accepted connection is relayed to.
	Target string
	// DialTimeout bounds the outbound connection attempt. Zero means no timeout.
	DialTimeout time.Duration
	// BufferSize is the maximum number of bytes read in one go. Defaults to DefaultBufferSize.
	BufferSize int

	// Stats, if set, aggregates the traffic of all connections.
	Stats *Accumulator
	// Observer, if set, receives every chunk and the final statistics of each connection.
	Observer Observer
	Tracer   *Tracer
	Logger   *zerolog.Logger

	nextID atomic.Uint64

	mx       sync.Mutex
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	refCount sync.WaitGroup // counter for the Go routines spawned in Serve
	closers  map[io.Closer]struct{}
}

// ListenAndServe listens on the TCP address addr and relays accepted connections.
func (r *Relay) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return r.Serve(ln)
}

// Serve accepts connections on ln and relays each of them to Target.
// Failed Accept calls are retried with backoff. Serve returns net.ErrClosed
// once the relay or ln is closed. The listener is closed when Serve returns.
func (r *Relay) Serve(ln net.Listener) error {
	r.mx.Lock()
	if r.closed {
		r.mx.Unlock()
		ln.Close()
		return net.ErrClosed
	}
	r.initLocked()
	ctx := r.ctx
	r.closers[ln] = struct{}{}
	r.mx.Unlock()

	defer func() {
		ln.Close()
		r.mx.Lock()
		delete(r.closers, ln)
		r.mx.Unlock()
	}()

	var tempDelay time.Duration // how long to sleep on accept failure
	for {
		conn, err := ln.Accept()
		if err != nil {
			if r.isClosed() || errors.Is(err, net.ErrClosed) {
				return net.ErrClosed
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > maxAcceptDelay {
				tempDelay = maxAcceptDelay
			}
			r.logger().Warn().Err(err).Dur("retry_in", tempDelay).Msg("accepting connection failed")
			timer := time.NewTimer(tempDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return net.ErrClosed
			}
			continue
		}
		tempDelay = 0

		r.mx.Lock()
		if r.closed {
			r.mx.Unlock()
			conn.Close()
			return net.ErrClosed
		}
		r.refCount.Add(1)
		r.mx.Unlock()

		go func() {
			defer r.refCount.Done()
			r.handleConn(ctx, conn)
		}()
	}
}

func (r *Relay) initLocked() {
	if r.closers == nil {
		r.closers = make(map[io.Closer]struct{})
	}
	if r.ctx == nil {
		r.ctx, r.cancel = context.WithCancel(context.Background())
	}
}

func (r *Relay) isClosed() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.closed
}

func (r *Relay) logger() *zerolog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return &nopLogger
}

func (r *Relay) bufferSize() int {
	if r.BufferSize > 0 {
		return r.BufferSize
	}
	return DefaultBufferSize
}

func (r *Relay) handleConn(ctx context.Context, client net.Conn) {
	id := r.nextID.Add(1)
	log := r.logger().With().Uint64("conn", id).Logger()
	r.Tracer.connectionAccepted(id, client.RemoteAddr())
	log.Info().Stringer("client", client.RemoteAddr()).Msg("client connected")

	dialer := net.Dialer{Timeout: r.DialTimeout}
	target, err := dialer.DialContext(ctx, "tcp", r.Target)
	if err != nil {
		log.Error().Err(err).Str("target", r.Target).Msg("connecting to target failed")
		r.Tracer.dialFailed(id, r.Target, err)
		client.Close()
		return
	}

	pair := &connPair{client: client, target: target}
	r.mx.Lock()
	if r.closed {
		r.mx.Unlock()
		pair.Close()
		return
	}
	r.closers[pair] = struct{}{}
	r.mx.Unlock()

	r.Tracer.connectionEstablished(id, r.Target)
	log.Debug().Str("target", r.Target).Msg("relaying")

	stats := NewAccumulator(time.Now())
	var (
		wg     sync.WaitGroup
		errMx  sync.Mutex
		relErr error
	)
	setErr := func(err error) {
		errMx.Lock()
		if relErr == nil {
			relErr = err
		}
		errMx.Unlock()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := r.pipe(id, target, client, ClientToServer, stats); err != nil {
			log.Warn().Err(err).Stringer("direction", ClientToServer).Msg("relaying failed")
			setErr(err)
		}
		pair.Close()
	}()
	go func() {
		defer wg.Done()
		if err := r.pipe(id, client, target, ServerToClient, stats); err != nil {
			log.Warn().Err(err).Stringer("direction", ServerToClient).Msg("relaying failed")
			setErr(err)
		}
		pair.Close()
	}()
	wg.Wait()

	r.mx.Lock()
	delete(r.closers, pair)
	r.mx.Unlock()

	snap := stats.Snapshot(time.Now())
	if r.Observer != nil {
		r.Observer.ConnectionClosed(id, snap)
	}
	r.Tracer.connectionClosed(id, relErr)
	log.Info().
		Uint64("bytes_up", snap.Direction(ClientToServer).TotalBytes).
		Uint64("bytes_down", snap.Direction(ServerToClient).TotalBytes).
		Dur("duration", snap.Elapsed).
		Msg("connection closed")
}

// pipe copies src to dst chunk by chunk, accounting every chunk before forwarding it.
// It returns nil when src ends or either side was closed locally.
func (r *Relay) pipe(id uint64, dst, src net.Conn, dir Direction, stats *Accumulator) error {
	b := make([]byte, r.bufferSize())
	for {
		n, err := src.Read(b)
		if n > 0 {
			r.observe(id, dir, b[:n], stats)
			if _, werr := dst.Write(b[:n]); werr != nil {
				return relayError(werr)
			}
		}
		if err != nil {
			return relayError(err)
		}
	}
}

func (r *Relay) observe(id uint64, dir Direction, chunk []byte, stats *Accumulator) {
	now := time.Now()
	class := Classify(chunk)
	label := class.Label()
	delta := stats.Record(dir, len(chunk), label, now)
	if r.Stats != nil {
		r.Stats.Record(dir, len(chunk), label, now)
	}
	if r.Observer != nil {
		r.Observer.ObserveChunk(ChunkEvent{
			ConnID:    id,
			Direction: dir,
			Data:      chunk,
			Class:     class,
			Delta:     delta,
			Time:      now,
		})
	}
}

// relayError filters out the errors that signal a regular end of a relayed connection.
func relayError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// ActiveConnections returns the number of connection pairs currently being relayed.
func (r *Relay) ActiveConnections() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	var n int
	for c := range r.closers {
		if _, ok := c.(*connPair); ok {
			n++
		}
	}
	return n
}

// Close closes the relay, stopping all listeners and immediately terminating all relayed connections.
func (r *Relay) Close() error {
	r.mx.Lock()
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	var errs []error
	for closer := range r.closers {
		if err := closer.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	r.mx.Unlock()

	r.refCount.Wait()
	r.mx.Lock()
	r.closers = nil
	r.mx.Unlock()
	return errors.Join(errs...)
}
