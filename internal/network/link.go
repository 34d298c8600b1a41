package network

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
)

var (
	// ErrNoPeer is returned by Send when no peer address is configured
	ErrNoPeer = errors.New("no peer configured")
	// ErrClosed is returned for I/O on a closed endpoint
	ErrClosed = errors.New("link closed")
	// ErrUnreachable is returned when the peer cannot take the datagram
	ErrUnreachable = errors.New("peer unreachable")
)

// DEFAULT_QUEUE is the Loopback receive queue size in bytes
const DEFAULT_QUEUE = 1024

// SendHandler is told the outcome of every Send. There is no retry.
type SendHandler func(ok bool, err error)

// Datagram is one end of the wireless link
type Datagram interface {
	// Receive copies the next pending datagram into buf. It never blocks and
	// returns 0, nil when nothing is pending.
	Receive(buf []byte) (int, error)
	// Send transmits data to the peer and reports the outcome to the send handler.
	Send(data []byte) error
	SetSendHandler(h SendHandler)
	Close()
}

var (
	_ Datagram = (*Link)(nil)
	_ Datagram = (*Loopback)(nil)
)

// LinkStats counts datagram traffic
type LinkStats struct {
	Sent     uint32
	Failed   uint32
	Received uint32
	Foreign  uint32 // datagrams from an address other than the peer
}

// Link is a Datagram over UDP with a single fixed peer
type Link struct {
	socket *UDPSocket
	peer   *net.UDPAddr
	onSend SendHandler
	stats  LinkStats
	debug  bool
}

// NewLink creates a link bound to localAddress:localPort. With an empty
// peerAddress the link only receives.
func NewLink(localAddress string, localPort int, peerAddress string, peerPort int, debug bool) (*Link, error) {
	l := &Link{
		socket: NewUDPSocket(localAddress, localPort),
		debug:  debug,
	}

	if peerAddress != "" {
		peer, err := ParseUDPAddr(peerAddress, peerPort)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve peer %s: %w", peerAddress, err)
		}
		l.peer = peer
	}

	return l, nil
}

// Open binds the underlying socket
func (l *Link) Open() error {
	if err := l.socket.Open(); err != nil {
		return err
	}
	if l.peer != nil {
		log.Printf("[Link] Peer %s", l.peer)
	}
	return nil
}

// Receive returns the next datagram from the peer. Datagrams from other
// addresses are dropped when a peer is configured.
func (l *Link) Receive(buf []byte) (int, error) {
	for {
		n, addr, err := l.socket.Read(buf)
		if err != nil || n == 0 {
			return 0, err
		}
		if l.peer != nil && !l.peer.IP.Equal(addr.IP) {
			l.stats.Foreign++
			if l.debug {
				log.Printf("[Link] Dropping %d bytes from %s", n, addr)
			}
			continue
		}
		l.stats.Received++
		return n, nil
	}
}

// Send writes one datagram to the peer
func (l *Link) Send(data []byte) error {
	var err error
	if l.peer == nil {
		err = ErrNoPeer
	} else {
		err = l.socket.Write(data, l.peer)
	}
	l.complete(err)
	return err
}

func (l *Link) complete(err error) {
	if err != nil {
		l.stats.Failed++
	} else {
		l.stats.Sent++
	}
	if l.onSend != nil {
		l.onSend(err == nil, err)
	}
}

// SetSendHandler installs the send-completion callback
func (l *Link) SetSendHandler(h SendHandler) {
	l.onSend = h
}

// LocalAddr returns the bound address
func (l *Link) LocalAddr() *net.UDPAddr {
	return l.socket.LocalAddr()
}

// Stats returns a copy of the traffic counters
func (l *Link) Stats() LinkStats {
	return l.stats
}

// Close closes the socket
func (l *Link) Close() {
	l.socket.Close()
}

// Loopback is an in-process Datagram. A pair delivers into each other's
// bounded queue; when a queue is full the oldest datagram is dropped.
type Loopback struct {
	mu          sync.Mutex
	inbox       *RingBuffer
	peer        *Loopback
	onSend      SendHandler
	unreachable bool
	closed      bool
	dropped     uint32
}

// NewLoopbackPair returns two connected endpoints with queueSize bytes of
// receive queue each
func NewLoopbackPair(queueSize int) (*Loopback, *Loopback) {
	if queueSize <= 0 {
		queueSize = DEFAULT_QUEUE
	}
	a := &Loopback{inbox: NewRingBuffer(queueSize, "loopback-a")}
	b := &Loopback{inbox: NewRingBuffer(queueSize, "loopback-b")}
	a.peer = b
	b.peer = a
	return a, b
}

// Receive pops the oldest queued datagram
func (lb *Loopback) Receive(buf []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.closed {
		return 0, ErrClosed
	}
	n, ok := lb.inbox.GetLength(buf)
	if !ok {
		return 0, nil
	}
	return n, nil
}

// Send queues data at the peer
func (lb *Loopback) Send(data []byte) error {
	lb.mu.Lock()
	closed, unreachable, handler := lb.closed, lb.unreachable, lb.onSend
	lb.mu.Unlock()

	var err error
	switch {
	case closed:
		err = ErrClosed
	case unreachable:
		err = ErrUnreachable
	default:
		err = lb.peer.deliver(data)
	}

	if handler != nil {
		handler(err == nil, err)
	}
	return err
}

func (lb *Loopback) deliver(data []byte) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.closed {
		return ErrUnreachable
	}
	if len(data) > MAX_DATAGRAM || LENGTH_PREFIX+len(data) > lb.inbox.capacity {
		return fmt.Errorf("datagram of %d bytes exceeds queue: %w", len(data), ErrUnreachable)
	}
	for !lb.inbox.AddLength(data) {
		if !lb.inbox.DropOldest() {
			return fmt.Errorf("datagram of %d bytes does not fit: %w", len(data), ErrUnreachable)
		}
		lb.dropped++
	}
	return nil
}

// SetSendHandler installs the send-completion callback
func (lb *Loopback) SetSendHandler(h SendHandler) {
	lb.mu.Lock()
	lb.onSend = h
	lb.mu.Unlock()
}

// SetUnreachable makes subsequent sends fail, simulating an out-of-range peer
func (lb *Loopback) SetUnreachable(unreachable bool) {
	lb.mu.Lock()
	lb.unreachable = unreachable
	lb.mu.Unlock()
}

// Pending reports whether a datagram is queued
func (lb *Loopback) Pending() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.inbox.HasData()
}

// Dropped returns how many queued datagrams were discarded for space
func (lb *Loopback) Dropped() uint32 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.dropped
}

// Close closes this end; the peer's sends then fail
func (lb *Loopback) Close() {
	lb.mu.Lock()
	lb.closed = true
	lb.inbox.Clear()
	lb.mu.Unlock()
}
