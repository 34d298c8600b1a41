package network

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

// READ_WAIT is how long a Read waits for a pending datagram. A deadline of
// time.Now() has already passed when the read starts and the poller fails it
// without reading the socket.
const READ_WAIT = time.Millisecond

var (
	// ErrNotOpen is returned for I/O on a socket that was never opened or is closed
	ErrNotOpen = errors.New("socket not open")
)

// UDPSocket is a bound IPv4 UDP socket with non-blocking reads
type UDPSocket struct {
	conn      *net.UDPConn
	address   string
	port      int
	localAddr *net.UDPAddr
}

// NewUDPSocket creates a UDP socket bound to address:port on Open. An empty
// address binds all interfaces; port 0 takes an ephemeral port.
func NewUDPSocket(address string, port int) *UDPSocket {
	return &UDPSocket{
		address: address,
		port:    port,
	}
}

// Open binds the socket
func (s *UDPSocket) Open() error {
	ip := net.IPv4zero
	if s.address != "" {
		ip = net.ParseIP(s.address)
		if ip == nil {
			return fmt.Errorf("invalid address: %s", s.address)
		}
	}
	s.localAddr = &net.UDPAddr{IP: ip, Port: s.port}

	conn, err := net.ListenUDP("udp4", s.localAddr)
	if err != nil {
		log.Printf("Error opening UDP socket: %v", err)
		return err
	}
	s.conn = conn

	log.Printf("UDP socket bound to %s", s.conn.LocalAddr().String())
	return nil
}

// Read performs a non-blocking read. It returns 0 bytes and a nil error when
// nothing is pending.
func (s *UDPSocket) Read(buffer []byte) (int, *net.UDPAddr, error) {
	if s.conn == nil {
		return 0, nil, ErrNotOpen
	}

	s.conn.SetReadDeadline(time.Now().Add(READ_WAIT))

	n, addr, err := s.conn.ReadFromUDP(buffer)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, nil, nil
		}
		log.Printf("UDP read error: %v", err)
		return 0, nil, err
	}

	return n, addr, nil
}

// Write sends one datagram to addr
func (s *UDPSocket) Write(buffer []byte, addr *net.UDPAddr) error {
	if s.conn == nil {
		return ErrNotOpen
	}

	if _, err := s.conn.WriteToUDP(buffer, addr); err != nil {
		log.Printf("UDP write error: %v", err)
		return err
	}

	return nil
}

// LocalAddr returns the bound address, or nil before Open
func (s *UDPSocket) LocalAddr() *net.UDPAddr {
	if s.conn == nil {
		return nil
	}
	if addr, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		return addr
	}
	return nil
}

// Close closes the UDP socket
func (s *UDPSocket) Close() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		log.Printf("UDP socket closed")
	}
}

// Lookup resolves hostname to an IPv4 address
func Lookup(hostname string) (net.IP, error) {
	if ip := net.ParseIP(hostname); ip != nil {
		return ip, nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil, err
	}

	for _, ip := range ips {
		if ip.To4() != nil {
			return ip, nil
		}
	}

	return nil, fmt.Errorf("no IPv4 address found for %s", hostname)
}

// ParseUDPAddr resolves address and pairs it with port
func ParseUDPAddr(address string, port int) (*net.UDPAddr, error) {
	ip, err := Lookup(address)
	if err != nil {
		return nil, err
	}

	return &net.UDPAddr{
		IP:   ip,
		Port: port,
	}, nil
}
