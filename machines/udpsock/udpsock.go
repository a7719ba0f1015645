// Package udpsock implements a UDP client/server machine: an optional
// bound local address feeds the read side, an optional remote address
// feeds the write side, both sharing one socket, chunked to a payload
// size that keeps datagrams under one unfragmented MTU. Grounded on
// bingewatch's socket-machine.c (the networking/ revision, which adds
// the read/write address split this package mirrors).
package udpsock

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/logging"
)

// DefaultPayloadSize is 1500 (typical Ethernet MTU) minus a 20-byte IP
// header and an 8-byte UDP header, keeping each datagram under the
// path MTU. Mirrors UDP_PACKET_SIZE.
const DefaultPayloadSize = 1500 - 20 - 8

// Config describes the socket to create. LocalAddr, if set, is bound
// for reading (server side); RemoteAddr, if set, is the destination
// for writes (client side). At least one must be set. PayloadSize
// defaults to DefaultPayloadSize.
type Config struct {
	LocalAddr   string
	RemoteAddr  string
	PayloadSize int
	RecvBuf     int
	SendBuf     int
}

// UDPSock is a UDP datagram machine shared by its read and write side.
type UDPSock struct {
	log *logging.Logger

	mu          sync.Mutex
	conn        *net.UDPConn
	remote      *net.UDPAddr
	payloadSize int
	canRead     bool
	canWrite    bool
}

// New creates a UDP socket per cfg, binding LocalAddr if set and
// resolving RemoteAddr if set, mirroring create_udp/init_filters'
// read/write descriptor split.
func New(cfg Config) (*UDPSock, error) {
	payload := cfg.PayloadSize
	if payload <= 0 {
		payload = DefaultPayloadSize
	}

	var local *net.UDPAddr
	var err error
	if cfg.LocalAddr != "" {
		local, err = net.ResolveUDPAddr("udp4", cfg.LocalAddr)
		if err != nil {
			return nil, err
		}
	}

	var remote *net.UDPAddr
	if cfg.RemoteAddr != "" {
		remote, err = net.ResolveUDPAddr("udp4", cfg.RemoteAddr)
		if err != nil {
			return nil, err
		}
	}

	conn, err := net.ListenUDP("udp4", local)
	if err != nil {
		return nil, err
	}

	if cfg.RecvBuf > 0 || cfg.SendBuf > 0 {
		if err := tuneBuffers(conn, cfg.RecvBuf, cfg.SendBuf); err != nil {
			logging.Default().Warnf("udpsock: failed to tune socket buffers: %v", err)
		}
	}

	return &UDPSock{
		log:         logging.Default(),
		conn:        conn,
		remote:      remote,
		payloadSize: payload,
		canRead:     local != nil,
		canWrite:    remote != nil,
	}, nil
}

// tuneBuffers sets SO_RCVBUF/SO_SNDBUF directly via the raw fd, the Go
// analogue of a lower-level setsockopt call the original relies on the
// OS default for; exposed here since the expanded design calls it out
// explicitly as a tunable.
func tuneBuffers(conn *net.UDPConn, recvBuf, sendBuf int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var setErr error
	err = raw.Control(func(fd uintptr) {
		if recvBuf > 0 {
			if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, recvBuf); e != nil {
				setErr = e
			}
		}
		if sendBuf > 0 {
			if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, sendBuf); e != nil {
				setErr = e
			}
		}
	})
	if err != nil {
		return err
	}
	return setErr
}

// Read receives up to len(buf) bytes in payloadSize-sized datagrams,
// mirroring udp_read's chunked recvfrom loop. A zero-length datagram
// ends the read early with StatusSuccess, matching the original's
// "bytes_rcvd == 0" early return.
func (s *UDPSock) Read(buf []byte, _ filter.BlockMode) (int, filter.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.canRead {
		s.log.Errorf("udpsock: read called on a socket with no bound local address")
		return 0, filter.StatusError
	}

	remaining := len(buf)
	total := 0
	for remaining > 0 {
		chunk := s.payloadSize
		if chunk > remaining {
			chunk = remaining
		}

		n, _, err := s.conn.ReadFromUDP(buf[total : total+chunk])
		if err != nil {
			s.log.Errorf("udpsock: recvfrom failed: %v", err)
			return 0, filter.StatusError
		}
		if n == 0 {
			return total, filter.StatusSuccess
		}

		total += n
		remaining -= n
	}
	return total, filter.StatusSuccess
}

// Write sends buf in payloadSize-sized datagrams to the configured
// remote address, mirroring udp_write's chunked sendto loop.
func (s *UDPSock) Write(buf []byte, _ filter.BlockMode) (int, filter.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.canWrite {
		s.log.Errorf("udpsock: write called on a socket with no remote address")
		return 0, filter.StatusError
	}

	remaining := len(buf)
	total := 0
	for remaining > 0 {
		chunk := s.payloadSize
		if chunk > remaining {
			chunk = remaining
		}

		n, err := s.conn.WriteToUDP(buf[total:total+chunk], s.remote)
		if err != nil {
			s.log.Errorf("udpsock: sendto failed: %v", err)
			return 0, filter.StatusError
		}

		total += n
		remaining -= n
	}
	return total, filter.StatusSuccess
}

// Stop disables the read side only, mirroring the original machine's
// registration of stop as machine_disable_read.
func (s *UDPSock) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canRead = false
}

// Close closes the underlying socket.
func (s *UDPSock) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
