package udpsock

import (
	"testing"

	"github.com/streamrig/streamrig/internal/filter"
)

func mustNew(t *testing.T, cfg Config) *UDPSock {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClientServerRoundTrip(t *testing.T) {
	server := mustNew(t, Config{LocalAddr: "127.0.0.1:0"})

	client := mustNew(t, Config{RemoteAddr: server.conn.LocalAddr().String()})

	msg := []byte("hello over udp")
	n, status := client.Write(msg, filter.Block)
	if status != filter.StatusSuccess || n != len(msg) {
		t.Fatalf("write = (%d, %v), want (%d, success)", n, status, len(msg))
	}

	// Read keeps receiving until buf is full, so size it to the one
	// datagram sent.
	buf := make([]byte, len(msg))
	n, status = server.Read(buf, filter.Block)
	if status != filter.StatusSuccess || string(buf[:n]) != string(msg) {
		t.Fatalf("read = (%q, %v), want (%q, success)", buf[:n], status, msg)
	}
}

func TestWriteWithoutRemoteAddrErrors(t *testing.T) {
	s := mustNew(t, Config{LocalAddr: "127.0.0.1:0"})
	_, status := s.Write([]byte("x"), filter.Block)
	if status != filter.StatusError {
		t.Fatalf("write status = %v, want error", status)
	}
}

func TestReadWithoutLocalAddrErrors(t *testing.T) {
	server := mustNew(t, Config{LocalAddr: "127.0.0.1:0"})
	s := mustNew(t, Config{RemoteAddr: server.conn.LocalAddr().String()})
	_, status := s.Read(make([]byte, 16), filter.Block)
	if status != filter.StatusError {
		t.Fatalf("read status = %v, want error", status)
	}
}

func TestLargeWriteChunksAcrossPayloadSize(t *testing.T) {
	server := mustNew(t, Config{LocalAddr: "127.0.0.1:0"})
	client := mustNew(t, Config{RemoteAddr: server.conn.LocalAddr().String(), PayloadSize: 8})

	msg := []byte("12345678abcdefgh")
	go client.Write(msg, filter.Block)

	total := 0
	buf := make([]byte, len(msg))
	for total < len(msg) {
		n, status := server.Read(buf[total:total+8], filter.Block)
		if status != filter.StatusSuccess {
			t.Fatalf("read status = %v", status)
		}
		total += n
	}
	if string(buf) != string(msg) {
		t.Fatalf("reassembled = %q, want %q", buf, msg)
	}
}

func TestStopDisablesReadOnly(t *testing.T) {
	server := mustNew(t, Config{LocalAddr: "127.0.0.1:0"})
	client := mustNew(t, Config{RemoteAddr: server.conn.LocalAddr().String()})

	server.Stop()
	if _, status := server.Read(make([]byte, 16), filter.Block); status != filter.StatusError {
		t.Fatalf("expected read to error after Stop, got %v", status)
	}

	if _, status := client.Write([]byte("still writable"), filter.Block); status != filter.StatusSuccess {
		t.Fatalf("expected write to still succeed, got %v", status)
	}
}
