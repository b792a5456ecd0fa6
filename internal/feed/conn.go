package feed

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"
)

// Transport is the session-per-call connection contract consumed by the
// fetchers and the scheduler. Sessions carry no shared mutable state, which
// is what makes concurrent fetches safe.
type Transport interface {
	IsReady() bool
	OpenSession() (net.Conn, error)
	Send(conn net.Conn, command string) bool
	ReadUntilEnd(conn net.Conn) string
	CloseSession(conn net.Conn)
}

// ConnManager opens short-lived lookup connections to the feed gateway. One
// connection serves exactly one request/response exchange.
type ConnManager struct {
	Addr        string
	DialTimeout time.Duration
	// ReadIdle is how long each read attempt waits for data before it
	// counts as an idle attempt.
	ReadIdle time.Duration
	// MaxIdleAttempts bounds consecutive idle attempts; the counter resets
	// whenever data arrives, so the total wait is bounded per quiet period.
	MaxIdleAttempts int
}

const protocolCommand = "S,SET PROTOCOL,6.2\r\n"

// NewConnManager creates a connection manager for the given gateway address.
func NewConnManager(host string, port int) *ConnManager {
	return &ConnManager{
		Addr:            net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		DialTimeout:     5 * time.Second,
		ReadIdle:        500 * time.Millisecond,
		MaxIdleAttempts: 60, // ~30s of silence
	}
}

// IsReady probes the gateway with a throwaway connection.
func (m *ConnManager) IsReady() bool {
	conn, err := net.DialTimeout("tcp", m.Addr, m.DialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// OpenSession dials the gateway and negotiates the protocol version. The
// caller owns the returned connection and must close it via CloseSession.
func (m *ConnManager) OpenSession() (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", m.Addr, m.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", m.Addr, err)
	}

	if _, err := conn.Write([]byte(protocolCommand)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set protocol: %w", err)
	}

	// Consume the protocol ack so it does not pollute the first response.
	buf := make([]byte, 1024)
	conn.SetReadDeadline(time.Now().Add(m.ReadIdle * 4))
	if n, err := conn.Read(buf); err == nil {
		log.Printf("[INFO] protocol response: %s", strings.TrimSpace(string(buf[:n])))
	}
	conn.SetReadDeadline(time.Time{})

	return conn, nil
}

// Send writes one command to the session.
func (m *ConnManager) Send(conn net.Conn, command string) bool {
	if _, err := conn.Write([]byte(command)); err != nil {
		log.Printf("[ERROR] send command: %v", err)
		return false
	}
	return true
}

// ReadUntilEnd accumulates response text until the terminal marker arrives.
// It polls with a per-attempt read deadline and gives up after
// MaxIdleAttempts consecutive quiet attempts or a closed connection,
// returning whatever accumulated (empty string if nothing arrived).
func (m *ConnManager) ReadUntilEnd(conn net.Conn) string {
	var response strings.Builder
	buf := make([]byte, 4096)
	attempts := 0

	for attempts < m.MaxIdleAttempts {
		conn.SetReadDeadline(time.Now().Add(m.ReadIdle))
		n, err := conn.Read(buf)
		if n > 0 {
			response.Write(buf[:n])
			if strings.Contains(response.String(), endMarker) {
				return response.String()
			}
			attempts = 0
			continue
		}
		if err == nil {
			continue
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			attempts++
			continue
		}
		// EOF or a hard error; return what we have.
		log.Printf("[WARN] read ended: %v", err)
		return response.String()
	}

	log.Printf("[ERROR] timeout waiting for complete response (%d idle attempts)", m.MaxIdleAttempts)
	return response.String()
}

// CloseSession closes a session opened by OpenSession.
func (m *ConnManager) CloseSession(conn net.Conn) {
	if conn != nil {
		conn.Close()
	}
}
