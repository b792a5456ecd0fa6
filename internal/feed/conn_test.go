package feed

import (
	"net"
	"strings"
	"testing"
	"time"
)

func testConnManager(addr string) *ConnManager {
	return &ConnManager{
		Addr:            addr,
		DialTimeout:     time.Second,
		ReadIdle:        50 * time.Millisecond,
		MaxIdleAttempts: 4,
	}
}

func TestReadUntilEnd_AccumulatesChunksToMarker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("HIST,LH,2024-01-02 09:30:00,101,99,100,100.5,1000\r\n"))
		time.Sleep(20 * time.Millisecond)
		conn.Write([]byte("HIST,LH,2024-01-02 09:15:00,99,97,98,98.5,900\r\n"))
		time.Sleep(20 * time.Millisecond)
		conn.Write([]byte("!ENDMSG!\r\n"))
	}()

	m := testConnManager(ln.Addr().String())
	conn, err := net.Dial("tcp", m.Addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	got := m.ReadUntilEnd(conn)
	if !strings.Contains(got, "!ENDMSG!") {
		t.Errorf("response missing end marker: %q", got)
	}
	if !strings.Contains(got, "09:15:00") {
		t.Errorf("response missing accumulated chunk: %q", got)
	}
}

func TestReadUntilEnd_TimesOutOnSilence(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Hold the connection open without writing anything.
		time.Sleep(2 * time.Second)
		conn.Close()
	}()

	m := testConnManager(ln.Addr().String())
	conn, err := net.Dial("tcp", m.Addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	start := time.Now()
	got := m.ReadUntilEnd(conn)
	if got != "" {
		t.Errorf("expected empty response on silent connection, got %q", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timed out too slowly: %v", elapsed)
	}
}

func TestOpenSession_NegotiatesProtocol(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
		conn.Write([]byte("S,CURRENT PROTOCOL,6.2\r\n"))
		time.Sleep(200 * time.Millisecond)
	}()

	m := testConnManager(ln.Addr().String())
	conn, err := m.OpenSession()
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer m.CloseSession(conn)

	select {
	case cmd := <-received:
		if cmd != "S,SET PROTOCOL,6.2\r\n" {
			t.Errorf("protocol command = %q", cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received protocol command")
	}
}

func TestIsReady(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	m := testConnManager(addr)
	if !m.IsReady() {
		t.Error("expected ready while listener is up")
	}

	ln.Close()
	if m.IsReady() {
		t.Error("expected not ready after listener closed")
	}
}
