package netutil

import (
	"errors"
	"net"
	"reflect"
	"testing"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func busyListener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen busy: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func TestListenPreferredFree(t *testing.T) {
	addr := freeAddr(t)
	ln, err := Listen(addr, nil, false)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer func() { _ = ln.Close() }()
	if got := ln.Addr().String(); got != addr {
		t.Fatalf("Listen() addr = %q, want %q", got, addr)
	}
}

func TestListenFallback(t *testing.T) {
	busy := busyListener(t).Addr().String()
	free := freeAddr(t)

	ln, err := Listen(busy, []string{busy, free}, true)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer func() { _ = ln.Close() }()
	if got := ln.Addr().String(); got != free {
		t.Fatalf("Listen() addr = %q, want %q", got, free)
	}
}

func TestListenNoFallback(t *testing.T) {
	busy := busyListener(t).Addr().String()
	_, err := Listen(busy, []string{"127.0.0.1:0"}, false)
	if !errors.Is(err, ErrNoBindAddr) {
		t.Fatalf("Listen() error = %v; want ErrNoBindAddr", err)
	}
}

func TestListenAllBusy(t *testing.T) {
	busy := busyListener(t).Addr().String()
	_, err := Listen(busy, []string{busy}, true)
	if !errors.Is(err, ErrNoBindAddr) {
		t.Fatalf("Listen() error = %v; want ErrNoBindAddr", err)
	}
}

func TestExpand(t *testing.T) {
	got, err := Expand([]string{"127.0.0.1:8191-8193", "[::1]:9000", "localhost:7000-7000"})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	want := []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193", "[::1]:9000", "localhost:7000"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expand() = %v; want %v", got, want)
	}

	for _, bad := range []string{"8191", "127.0.0.1:9-2", "127.0.0.1:0-5", "127.0.0.1:1-70000", "127.0.0.1:a-b", "127.0.0.1:1000-2000"} {
		if _, err := Expand([]string{bad}); err == nil {
			t.Fatalf("Expand(%q) error = nil", bad)
		}
	}
}
