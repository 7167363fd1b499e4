// Package netutil opens the listener the HTTP server is served on.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
)

// ErrNoBindAddr is returned when neither the preferred address nor any
// candidate can be listened on.
var ErrNoBindAddr = errors.New("no available chartsync bind address")

// maxRangeSpan caps how many ports one "host:lo-hi" candidate expands to.
const maxRangeSpan = 256

// Listen opens a TCP listener on preferred, or on the first candidate that
// accepts one when autoFallback is set. The listener is returned open so no
// other process can take the port between selection and serving.
func Listen(preferred string, candidates []string, autoFallback bool) (net.Listener, error) {
	if preferred != "" {
		ln, err := net.Listen("tcp", preferred)
		if err == nil {
			return ln, nil
		}
		if !autoFallback {
			return nil, fmt.Errorf("%w: %s: %v (fallback disabled)", ErrNoBindAddr, preferred, err)
		}
		slog.Warn("preferred bind address busy", "addr", preferred, "error", err)
	}
	addrs, err := Expand(candidates)
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if addr == preferred {
			continue
		}
		if ln, err := net.Listen("tcp", addr); err == nil {
			return ln, nil
		}
	}
	return nil, fmt.Errorf("%w: tried %q and %d candidates", ErrNoBindAddr, preferred, len(addrs))
}

// Expand turns candidates into plain addresses. An entry may name a port
// range such as "127.0.0.1:8191-8195", which expands in ascending order.
func Expand(candidates []string) ([]string, error) {
	var out []string
	for _, c := range candidates {
		host, port, err := net.SplitHostPort(c)
		if err != nil {
			return nil, fmt.Errorf("netutil: candidate %q: %w", c, err)
		}
		loText, hiText, isRange := strings.Cut(port, "-")
		if !isRange {
			out = append(out, c)
			continue
		}
		lo, errLo := strconv.Atoi(loText)
		hi, errHi := strconv.Atoi(hiText)
		if errLo != nil || errHi != nil || lo < 1 || hi > 65535 || lo > hi || hi-lo >= maxRangeSpan {
			return nil, fmt.Errorf("netutil: candidate %q: bad port range", c)
		}
		for p := lo; p <= hi; p++ {
			out = append(out, net.JoinHostPort(host, strconv.Itoa(p)))
		}
	}
	return out, nil
}
