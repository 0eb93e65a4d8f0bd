package callback

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
)

// Address schemes understood by Listen and Dial. An address without a
// scheme is treated as TCP.
const (
	schemeTCP   = "tcp"
	schemeUnix  = "unix"
	schemeVsock = "vsock"
)

// Addr is a parsed callback endpoint.
type Addr struct {
	Network string
	Address string

	// CID and Port are set for vsock endpoints.
	CID  uint32
	Port uint32
}

func (a Addr) String() string {
	return a.Network + "://" + a.Address
}

// ParseAddr parses "tcp://host:port", "unix:///path/to.sock",
// "vsock://cid:port" or a bare "host:port".
func ParseAddr(s string) (Addr, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		scheme, rest = schemeTCP, s
	}
	if rest == "" {
		return Addr{}, fmt.Errorf("callback address %q: empty address", s)
	}

	switch scheme {
	case schemeTCP, schemeUnix:
		return Addr{Network: scheme, Address: rest}, nil
	case schemeVsock:
		cidStr, portStr, ok := strings.Cut(rest, ":")
		if !ok {
			return Addr{}, fmt.Errorf("callback address %q: vsock address must be cid:port", s)
		}
		cid, err := strconv.ParseUint(cidStr, 10, 32)
		if err != nil {
			return Addr{}, fmt.Errorf("callback address %q: invalid cid: %w", s, err)
		}
		port, err := strconv.ParseUint(portStr, 10, 32)
		if err != nil {
			return Addr{}, fmt.Errorf("callback address %q: invalid port: %w", s, err)
		}
		return Addr{Network: schemeVsock, Address: rest, CID: uint32(cid), Port: uint32(port)}, nil
	default:
		return Addr{}, fmt.Errorf("callback address %q: unsupported scheme %q", s, scheme)
	}
}

// Listen opens a listener for a Server at addr. For vsock the CID part is
// ignored; the listener binds the local context.
func Listen(addr string) (net.Listener, error) {
	a, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}
	if a.Network == schemeVsock {
		l, err := vsock.Listen(a.Port, nil)
		if err != nil {
			return nil, fmt.Errorf("vsock listen on port %d: %w", a.Port, err)
		}
		return l, nil
	}

	l, err := net.Listen(a.Network, a.Address)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", a, err)
	}
	return l, nil
}

func dialAddr(ctx context.Context, a Addr) (net.Conn, error) {
	if a.Network == schemeVsock {
		conn, err := vsock.Dial(a.CID, a.Port, nil)
		if err != nil {
			return nil, fmt.Errorf("vsock dial %d:%d: %w", a.CID, a.Port, err)
		}
		return conn, nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, a.Network, a.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", a, err)
	}
	return conn, nil
}
