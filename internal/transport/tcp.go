// Package transport implements the two transport collaborators spec
// section 6 describes as consumed, not built, by the protocol core: a
// TCP transport for BGP sessions and an L3 raw-socket transport for
// OSPF. internal/bgpsession and the OSPF engine in internal/agent depend
// only on the TCP/Stream and L3/L3Socket interfaces here, never on net.TCPConn or
// net.IPConn directly, so a TCP-AO-capable or test-double transport can
// be substituted without touching the protocol engines.
package transport

import (
	"context"
	"net"
	"strconv"
)

// Stream is a bidirectional byte stream, the shape spec section 6
// requires of the TCP transport's accept/connect results.
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	RemoteAddr() net.Addr
}

// TCP is the BGP session transport collaborator (spec section 6): no
// TLS, no MD5 — a hook for TCP-AO is left as an extension point on
// Listener/Dialer rather than implemented here.
type TCP interface {
	Listen(ctx context.Context, address string, port uint16) (Listener, error)
	Connect(ctx context.Context, address string, port uint16) (Stream, error)
}

// Listener accepts inbound BGP TCP connections.
type Listener interface {
	Accept(ctx context.Context) (Stream, error)
	Close() error
}

// NetTCP is the plain net-package implementation of TCP (spec section
// 6's transport collaborator, no TLS/MD5/TCP-AO).
type NetTCP struct {
	Dialer net.Dialer
}

func (NetTCP) Listen(ctx context.Context, address string, port uint16) (Listener, error) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(int(port))))
	if err != nil {
		return nil, err
	}
	return netListener{ln: ln}, nil
}

func (t NetTCP) Connect(ctx context.Context, address string, port uint16) (Stream, error) {
	conn, err := t.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(int(port))))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type netListener struct {
	ln net.Listener
}

func (l netListener) Accept(ctx context.Context) (Stream, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn: conn, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return r.conn, nil
	}
}

func (l netListener) Close() error { return l.ln.Close() }
