package workeradapter

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/meh/shumei/channel"
	"github.com/meh/shumei/wire"
)

// netPort frames wire Envelopes over a net.Conn as
// length-prefixed JSON, the Go stand-in for a SharedWorker's
// underlying postMessage transport crossing a real process boundary.
// Transferables do not survive this boundary (see channel.portCodec);
// only buffer-shaped payloads round-trip (as base64 JSON strings).
type netPort struct {
	conn  net.Conn
	extra channel.Extra

	wmu sync.Mutex

	closeOnce sync.Once
}

func newNetPort(conn net.Conn, extra channel.Extra) *netPort {
	return &netPort{conn: conn, extra: extra}
}

func (p *netPort) Send(env wire.Envelope) error {
	frame, err := channel.MarshalFramed(env, p.extra)
	if err != nil {
		return errors.Wrap(err, "netport: marshal")
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(frame)))
	if _, err := p.conn.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "netport: write header")
	}
	if _, err := p.conn.Write(frame); err != nil {
		return errors.Wrap(err, "netport: write frame")
	}
	return nil
}

func (p *netPort) Recv() (<-chan wire.Envelope, <-chan error) {
	out := make(chan wire.Envelope)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		for {
			var hdr [4]byte
			if _, err := io.ReadFull(p.conn, hdr[:]); err != nil {
				if err != io.EOF {
					errs <- err
				}
				return
			}
			n := binary.BigEndian.Uint32(hdr[:])
			buf := make([]byte, n)
			if _, err := io.ReadFull(p.conn, buf); err != nil {
				errs <- err
				return
			}
			env, err := channel.UnmarshalFramed(wire.Frame(buf))
			if err != nil {
				errs <- err
				return
			}
			out <- env
		}
	}()
	return out, errs
}

func (p *netPort) Close() error {
	var err error
	p.closeOnce.Do(func() { err = p.conn.Close() })
	return err
}

// Listener accepts shared-worker connections on a socket, given as a
// net.Listen network/address pair ("tcp", "host:port" or "unix",
// "/path/to.sock").
type Listener struct {
	ln net.Listener
	w  *wire.Wire
	e  channel.Extra
}

// ListenShared starts accepting shared-worker connections at network
// address addr of the given network ("tcp" or "unix").
func ListenShared(network, addr string, w *wire.Wire, extra channel.Extra) (*Listener, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "workeradapter: listen")
	}
	return &Listener{ln: ln, w: w, e: extra}, nil
}

// Accept blocks for the next shared-worker peer and returns a Channel
// bound to it.
func (l *Listener) Accept() (*channel.Channel, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, errors.Wrap(err, "workeradapter: accept")
	}
	ch := channel.New(newNetPort(conn, l.e), l.w, l.e)
	ch.Kind = "shared"
	return ch, nil
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Close() error { return l.ln.Close() }

// DialShared joins a shared worker previously started with
// ListenShared.
func DialShared(ctx context.Context, network, addr string, w *wire.Wire, extra channel.Extra) (*channel.Channel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "workeradapter: dial")
	}
	ch := channel.New(newNetPort(conn, extra), w, extra)
	ch.Kind = "shared"
	return ch, nil
}
