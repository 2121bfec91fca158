package proxy

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// ContextDialer is satisfied by *net.Dialer and every dialer returned here.
type ContextDialer = xproxy.ContextDialer

const defaultDialTimeout = 30 * time.Second

// NewDialer returns a dialer that tunnels through d. A nil d dials directly.
func NewDialer(d *Descriptor, forward *net.Dialer) (ContextDialer, error) {
	if forward == nil {
		forward = &net.Dialer{Timeout: defaultDialTimeout}
	}
	if d == nil {
		return forward, nil
	}

	switch d.Scheme {
	case SchemeSOCKS5:
		var auth *xproxy.Auth
		if d.Username != nil {
			auth = &xproxy.Auth{User: *d.Username}
			if d.Password != nil {
				auth.Password = *d.Password
			}
		}
		socks, err := xproxy.SOCKS5("tcp", d.Addr(), auth, forward)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		cd, ok := socks.(ContextDialer)
		if !ok {
			return nil, errors.New("socks5 dialer does not support contexts")
		}
		if d.RemoteDNS {
			return cd, nil
		}
		return &localResolver{next: cd}, nil

	case SchemeSOCKS4:
		s4 := &socks4Dialer{proxyAddr: d.Addr(), remoteDNS: d.RemoteDNS, forward: forward}
		if d.Username != nil {
			s4.user = *d.Username
		}
		return s4, nil

	case SchemeHTTP:
		hc := &connectDialer{proxyAddr: d.Addr(), forward: forward}
		if d.Username != nil {
			pw := ""
			if d.Password != nil {
				pw = *d.Password
			}
			hc.auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(*d.Username+":"+pw))
		}
		return hc, nil
	}
	return nil, fmt.Errorf("unsupported proxy scheme %q", d.Scheme)
}

// localResolver resolves the target host before handing an IP address to next.
type localResolver struct {
	next ContextDialer
}

func (r *localResolver) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	if net.ParseIP(host) == nil {
		addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", host, err)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("resolve %s: no addresses", host)
		}
		host = addrs[0].IP.String()
	}
	return r.next.DialContext(ctx, network, net.JoinHostPort(host, port))
}

// socks4Dialer speaks SOCKS4, or SOCKS4a when remoteDNS is set.
type socks4Dialer struct {
	proxyAddr string
	user      string
	remoteDNS bool
	forward   *net.Dialer
}

const (
	socks4Version = 4
	socks4Connect = 1
	socks4Granted = 90
)

func (s *socks4Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("socks4: invalid port %q", portStr)
	}

	req := make([]byte, 0, 16+len(s.user)+len(host))
	req = append(req, socks4Version, socks4Connect)
	req = binary.BigEndian.AppendUint16(req, uint16(port))

	var trailer []byte
	ip := net.ParseIP(host).To4()
	switch {
	case ip != nil:
	case s.remoteDNS:
		// 0.0.0.x with x != 0 tells a 4a server to read the host name after the user id.
		ip = net.IPv4(0, 0, 0, 1).To4()
		trailer = append([]byte(host), 0)
	default:
		ip, err = lookupIPv4(ctx, host)
		if err != nil {
			return nil, err
		}
	}
	req = append(req, ip...)
	req = append(req, s.user...)
	req = append(req, 0)
	req = append(req, trailer...)

	conn, err := s.forward.DialContext(ctx, network, s.proxyAddr)
	if err != nil {
		return nil, err
	}
	if err := s.handshake(ctx, conn, req); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (s *socks4Dialer) handshake(ctx context.Context, conn net.Conn, req []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("socks4: write request: %w", err)
	}
	var resp [8]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return fmt.Errorf("socks4: read reply: %w", err)
	}
	if resp[1] != socks4Granted {
		return fmt.Errorf("socks4: request rejected with code %d", resp[1])
	}
	return nil
}

func lookupIPv4(ctx context.Context, host string) (net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("socks4: %s has no IPv4 address", host)
}

// connectDialer tunnels through an HTTP proxy with CONNECT.
type connectDialer struct {
	proxyAddr string
	auth      string
	forward   *net.Dialer
}

func (h *connectDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := h.forward.DialContext(ctx, network, h.proxyAddr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: make(http.Header),
	}
	if h.auth != "" {
		req.Header.Set("Proxy-Authorization", h.auth)
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("http proxy: write CONNECT: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("http proxy: read response: %w", err)
	}
	// The tunnel follows the headers; the body is never read.
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("http proxy: CONNECT %s: %s", address, resp.Status)
	}
	_ = conn.SetDeadline(time.Time{})

	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }
