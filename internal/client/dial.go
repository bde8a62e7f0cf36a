package client

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// dialFast resolves all IPs for addr and attempts parallel connections,
// returning the first to succeed. Adapted from the proxy's DialFast: a
// streaming client benefits from the same fastest-wins connect race when the
// server name resolves to multiple addresses (e.g. anycast ingress).
func dialFast(ctx context.Context, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return (&net.Dialer{Timeout: 3 * time.Second}).DialContext(ctx, "tcp", addr)
	}
	if ip, perr := netip.ParseAddr(host); perr == nil {
		target := net.JoinHostPort(ip.String(), port)
		return (&net.Dialer{Timeout: 3 * time.Second}).DialContext(ctx, "tcp", target)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	addrs, rerr := net.DefaultResolver.LookupIP(dialCtx, "ip", host)
	if rerr != nil || len(addrs) == 0 {
		return (&net.Dialer{Timeout: 3 * time.Second}).DialContext(ctx, "tcp", addr)
	}

	type result struct {
		c   net.Conn
		err error
	}
	resCh := make(chan result, 1)
	for i, ip := range addrs {
		go func(delay int, ip net.IP) {
			if delay > 0 {
				select {
				case <-time.After(time.Duration(delay) * 50 * time.Millisecond):
				case <-dialCtx.Done():
					return
				}
			}
			d := &net.Dialer{Timeout: 2 * time.Second}
			c, e := d.DialContext(dialCtx, "tcp", net.JoinHostPort(ip.String(), port))
			if e == nil {
				select {
				case resCh <- result{c: c}:
					cancel()
				default:
					_ = c.Close()
				}
			}
		}(i, ip)
	}
	select {
	case r := <-resCh:
		return r.c, r.err
	case <-dialCtx.Done():
		return (&net.Dialer{Timeout: 3 * time.Second}).DialContext(ctx, "tcp", addr)
	}
}
