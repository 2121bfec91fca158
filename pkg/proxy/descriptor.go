// Package proxy resolves the Telegram connection proxy from the environment and
// turns it into a dialer.
package proxy

import (
	"net"
	"net/url"
	"strconv"
)

type Scheme string

const (
	SchemeHTTP   Scheme = "http"
	SchemeSOCKS4 Scheme = "socks4"
	SchemeSOCKS5 Scheme = "socks5"
)

// Descriptor is a normalized proxy endpoint. RemoteDNS asks the proxy to resolve
// target host names (socks4a, socks5h); otherwise they are resolved locally.
type Descriptor struct {
	Scheme    Scheme
	Host      string
	Port      int
	RemoteDNS bool
	Username  *string
	Password  *string
}

func (d *Descriptor) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// String renders the descriptor as a URL with the password redacted, for logs.
func (d *Descriptor) String() string {
	scheme := string(d.Scheme)
	if d.RemoteDNS {
		switch d.Scheme {
		case SchemeSOCKS5:
			scheme = "socks5h"
		case SchemeSOCKS4:
			scheme = "socks4a"
		}
	}
	u := url.URL{Scheme: scheme, Host: d.Addr()}
	if d.Username != nil {
		if d.Password != nil {
			u.User = url.UserPassword(*d.Username, "xxxxx")
		} else {
			u.User = url.User(*d.Username)
		}
	}
	return u.String()
}
