package proxy

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/roboricindustries/raycon-tglistener/pkg/faults"
)

// EnvProxy is the explicit override. When defined, even as "", it wins over the generic variables.
const EnvProxy = "TG_PROXY"

// GenericEnv is the fallback chain, first non-empty wins.
var GenericEnv = []string{"ALL_PROXY", "all_proxy", "HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"}

// Resolve picks the proxy for the Telegram transport. A nil descriptor means a direct connection.
func Resolve(lookup func(string) (string, bool)) (*Descriptor, error) {
	if raw, ok := lookup(EnvProxy); ok {
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		d, err := Parse(raw)
		if err != nil {
			return nil, withKey(err, EnvProxy)
		}
		return d, nil
	}
	for _, key := range GenericEnv {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		d, err := Parse(raw)
		if err != nil {
			return nil, withKey(err, key)
		}
		return d, nil
	}
	return nil, nil
}

// Parse accepts scheme://[user[:pass]@]host:port or a bare host:port (http).
func Parse(raw string) (*Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, faults.Config("", "empty proxy url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, faults.Config("", "malformed proxy url: "+err.Error())
	}

	d := &Descriptor{}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		d.Scheme = SchemeHTTP
	case "socks5":
		d.Scheme = SchemeSOCKS5
	case "socks5h":
		d.Scheme, d.RemoteDNS = SchemeSOCKS5, true
	case "socks4":
		d.Scheme = SchemeSOCKS4
	case "socks4a":
		d.Scheme, d.RemoteDNS = SchemeSOCKS4, true
	default:
		return nil, faults.Config("", "unsupported proxy scheme "+strconv.Quote(u.Scheme))
	}

	d.Host = u.Hostname()
	if d.Host == "" {
		return nil, faults.Config("", "proxy host is missing")
	}
	portStr := u.Port()
	if portStr == "" {
		return nil, faults.Config("", "proxy port is missing")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, faults.Config("", "invalid proxy port "+strconv.Quote(portStr))
	}
	d.Port = port

	if u.User != nil {
		if name := u.User.Username(); name != "" {
			d.Username = &name
		}
		if pw, ok := u.User.Password(); ok {
			d.Password = &pw
		}
	}
	return d, nil
}

func withKey(err error, key string) error {
	if ce, ok := err.(*faults.ConfigError); ok {
		return &faults.ConfigError{Key: key, Reason: ce.Reason}
	}
	return err
}
