package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile names the TLS ClientHello the fetch transport presents.
type Profile string

const (
	ProfileGo      Profile = "go" // standard crypto/tls
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileRandom  Profile = "random"
)

// ParseProfile maps a config value to a Profile. An empty value means ProfileGo.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProfileGo, nil
	case ProfileGo, ProfileChrome, ProfileFirefox, ProfileSafari, ProfileRandom:
		return p, nil
	default:
		return "", fmt.Errorf("unknown tls profile %q", s)
	}
}

func helloID(p Profile) (utls.ClientHelloID, error) {
	switch p {
	case ProfileChrome:
		return utls.HelloChrome_Auto, nil
	case ProfileFirefox:
		return utls.HelloFirefox_Auto, nil
	case ProfileSafari:
		return utls.HelloIOS_Auto, nil
	case ProfileRandom:
		return utls.HelloRandomizedNoALPN, nil
	default:
		return utls.ClientHelloID{}, fmt.Errorf("unknown tls profile %q", p)
	}
}

// Transport returns an http.RoundTripper presenting the given TLS profile.
// ProfileGo is a plain clone of http.DefaultTransport. A non-nil proxy
// replaces the environment proxy lookup.
//
// Browser presets advertise h2 in ALPN, but a custom DialTLSContext makes
// net/http speak HTTP/1.1, so ALPN is pinned to http/1.1 on the preset spec.
func Transport(p Profile, proxy func(*http.Request) (*url.URL, error)) (http.RoundTripper, error) {
	tr, err := newTransport(p, nil)
	if err != nil {
		return nil, err
	}
	if proxy != nil {
		tr.Proxy = proxy
	}
	return tr, nil
}

// newTransport builds the transport; base is copied for every handshake.
func newTransport(p Profile, base *utls.Config) (*http.Transport, error) {
	if base == nil {
		base = &utls.Config{}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if p == ProfileGo {
		return transport, nil
	}

	id, err := helloID(p)
	if err != nil {
		return nil, err
	}

	// Fail at construction rather than on the first dial.
	if _, err := helloSpec(p, id); err != nil {
		return nil, err
	}

	transport.ForceAttemptHTTP2 = false
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := transport.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		cfg := base.Clone()
		cfg.ServerName = host

		// Extensions carry per-handshake state, so each dial gets its own spec.
		spec, err := helloSpec(p, id)
		if err != nil {
			_ = tcpConn.Close()
			return nil, err
		}

		var uConn *utls.UConn
		if spec != nil {
			uConn = utls.UClient(tcpConn, cfg, utls.HelloCustom)
			if err := uConn.ApplyPreset(spec); err != nil {
				_ = tcpConn.Close()
				return nil, fmt.Errorf("apply %s preset: %w", p, err)
			}
		} else {
			uConn = utls.UClient(tcpConn, cfg, id)
		}

		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("utls handshake failed: %w", err)
		}
		return uConn, nil
	}

	return transport, nil
}

// helloSpec returns the preset for id with ALPN pinned to http/1.1. Randomized
// hellos have no fixed spec and already omit ALPN, so they return nil.
func helloSpec(p Profile, id utls.ClientHelloID) (*utls.ClientHelloSpec, error) {
	if p == ProfileRandom {
		return nil, nil
	}
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return nil, fmt.Errorf("build %s hello spec: %w", p, err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return &spec, nil
}
