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

// Profile names a TLS ClientHello shape presented to servers.
type Profile string

const (
	ProfileGo      Profile = "go" // stdlib crypto/tls
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileRandom  Profile = "random"
)

var helloIDs = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
	ProfileRandom:  utls.HelloRandomizedNoALPN,
}

// ParseProfile validates a profile name. The empty string selects ProfileGo.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if p == "" || p == ProfileGo {
		return ProfileGo, nil
	}
	if _, ok := helloIDs[p]; !ok {
		return "", fmt.Errorf("unknown TLS profile %q", s)
	}
	return p, nil
}

// Transport returns a round tripper presenting profile p. ProfileGo yields a
// plain clone of http.DefaultTransport; every other profile replaces the TLS
// dial with a uTLS handshake that offers only http/1.1 in ALPN, since
// http.Transport cannot speak HTTP/2 over a *utls.UConn. RootCAs and
// InsecureSkipVerify of the returned transport's TLSClientConfig apply to
// the uTLS handshake as well. proxy, when non-nil, becomes the Proxy func.
//
// HTTPS requests sent through a proxy are tunnelled with CONNECT and use
// crypto/tls, so the profile only shapes direct connections.
func Transport(p Profile, proxy func(*http.Request) (*url.URL, error)) (http.RoundTripper, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != nil {
		base.Proxy = proxy
	}

	if p == ProfileGo || p == "" {
		return base, nil
	}

	id, ok := helloIDs[p]
	if !ok {
		return nil, fmt.Errorf("unknown TLS profile %q", p)
	}

	d := &dialer{tcp: base.DialContext, hello: id, transport: base}
	base.DialTLSContext = d.dialTLS
	return base, nil
}

type dialer struct {
	tcp       func(ctx context.Context, network, addr string) (net.Conn, error)
	hello     utls.ClientHelloID
	transport *http.Transport
}

func (d *dialer) config(host string) *utls.Config {
	cfg := &utls.Config{ServerName: host}
	if tc := d.transport.TLSClientConfig; tc != nil {
		cfg.RootCAs = tc.RootCAs
		cfg.InsecureSkipVerify = tc.InsecureSkipVerify
		if tc.ServerName != "" {
			cfg.ServerName = tc.ServerName
		}
	}
	return cfg
}

// client builds the uTLS connection. Parroted hellos are rebuilt from their
// spec with ALPN narrowed to http/1.1; randomized ones already omit ALPN.
func (d *dialer) client(conn net.Conn, cfg *utls.Config) (*utls.UConn, error) {
	if d.hello == utls.HelloRandomizedNoALPN {
		return utls.UClient(conn, cfg, d.hello), nil
	}

	spec, err := utls.UTLSIdToSpec(d.hello)
	if err != nil {
		return nil, fmt.Errorf("build %s hello: %w", d.hello.Str(), err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	uconn := utls.UClient(conn, cfg, utls.HelloCustom)
	if err := uconn.ApplyPreset(&spec); err != nil {
		return nil, fmt.Errorf("apply %s hello: %w", d.hello.Str(), err)
	}
	return uconn, nil
}

func (d *dialer) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.tcp(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	uconn, err := d.client(conn, d.config(host))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := uconn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("utls handshake with %s: %w", host, err)
	}
	return uconn, nil
}
