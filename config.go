package niquests

import (
	"os"
	"time"

	utls "github.com/refraction-networking/utls"
	"gopkg.in/yaml.v3"
)

// SessionOptions configures a Session, yaml-tagged so it can be loaded
// straight from a config file via gopkg.in/yaml.v3.
type SessionOptions struct {
	// Multiplexed is loaded and stored but not read by the Session:
	// Session.Submit always goes through the Scheduler and Session.Do
	// never does, whatever its value.
	Multiplexed bool `yaml:"multiplexed"`

	// PoolConnections caps the number of distinct origins held open at
	// once; PoolMaxSize caps live connections per origin. Both default
	// to 10.
	PoolConnections int `yaml:"pool-connections"`
	PoolMaxSize     int `yaml:"pool-maxsize"`

	// Resolvers lists resolver descriptor URLs tried in order, e.g.
	// ["doh+cloudflare://", "do53://1.1.1.1"]. Empty means "use the
	// system resolver" (no pluggable resolution configured).
	Resolvers []string `yaml:"resolvers"`

	// CharsetAutoDetect defaults to on but is not read by the Session:
	// Response.Content, Text, IterLines and IterContent take the charset
	// toggle as an argument on each call.
	CharsetAutoDetect bool `yaml:"charset-auto-detect"`

	MaxBodySize int64 `yaml:"max-body-size"`

	RetryTimes     int   `yaml:"retry-times"`
	RetryHTTPCodes []int `yaml:"retry-http-codes"`

	Timeout time.Duration `yaml:"timeout"`

	// Redirects is the default RedirectPolicy for requests that don't
	// set their own.
	Redirects RedirectPolicy `yaml:"-"`

	// ClientHello selects a non-default TLS fingerprint; nil means
	// utls' HelloGolang default.
	ClientHello func() *utls.ClientHelloSpec `yaml:"-"`

	// TrustSystemRoots defaults to true but is not read when dialing;
	// setting it to false has no effect.
	TrustSystemRoots bool `yaml:"trust-system-roots"`

	// Proxies lists forward-proxy URLs tried in round-robin order for
	// every dial. Empty means "consult HTTP_PROXY/HTTPS_PROXY/NO_PROXY"
	// instead.
	Proxies []string `yaml:"proxies"`

	// Headers holds Session-wide default headers, merged under every
	// request's own headers (Session < request). prepare then sets Cookie
	// and, when an auth hint or .netrc entry resolves, Authorization over
	// both; Content-Type and Accept-Encoding are only filled in when
	// neither the request nor the Session sets them.
	Headers *Header `yaml:"-"`
}

// DefaultSessionOptions returns the zero-value-or-default SessionOptions
// every Session starts from absent an explicit config file.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		PoolConnections:   10,
		PoolMaxSize:       10,
		CharsetAutoDetect: true,
		MaxBodySize:       1 << 30,
		RetryTimes:        3,
		RetryHTTPCodes:    []int{500, 502, 503, 504, 408},
		Timeout:           time.Minute,
		Redirects:         DefaultRedirectPolicy(),
		TrustSystemRoots:  true,
	}
}

// LoadSessionOptions reads SessionOptions from a YAML file at path.
func LoadSessionOptions(path string) (SessionOptions, error) {
	opts := DefaultSessionOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, err
	}
	return opts, nil
}
