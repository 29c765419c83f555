// Package security decides which credentials and identity headers travel
// with upstream calls. Every value it returns is built fresh per request.
package security

import (
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
)

const (
	HeaderImpUsername = "imp-username"
	HeaderImpRoles    = "imp-roles"
)

type Credentials struct {
	Username string
	Password string
}

func (c *Credentials) Valid() bool { return c != nil && c.Username != "" }

// Config is the trust configuration shared by the gate and the retriever.
type Config struct {
	SecuredHost string
	Admin       Credentials
	Timeout     time.Duration
}

// IsTrusted reports whether host is the configured secured host or a
// loopback address. It is the only place this rule lives.
func IsTrusted(host, securedHost string) bool {
	h := strings.TrimSpace(host)
	if h == "" {
		return false
	}
	if securedHost != "" && strings.EqualFold(h, strings.TrimSpace(securedHost)) {
		return true
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(h, "[]"))
	return ip != nil && ip.IsLoopback()
}

// HostOf returns the host of a service URL without its port.
func HostOf(serviceURL string) string {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// FetchOptions describes the extras attached to a capabilities fetch.
type FetchOptions struct {
	Headers map[string]string
	Basic   *Credentials
}

// CapabilitiesOptions builds the fetch options for a permission check. On a
// trusted host the caller identity is forwarded so the upstream filters its
// capabilities, and admin credentials are sent preemptively so the document
// can be read at all.
func CapabilitiesOptions(serviceURL, securedHost string, sec model.SecurityContext, admin Credentials) FetchOptions {
	if sec.Username == "" || !IsTrusted(HostOf(serviceURL), securedHost) {
		return FetchOptions{}
	}
	h := map[string]string{HeaderImpUsername: sec.Username}
	if roles := sec.RolesHeader(); roles != "" {
		h[HeaderImpRoles] = roles
	}
	basic := admin
	return FetchOptions{Headers: h, Basic: &basic}
}

// ConnectionParams configures the feature service connection.
type ConnectionParams struct {
	URL               string
	Lenient           bool
	ProtocolCompliant bool
	Timeout           time.Duration
	// 0 means unbounded
	MaxFeatures int
	Credentials *Credentials
}

const DefaultTimeout = 60 * time.Second

// ConnectionFor returns the connection used to read schema and features.
// Admin credentials are attached only for trusted hosts; access was already
// checked by the capabilities gate.
func ConnectionFor(req model.ExtractionRequest, cfg Config) ConnectionParams {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := ConnectionParams{
		URL:               req.ServiceURL,
		Lenient:           true,
		ProtocolCompliant: true,
		Timeout:           timeout,
		MaxFeatures:       0,
	}
	if IsTrusted(HostOf(req.ServiceURL), cfg.SecuredHost) && cfg.Admin.Valid() {
		creds := cfg.Admin
		p.Credentials = &creds
	}
	return p
}
