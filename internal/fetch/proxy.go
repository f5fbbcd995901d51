package fetch

import (
	"net/url"
	"strings"
)

// PrefixProxy rewrites request URLs through a relay prefix, the usual
// shape for a CORS proxy: prefix + url-encoded target. Hosts outside the
// allowlist pass through untouched; an empty allowlist matches every host.
type PrefixProxy struct {
	Prefix string
	Hosts  []string
}

// Resolve implements pipeline.ProxyResolver.
func (p *PrefixProxy) Resolve(raw string) string {
	if p == nil || p.Prefix == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if len(p.Hosts) > 0 && !p.allowed(u.Host) {
		return raw
	}
	return p.Prefix + url.QueryEscape(raw)
}

func (p *PrefixProxy) allowed(host string) bool {
	for _, h := range p.Hosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}
