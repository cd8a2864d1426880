// Copyright (C) 2026 fedtrust authors
//
// This file is part of fedtrust.
//
// fedtrust is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// fedtrust is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with fedtrust.  If not, see <https://www.gnu.org/licenses/>.

package guard

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	"github.com/fedtrust/fedtrust/pkg/federr"
)

// DefaultSpecialSuffixes are hosting providers that hand out subdomains to
// unrelated tenants but are missing from the public suffix list.
var DefaultSpecialSuffixes = []string{"masto.host"}

// Options configures a DefaultGuard.
type Options struct {
	// SelfHost is this server's host (with port when non-default).
	SelfHost string

	// Mode is ModeBlocklist unless set.
	Mode Mode

	// AllowedHosts is consulted in ModeAllowlist.
	AllowedHosts []string

	// BlockedHosts is consulted in both modes.
	BlockedHosts []string

	// SpecialSuffixes are treated as public suffixes.
	SpecialSuffixes []string
}

// DefaultGuard implements Guard over static host lists. It is immutable and
// safe for concurrent use.
type DefaultGuard struct {
	self            string
	mode            Mode
	allowed         []string
	blocked         []string
	specialSuffixes []string
}

// NewDefaultGuard creates a guard. Host entries are normalized the same way
// as request hosts so that IDN spellings match.
func NewDefaultGuard(opts Options) *DefaultGuard {
	mode := opts.Mode
	if mode == "" {
		mode = ModeBlocklist
	}
	suffixes := opts.SpecialSuffixes
	if suffixes == nil {
		suffixes = DefaultSpecialSuffixes
	}
	return &DefaultGuard{
		self:            normalizeEntry(opts.SelfHost),
		mode:            mode,
		allowed:         normalizeEntries(opts.AllowedHosts),
		blocked:         normalizeEntries(opts.BlockedHosts),
		specialSuffixes: normalizeEntries(suffixes),
	}
}

// IsSelfHost reports whether host is this server.
func (g *DefaultGuard) IsSelfHost(host string) bool {
	return g.self != "" && normalizeEntry(host) == g.self
}

// IsHostAllowed applies the block list, then the allow list in allow-list
// mode. The local host is always allowed.
func (g *DefaultGuard) IsHostAllowed(host string) bool {
	host = normalizeEntry(host)
	if host == "" {
		return false
	}
	if host == g.self {
		return true
	}
	if matchesAny(host, g.blocked) {
		return false
	}
	if g.mode == ModeAllowlist {
		return matchesAny(host, g.allowed)
	}
	return true
}

// RelatedHosts reports whether a and b share a registrable domain and port.
func (g *DefaultGuard) RelatedHosts(a, b string) bool {
	ra, err := g.RegistrableDomain(a)
	if err != nil {
		return false
	}
	rb, err := g.RegistrableDomain(b)
	if err != nil {
		return false
	}
	return ra == rb
}

// RegistrableDomain returns the eTLD+1 of host, keeping any port. Special
// suffixes act as public suffixes. Hosts that are IP literals or have no
// public suffix are returned as is.
func (g *DefaultGuard) RegistrableDomain(host string) (string, error) {
	host = normalizeEntry(host)
	if host == "" {
		return "", federr.Permanent(federr.KindMalformed, federr.ReasonInvalidHost, "empty host")
	}
	name, port := splitPort(host)

	domain := ""
	for _, suffix := range g.specialSuffixes {
		if strings.HasSuffix(name, "."+suffix) {
			rest := strings.TrimSuffix(name, "."+suffix)
			labels := strings.Split(rest, ".")
			domain = labels[len(labels)-1] + "." + suffix
			break
		}
	}
	if domain == "" {
		if net.ParseIP(strings.Trim(name, "[]")) != nil {
			domain = name
		} else if d, err := publicsuffix.EffectiveTLDPlusOne(name); err == nil {
			domain = d
		} else {
			domain = name
		}
	}
	if port != "" {
		return domain + ":" + port, nil
	}
	return domain, nil
}

// ExtractHost returns the IDNA-normalized, lower-case host of uri including
// a non-default port. Failure is always a permanent error.
func ExtractHost(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", federr.Permanent(federr.KindMalformed, federr.ReasonInvalidHost, "unparsable uri %q", uri).Wrap(err)
	}
	if u.Host == "" {
		return "", federr.Permanent(federr.KindMalformed, federr.ReasonInvalidHost, "uri %q has no host", uri)
	}
	name := u.Hostname()
	if ip := net.ParseIP(name); ip != nil {
		name = ip.String()
		if ip.To4() == nil {
			name = "[" + name + "]"
		}
	} else {
		name, err = idna.Lookup.ToASCII(name)
		if err != nil {
			return "", federr.Permanent(federr.KindMalformed, federr.ReasonInvalidHost, "invalid host in %q", uri).Wrap(err)
		}
		name = strings.ToLower(name)
	}
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		return name + ":" + port, nil
	}
	return name, nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "https" && port == "443") || (scheme == "http" && port == "80")
}

func splitPort(host string) (string, string) {
	if strings.HasPrefix(host, "[") {
		end := strings.Index(host, "]")
		if end > 0 && end+1 < len(host) && host[end+1] == ':' {
			return host[:end+1], host[end+2:]
		}
		return host, ""
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		return host[:i], host[i+1:]
	}
	return host, ""
}

func normalizeEntry(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return ""
	}
	name, port := splitPort(host)
	if !strings.HasPrefix(name, "[") {
		if ascii, err := idna.Lookup.ToASCII(name); err == nil {
			name = strings.ToLower(ascii)
		}
	}
	if port != "" {
		return name + ":" + port
	}
	return name
}

func normalizeEntries(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if n := normalizeEntry(h); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// matchesAny matches host or any of its subdomains against the list.
func matchesAny(host string, list []string) bool {
	name, _ := splitPort(host)
	for _, entry := range list {
		if host == entry || name == entry || strings.HasSuffix(name, "."+entry) {
			return true
		}
	}
	return false
}
