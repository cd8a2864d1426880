package guard

// Guard is the federation policy consulted before any remote document or
// signer is trusted.
type Guard interface {
	// IsHostAllowed reports whether host may federate with this server.
	IsHostAllowed(host string) bool

	// IsSelfHost reports whether host is this server.
	IsSelfHost(host string) bool

	// RelatedHosts reports whether two hosts share a registrable domain,
	// which is the bound for trusting a redirect between them.
	RelatedHosts(a, b string) bool
}

// Mode selects how the host list is interpreted.
type Mode string

const (
	// ModeBlocklist federates with everyone except blocked hosts.
	ModeBlocklist Mode = "blocklist"

	// ModeAllowlist federates only with listed hosts.
	ModeAllowlist Mode = "allowlist"
)
