// Package guard decides which hosts may federate with this server.
//
// The guard is consulted twice per remote document: once for the host that
// was requested and once for the host the document claims to live on after
// redirects. Inbound activities are gated on the signer's host.
//
//	g := guard.NewDefaultGuard(guard.Options{
//	    SelfHost:     "self.example",
//	    BlockedHosts: []string{"spam.example"},
//	})
//
//	host, err := guard.ExtractHost("https://Remote.Example/notes/1") // "remote.example"
//	if err != nil || !g.IsHostAllowed(host) {
//	    // reject
//	}
//
// Redirects are trusted only between hosts with the same registrable domain
// (eTLD+1 from the public suffix list, with extra special suffixes for
// multi-tenant hosting providers):
//
//	g.RelatedHosts("a.example.com", "cdn.example.com") // true
//	g.RelatedHosts("a.example", "b.evil")              // false
package guard
