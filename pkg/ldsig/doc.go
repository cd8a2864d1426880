// Package ldsig implements RsaSignature2017 linked-data signatures.
//
// A linked-data signature covers the URDNA2015 normalization of a JSON-LD
// document rather than its bytes, so it survives relaying through servers
// that re-serialize the activity. The signed value is
//
//	hex(sha256(normalize(options))) + hex(sha256(normalize(document)))
//
// where options holds creator, created, and the optional nonce and domain
// under the identity/v1 context, and document is the activity without its
// signature property.
//
// Normalization only sees properties defined by the document's @context.
// Verify therefore says nothing about undefined properties; callers should
// continue with the Compact form of a verified document, which drops them.
//
// Contexts are resolved by a ContextLoader: security/v1 and identity/v1 are
// built in, everything else is fetched once and cached.
package ldsig
