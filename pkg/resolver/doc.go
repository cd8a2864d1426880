// Package resolver turns object references into trusted documents.
//
// An Engine holds the shared collaborators; a Session is one top-level
// resolution with its own history. Every URI a session looks up is recorded
// and may not be looked up again, and the number of recorded URIs is capped
// (256 by default). Pass the session down through any nested lookups made on
// behalf of the same request so that reply loops and collection cycles end.
//
//	engine := resolver.NewEngine(client, guard,
//	    resolver.WithLocalStore(store),
//	    resolver.WithSignedFetch(instanceActor),
//	)
//
//	s := engine.NewSession()
//	defer s.Close()
//	note, err := s.Resolve(ctx, protocol.URI("https://remote.example/notes/1"))
//	author, err := s.Resolve(ctx, protocol.URI(note.Str("attributedTo")))
//
// Remote documents must carry the activitystreams @context and an id. The
// id, and the URL that finally served the document, must be on the host
// that was requested or share its registrable domain. Documents without an
// id are only accepted with AllowAnonymous.
//
// URLs on this server's own host are never fetched; they are rendered by
// the LocalObjectStore.
package resolver
