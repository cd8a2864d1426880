// Package signer provides HTTP signature signing for outbound federation
// requests.
//
// This package implements draft-cavage HTTP signatures with rsa-sha256, the
// scheme every major ActivityPub server verifies.
//
// # Signing requests
//
// Use RequestSigner to sign a fetch or a delivery:
//
//	s := signer.NewDefaultRequestSigner()
//	key := &signer.PrivateKeyMaterial{
//	    KeyID:         "https://self.example/users/alice#main-key",
//	    PrivateKeyPEM: pemData,
//	}
//
//	req, err := s.SignGet(key, "https://remote.example/notes/1", nil)
//	if err != nil {
//	    return err
//	}
//	httpReq, _ := req.HTTPRequest(ctx)
//
// # Signed headers
//
// GET requests sign:
//
//	(request-target) date host accept
//
// POST requests sign:
//
//	(request-target) date host digest
//
// The Host header is part of the signature but is not transmitted; the
// transport sets it for the destination actually dialed.
//
// # Instance actor
//
// InstanceActor owns the server-wide key used for fetches made on behalf of
// no particular user. The key is created and saved on first use.
package signer
