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

package ldsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/piprate/json-gold/ld"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/protocol"
)

// SuiteRsaSignature2017 is the only supported signature suite
const SuiteRsaSignature2017 = "RsaSignature2017"

// DefaultContext is what verified activities are compacted against
var DefaultContext = []any{protocol.ActivityStreamsContext, protocol.SecurityContext}

// Processor signs, verifies, normalizes, and compacts JSON-LD documents.
// It is safe for concurrent use.
type Processor struct {
	loader ld.DocumentLoader
	now    func() time.Time
}

// NewProcessor creates a processor resolving contexts through loader.
func NewProcessor(loader ld.DocumentLoader) *Processor {
	return &Processor{loader: loader, now: time.Now}
}

func (p *Processor) options(loader ld.DocumentLoader) *ld.JsonLdOptions {
	opts := ld.NewJsonLdOptions("")
	opts.DocumentLoader = loader
	return opts
}

// Normalize returns the URDNA2015 N-Quads of doc.
func (p *Processor) Normalize(doc map[string]any) (string, error) {
	rec := &recordingLoader{inner: p.loader}
	opts := p.options(rec)
	opts.Format = "application/n-quads"
	opts.Algorithm = "URDNA2015"

	out, err := ld.NewJsonLdProcessor().Normalize(doc, opts)
	if err != nil {
		return "", loaderError(rec, err)
	}
	s, ok := out.(string)
	if !ok {
		return "", federr.Permanent(federr.KindSignature, federr.ReasonNormalization, "normalization produced %T", out)
	}
	return s, nil
}

// Compact compacts doc against ctx. A nil ctx uses DefaultContext.
func (p *Processor) Compact(doc map[string]any, ctx any) (protocol.Document, error) {
	if ctx == nil {
		ctx = DefaultContext
	}
	rec := &recordingLoader{inner: p.loader}
	out, err := ld.NewJsonLdProcessor().Compact(doc, map[string]any{"@context": ctx}, p.options(rec))
	if err != nil {
		return nil, loaderError(rec, err)
	}
	return protocol.Document(out), nil
}

// Sign attaches an RsaSignature2017 block created by keyID to a copy of doc.
func (p *Processor) Sign(doc protocol.Document, keyID string, key *rsa.PrivateKey) (protocol.Document, error) {
	sig := &protocol.LDSignature{
		Type:    SuiteRsaSignature2017,
		Creator: keyID,
		Created: p.now().UTC().Format(time.RFC3339),
	}

	data, err := p.signingInput(doc, sig)
	if err != nil {
		return nil, err
	}
	hashed := sha256.Sum256(data)
	raw, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	if err != nil {
		return nil, federr.Permanent(federr.KindConfig, federr.ReasonInvalidKey, "failed to sign").Wrap(err)
	}
	sig.SignatureValue = base64.StdEncoding.EncodeToString(raw)

	out := doc.Clone()
	out["signature"] = sig.Map()
	return out, nil
}

// Verify checks the embedded RsaSignature2017 of doc against pub.
func (p *Processor) Verify(doc protocol.Document, pub crypto.PublicKey) error {
	sig := doc.LDSignature()
	if sig == nil {
		return federr.Permanent(federr.KindSignature, federr.ReasonSignatureMissing, "document has no signature")
	}
	if sig.Type != SuiteRsaSignature2017 {
		return federr.Permanent(federr.KindSignature, federr.ReasonUnsupportedSuite, "unsupported signature suite %q", sig.Type)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return federr.Permanent(federr.KindSignature, federr.ReasonInvalidKey, "key is %T, not RSA", pub)
	}
	raw, err := base64.StdEncoding.DecodeString(sig.SignatureValue)
	if err != nil {
		return federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "signature is not base64").Wrap(err)
	}

	data, err := p.signingInput(doc, sig)
	if err != nil {
		return err
	}
	hashed := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, hashed[:], raw); err != nil {
		return federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "LD signature does not verify").Wrap(err)
	}
	return nil
}

// signingInput is hex(sha256(normalized options)) followed by
// hex(sha256(normalized document without its signature)).
func (p *Processor) signingInput(doc protocol.Document, sig *protocol.LDSignature) ([]byte, error) {
	options := map[string]any{
		"@context": protocol.IdentityContext,
		"creator":  sig.Creator,
		"created":  sig.Created,
	}
	if sig.Nonce != "" {
		options["nonce"] = sig.Nonce
	}
	if sig.Domain != "" {
		options["domain"] = sig.Domain
	}
	optionsHash, err := p.hash(options)
	if err != nil {
		return nil, err
	}

	body, err := doc.Generic()
	if err != nil {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidResponse, "document is not JSON").Wrap(err)
	}
	delete(body, "signature")
	docHash, err := p.hash(body)
	if err != nil {
		return nil, err
	}
	return []byte(optionsHash + docHash), nil
}

func (p *Processor) hash(doc map[string]any) (string, error) {
	nq, err := p.Normalize(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(nq))
	return hex.EncodeToString(sum[:]), nil
}

// loaderError prefers the classified loader failure behind a json-gold error
// so that an unreachable context server stays retryable.
func loaderError(rec *recordingLoader, err error) error {
	if rec.err != nil {
		if federr.IsClassified(rec.err) {
			return rec.err
		}
		return federr.Retryable(federr.KindTransport, federr.ReasonFetchFailed, "context load failed").Wrap(rec.err)
	}
	return federr.Permanent(federr.KindSignature, federr.ReasonNormalization, "JSON-LD processing failed").Wrap(err)
}
