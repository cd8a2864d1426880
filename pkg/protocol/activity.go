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

package protocol

import (
	"fmt"
	"strconv"
)

// LDSignature is an embedded linked-data signature block.
type LDSignature struct {
	// Type is the signature suite, e.g. "RsaSignature2017"
	Type string `json:"type"`

	// Creator is the key id of the signing key
	Creator string `json:"creator"`

	// Created is the RFC 3339 creation timestamp
	Created string `json:"created"`

	// Nonce is optional
	Nonce string `json:"nonce,omitempty"`

	// Domain is optional
	Domain string `json:"domain,omitempty"`

	// SignatureValue is the base64 signature
	SignatureValue string `json:"signatureValue"`
}

// Activity is the typed view of an activity document.
type Activity struct {
	ID     string
	Type   string
	Actor  string
	Object ObjectReference
	Target *ObjectReference
	// Signature is nil when the activity carries no LD signature.
	Signature *LDSignature
}

// ActorID returns the single actor of an activity. An array collapses to its
// first element; a missing or empty actor is an error.
func (d Document) ActorID() (string, error) {
	v := d["actor"]
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return "", fmt.Errorf("activity actor is an empty array")
		}
		v = arr[0]
	}
	id := GetID(v)
	if id == "" {
		return "", fmt.Errorf("activity has no actor")
	}
	return id, nil
}

// LDSignature returns the embedded signature block, or nil.
func (d Document) LDSignature() *LDSignature {
	raw, ok := d["signature"].(map[string]any)
	if !ok {
		if doc, isDoc := d["signature"].(Document); isDoc {
			raw = doc
		} else {
			return nil
		}
	}
	sig := &LDSignature{}
	sig.Type, _ = raw["type"].(string)
	sig.Creator, _ = raw["creator"].(string)
	sig.Created, _ = raw["created"].(string)
	sig.Nonce, _ = raw["nonce"].(string)
	sig.Domain, _ = raw["domain"].(string)
	sig.SignatureValue, _ = raw["signatureValue"].(string)
	return sig
}

// Map returns the signature block as it appears on the wire.
func (s *LDSignature) Map() map[string]any {
	m := map[string]any{
		"type":           s.Type,
		"creator":        s.Creator,
		"created":        s.Created,
		"signatureValue": s.SignatureValue,
	}
	if s.Nonce != "" {
		m["nonce"] = s.Nonce
	}
	if s.Domain != "" {
		m["domain"] = s.Domain
	}
	return m
}

// AsActivity returns the typed activity view.
func (d Document) AsActivity() (*Activity, error) {
	if d.Kind() != KindActivity {
		return nil, fmt.Errorf("document type %q is not an activity", d.Type())
	}
	actor, err := d.ActorID()
	if err != nil {
		return nil, err
	}
	act := &Activity{
		ID:        d.ID(),
		Type:      d.Type(),
		Actor:     actor,
		Signature: d.LDSignature(),
	}
	if obj, ok := d["object"]; ok {
		ref, err := FromValue(obj)
		if err != nil {
			return nil, fmt.Errorf("activity object: %w", err)
		}
		act.Object = ref
	}
	if tgt, ok := d["target"]; ok && tgt != nil {
		ref, err := FromValue(tgt)
		if err != nil {
			return nil, fmt.Errorf("activity target: %w", err)
		}
		act.Target = &ref
	}
	return act, nil
}

// Collection is the typed view of a collection or collection page.
type Collection struct {
	ID         string
	Type       string
	Ordered    bool
	TotalItems int
	Items      []ObjectReference
	First      *ObjectReference
	Next       *ObjectReference
}

// AsCollection returns the typed collection view.
func (d Document) AsCollection() (*Collection, error) {
	if !d.IsCollection() {
		return nil, fmt.Errorf("document type %q is not a collection", d.Type())
	}
	t := d.Type()
	col := &Collection{
		ID:      d.ID(),
		Type:    t,
		Ordered: t == "OrderedCollection" || t == "OrderedCollectionPage",
	}
	switch n := d["totalItems"].(type) {
	case float64:
		col.TotalItems = int(n)
	case int:
		col.TotalItems = n
	case string:
		col.TotalItems, _ = strconv.Atoi(n)
	}

	key := "items"
	if col.Ordered {
		key = "orderedItems"
	}
	raw := d[key]
	if raw == nil {
		// Some servers put ordered items under "items" anyway.
		raw = d["items"]
	}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			ref, err := FromValue(item)
			if err != nil {
				continue
			}
			col.Items = append(col.Items, ref)
		}
	case nil:
	default:
		if ref, err := FromValue(v); err == nil {
			col.Items = append(col.Items, ref)
		}
	}

	if ref, err := FromValue(d["first"]); err == nil {
		col.First = &ref
	}
	if ref, err := FromValue(d["next"]); err == nil {
		col.Next = &ref
	}
	return col, nil
}
