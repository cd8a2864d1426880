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
	"encoding/json"
	"fmt"
)

const (
	// ActivityStreamsContext is the protocol's core JSON-LD namespace.
	ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"

	// SecurityContext defines publicKey, signature and friends.
	SecurityContext = "https://w3id.org/security/v1"

	// IdentityContext is the context used for LD-signature options.
	IdentityContext = "https://w3id.org/identity/v1"

	// PublicCollection is the special "everyone" address.
	PublicCollection = "https://www.w3.org/ns/activitystreams#Public"

	// ContentTypeActivity is the preferred media type for protocol documents.
	ContentTypeActivity = "application/activity+json"

	// ContentTypeLD is the JSON-LD media type with the activitystreams profile.
	ContentTypeLD = `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`

	// AcceptHeader is sent on every fetch of a protocol document.
	AcceptHeader = ContentTypeActivity + ", " + ContentTypeLD
)

// Kind is the tagged variant of a Document.
type Kind int

const (
	KindGeneric Kind = iota
	KindActivity
	KindCollection
	KindActor
)

func (k Kind) String() string {
	switch k {
	case KindActivity:
		return "activity"
	case KindCollection:
		return "collection"
	case KindActor:
		return "actor"
	default:
		return "generic"
	}
}

var activityTypes = map[string]bool{
	"Accept": true, "Add": true, "Announce": true, "Arrive": true, "Block": true,
	"Create": true, "Delete": true, "Dislike": true, "EmojiReact": true, "Flag": true,
	"Follow": true, "Ignore": true, "Invite": true, "Join": true, "Leave": true,
	"Like": true, "Listen": true, "Move": true, "Offer": true, "Read": true,
	"Reject": true, "Remove": true, "TentativeAccept": true, "TentativeReject": true,
	"Travel": true, "Undo": true, "Update": true, "View": true,
}

var collectionTypes = map[string]bool{
	"Collection": true, "OrderedCollection": true,
	"CollectionPage": true, "OrderedCollectionPage": true,
}

var actorTypes = map[string]bool{
	"Application": true, "Group": true, "Organization": true, "Person": true, "Service": true,
}

// Document is an open protocol object. Known fields are read through
// accessors; everything else stays in the map untouched.
type Document map[string]any

// Parse decodes a JSON object into a Document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document is not a JSON object")
	}
	return doc, nil
}

// ID returns the document id, or "" when missing or not a string.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// SetID overwrites the document id.
func (d Document) SetID(id string) {
	d["id"] = id
}

// Types returns every declared type.
func (d Document) Types() []string {
	switch v := d["type"].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}

// Type returns the canonical type: the first element when type is an array.
func (d Document) Type() string {
	types := d.Types()
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

// Kind classifies the document by its canonical type.
func (d Document) Kind() Kind {
	t := d.Type()
	switch {
	case activityTypes[t]:
		return KindActivity
	case collectionTypes[t]:
		return KindCollection
	case actorTypes[t]:
		return KindActor
	default:
		return KindGeneric
	}
}

// IsCollection reports whether the document is any collection or collection page.
func (d Document) IsCollection() bool {
	return d.Kind() == KindCollection
}

// Str returns a string field or "".
func (d Document) Str(key string) string {
	s, _ := d[key].(string)
	return s
}

// Contexts returns @context as a list regardless of its wire shape.
func (d Document) Contexts() []any {
	switch v := d["@context"].(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

// HasContext reports whether @context names ns, either as the bare string
// value or as a string member of the array.
func (d Document) HasContext(ns string) bool {
	for _, c := range d.Contexts() {
		if s, ok := c.(string); ok && s == ns {
			return true
		}
	}
	return false
}

// Clone returns a deep copy made of plain JSON values.
func (d Document) Clone() Document {
	out, err := d.Generic()
	if err != nil {
		// Non-JSON values only get in via programmer error.
		panic(fmt.Sprintf("protocol: document is not JSON-encodable: %v", err))
	}
	return Document(out)
}

// Generic returns a deep copy as map[string]any with only plain JSON value
// types nested inside, which is what JSON-LD processors expect.
func (d Document) Generic() (map[string]any, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return out, nil
}

// GetID extracts an id from a value that is a URI string, an object with an
// id, or a one-element array of either.
func GetID(v any) string {
	v = unwrapTuple(v)
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		id, _ := t["id"].(string)
		return id
	case Document:
		return t.ID()
	}
	return ""
}

// GetIDs extracts ids from a scalar or array value.
func GetIDs(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if id := GetID(e); id != "" {
				out = append(out, id)
			}
		}
		return out
	default:
		if id := GetID(t); id != "" {
			return []string{id}
		}
	}
	return nil
}

func unwrapTuple(v any) any {
	if arr, ok := v.([]any); ok && len(arr) == 1 {
		return arr[0]
	}
	return v
}
