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

// Package protocol provides the document model for federated objects.
//
// Documents are open JSON objects. The package reads the handful of fields
// the trust engine cares about and leaves everything else alone.
//
// # Documents
//
//	doc, err := protocol.Parse(body)
//	if err != nil {
//	    return err
//	}
//
//	doc.ID()     // "https://remote.example/notes/1"
//	doc.Type()   // canonical type, first element when "type" is an array
//	doc.Kind()   // KindActivity, KindCollection, KindActor or KindGeneric
//
// # References
//
// Properties such as "object" or "inReplyTo" hold either a URI or an inline
// object, sometimes wrapped in a one-element array:
//
//	ref, err := protocol.FromValue(doc["object"])
//	if ref.IsInline() {
//	    obj := ref.Document()
//	}
//
// # Activities and Collections
//
//	act, err := doc.AsActivity()   // actor collapsed to one id, LD signature parsed
//	col, err := doc.AsCollection() // items/orderedItems, first, next
//
// # Actors and Keys
//
// ActorFromDocument extracts the actor identity and its RSA key:
//
//	actor, err := protocol.ActorFromDocument(doc)
//	if actor.PublicKey == nil {
//	    // fail closed
//	}
package protocol
