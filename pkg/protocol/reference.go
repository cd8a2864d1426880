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

import "fmt"

// ObjectReference is either an inline Document or a URI to dereference.
type ObjectReference struct {
	uri string
	doc Document
}

// URI references a document by id.
func URI(uri string) ObjectReference {
	return ObjectReference{uri: uri}
}

// Inline wraps an already available document.
func Inline(doc Document) ObjectReference {
	return ObjectReference{doc: doc}
}

// FromValue normalizes a raw JSON value into a reference. A one-element
// array is unwrapped first.
func FromValue(v any) (ObjectReference, error) {
	v = unwrapTuple(v)
	switch t := v.(type) {
	case string:
		if t == "" {
			return ObjectReference{}, fmt.Errorf("empty object reference")
		}
		return URI(t), nil
	case map[string]any:
		return Inline(Document(t)), nil
	case Document:
		return Inline(t), nil
	case []any:
		return ObjectReference{}, fmt.Errorf("object reference is an array of %d elements", len(t))
	case nil:
		return ObjectReference{}, fmt.Errorf("object reference is null")
	default:
		return ObjectReference{}, fmt.Errorf("unsupported object reference type %T", v)
	}
}

// IsInline reports whether the reference carries its document.
func (r ObjectReference) IsInline() bool {
	return r.doc != nil
}

// IsZero reports whether the reference is empty.
func (r ObjectReference) IsZero() bool {
	return r.doc == nil && r.uri == ""
}

// URI returns the referenced id; for inline references it is the document id.
func (r ObjectReference) URI() string {
	if r.doc != nil {
		return r.doc.ID()
	}
	return r.uri
}

// Document returns the inline document, nil for URI references.
func (r ObjectReference) Document() Document {
	return r.doc
}

func (r ObjectReference) String() string {
	if r.doc != nil {
		return fmt.Sprintf("inline(%s %s)", r.doc.Type(), r.doc.ID())
	}
	return r.uri
}
