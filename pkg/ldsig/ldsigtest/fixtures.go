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

// Package ldsigtest provides JSON-LD fixtures for tests that must not
// reach the network.
package ldsigtest

import (
	"testing"

	"github.com/fedtrust/fedtrust/pkg/ldsig"
	"github.com/fedtrust/fedtrust/pkg/protocol"
)

// ActivityStreamsStub is a reduced activitystreams context defining only
// the terms used by test documents. Properties outside it are dropped by
// normalization.
const ActivityStreamsStub = `{
  "@context": {
    "as": "https://www.w3.org/ns/activitystreams#",
    "xsd": "http://www.w3.org/2001/XMLSchema#",
    "id": "@id",
    "type": "@type",
    "Create": "as:Create",
    "Note": "as:Note",
    "Person": "as:Person",
    "Public": "as:Public",
    "actor": {"@id": "as:actor", "@type": "@id"},
    "attributedTo": {"@id": "as:attributedTo", "@type": "@id"},
    "object": {"@id": "as:object", "@type": "@id"},
    "to": {"@id": "as:to", "@type": "@id"},
    "cc": {"@id": "as:cc", "@type": "@id"},
    "inReplyTo": {"@id": "as:inReplyTo", "@type": "@id"},
    "content": "as:content",
    "name": "as:name",
    "published": {"@id": "as:published", "@type": "xsd:dateTime"}
  }
}`

// Loader returns a ContextLoader that serves ActivityStreamsStub under the
// real activitystreams URL and never fetches.
func Loader(t testing.TB) *ldsig.ContextLoader {
	t.Helper()
	l, err := ldsig.NewContextLoader(nil)
	if err != nil {
		t.Fatalf("new context loader: %v", err)
	}
	if err := l.Preload(protocol.ActivityStreamsContext, []byte(ActivityStreamsStub)); err != nil {
		t.Fatalf("preload activitystreams: %v", err)
	}
	return l
}

// Processor returns a Processor over Loader.
func Processor(t testing.TB) *ldsig.Processor {
	t.Helper()
	return ldsig.NewProcessor(Loader(t))
}
