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

package resolver

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/protocol"
)

// localRoute is a parsed self-host URL.
type localRoute struct {
	kind    LocalKind
	id      string
	subpath string
}

// parseLocalPath maps a self-host path to the object it addresses.
func parseLocalPath(path string) (localRoute, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, p := range parts {
		if p == "" {
			return localRoute{}, false
		}
	}

	switch {
	case len(parts) == 2 && parts[0] == "notes":
		return localRoute{kind: LocalNote, id: parts[1]}, true
	case len(parts) == 3 && parts[0] == "notes" && parts[2] == "activity":
		return localRoute{kind: LocalNote, id: parts[1], subpath: "activity"}, true
	case len(parts) == 2 && parts[0] == "users":
		return localRoute{kind: LocalUser, id: parts[1]}, true
	case len(parts) == 2 && parts[0] == "questions":
		return localRoute{kind: LocalQuestion, id: parts[1]}, true
	case len(parts) == 2 && parts[0] == "likes":
		return localRoute{kind: LocalLike, id: parts[1]}, true
	case len(parts) == 3 && parts[0] == "follows":
		return localRoute{kind: LocalFollow, id: parts[1], subpath: parts[2]}, true
	case len(parts) == 2 && parts[0] == "announces":
		return localRoute{kind: LocalAnnounce, id: parts[1]}, true
	}
	return localRoute{}, false
}

func (e *Engine) resolveLocal(ctx context.Context, u *url.URL) (protocol.Document, error) {
	if e.local == nil {
		return nil, federr.Permanent(federr.KindNotFound, federr.ReasonNotFound, "no local store for %s", u)
	}
	route, ok := parseLocalPath(u.Path)
	if !ok {
		return nil, federr.Permanent(federr.KindNotFound, federr.ReasonNotFound, "unknown local path %s", u.Path)
	}

	doc, err := e.local.Render(ctx, route.kind, route.id, route.subpath)
	if errors.Is(err, ErrLocalNotFound) || (err == nil && doc == nil) {
		return nil, federr.Permanent(federr.KindNotFound, federr.ReasonNotFound, "local %s %s not found", route.kind, route.id)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}
