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

package server

import (
	"net/http"

	"github.com/fedtrust/fedtrust/pkg/metrics"
)

// InboxPath is where the shared inbox is mounted.
const InboxPath = "/inbox"

// NewMux mounts the inbox and, when m is set, the metrics endpoint.
func NewMux(inbox http.Handler, m *metrics.Collectors) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(InboxPath, inbox)
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
