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

// Package fedtrust provides version information for fedtrust.
//
// The engine itself lives under pkg/: signer, resolver, verifier and guard
// are the entry points.
package fedtrust

import "github.com/fedtrust/fedtrust/pkg/version"

const (
	// Version is the current version of fedtrust
	Version = version.Version

	// LDSignatureSuite is the linked-data signature suite fedtrust verifies
	LDSignatureSuite = version.LDSignatureSuite
)

// GetVersionInfo returns detailed version information
func GetVersionInfo() version.Info {
	return version.Get()
}
