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

// Package version reports the fedtrust release and the protocol revisions it
// implements.
package version

import "fmt"

const (
	// Version is the current version of fedtrust
	Version = "0.3.0-dev"

	// SignatureDraft is the cavage HTTP signatures draft revision signed and verified
	SignatureDraft = "draft-cavage-http-signatures-12"

	// LDSignatureSuite is the only linked-data signature suite supported
	LDSignatureSuite = "RsaSignature2017"

	// CanonicalizationAlgorithm normalizes documents before LD signing
	CanonicalizationAlgorithm = "URDNA2015"
)

// Info contains detailed version information
type Info struct {
	Version                   string `json:"version"`
	SignatureDraft            string `json:"signatureDraft"`
	LDSignatureSuite          string `json:"ldSignatureSuite"`
	CanonicalizationAlgorithm string `json:"canonicalizationAlgorithm"`
}

// Get returns detailed version information
func Get() Info {
	return Info{
		Version:                   Version,
		SignatureDraft:            SignatureDraft,
		LDSignatureSuite:          LDSignatureSuite,
		CanonicalizationAlgorithm: CanonicalizationAlgorithm,
	}
}

// UserAgent is sent on every outbound request made on behalf of host.
func UserAgent(host string) string {
	if host == "" {
		return "fedtrust/" + Version
	}
	return fmt.Sprintf("fedtrust/%s (+https://%s/)", Version, host)
}
