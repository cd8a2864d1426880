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

// Package client provides signed fetch and delivery of protocol documents.
//
// # Basic Usage
//
//	c := client.New(transport.NewHTTPFetcher())
//
//	// Unsigned fetch
//	got, err := c.Get(ctx, "https://remote.example/notes/1", nil)
//
//	// Signed fetch (required by servers in secure mode)
//	got, err = c.Get(ctx, "https://remote.example/notes/1", key)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(got.FinalURL, got.Document.ID())
//
// # Delivery
//
//	err := c.Post(ctx, "https://remote.example/inbox", activityJSON, key)
//
// # Error Handling
//
// Every error is a *federr.Error. A 404 or 410 is permanent and satisfies
// federr.IsGone; 5xx, 408, 429 and network failures are retryable. A
// response that is not application/activity+json (or ld+json with the
// activitystreams profile) is rejected as malformed.
package client
