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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/resolver"
)

func resolveCmd() *cobra.Command {
	var (
		anonymous  bool
		thread     int
		collection int
	)

	cmd := &cobra.Command{
		Use:   "resolve <uri>",
		Short: "Resolve an object and print it",
		Long: `Resolve fetches the object at uri under the federation policy and prints the
verified document. --thread walks inReplyTo up to the given depth and
--collection lists up to the given number of collection items, both inside a
single resolution session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger, keyFile)
			if err != nil {
				return err
			}

			ref := protocol.URI(args[0])
			session := a.engine.NewSession()
			defer session.Close()

			var out any
			switch {
			case thread > 0:
				out, err = session.ResolveThread(ctx, ref, thread)
			case collection > 0:
				var items []protocol.ObjectReference
				items, err = session.CollectionItems(ctx, ref, collection)
				uris := make([]string, 0, len(items))
				for _, item := range items {
					uris = append(uris, item.URI())
				}
				out = uris
			default:
				var opts []resolver.ResolveOption
				if anonymous {
					opts = append(opts, resolver.AllowAnonymous())
				}
				out, err = session.Resolve(ctx, ref, opts...)
			}
			if err != nil {
				return describe(err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "allow documents without an id")
	cmd.Flags().IntVar(&thread, "thread", 0, "walk the reply chain up to this depth")
	cmd.Flags().IntVar(&collection, "collection", 0, "list up to this many collection items")
	return cmd
}

// describe adds the stable rejection reason to classified errors.
func describe(err error) error {
	if fe, ok := federr.As(err); ok {
		retry := "permanent"
		if fe.Retryable {
			retry = "retryable"
		}
		return fmt.Errorf("%s (%s, %s): %w", fe.Reason, fe.Kind, retry, err)
	}
	return err
}
