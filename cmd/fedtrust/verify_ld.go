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
	"crypto"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fedtrust/fedtrust/pkg/guard"
	"github.com/fedtrust/fedtrust/pkg/ldsig"
	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/verifier"
)

func verifyLDCmd() *cobra.Command {
	var publicKeyFile string

	cmd := &cobra.Command{
		Use:   "verify-ld <file>",
		Short: "Verify the RsaSignature2017 of a document",
		Long: `Verify-ld checks the linked-data signature embedded in the JSON document in
file and prints the document as the signature covers it. The creator's key is
fetched unless --public-key is given.`,
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

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			doc, err := protocol.Parse(data)
			if err != nil {
				return err
			}
			sig := doc.LDSignature()
			if sig == nil {
				return errors.New("document has no signature")
			}

			var pub crypto.PublicKey
			if publicKeyFile != "" {
				pemData, err := os.ReadFile(publicKeyFile)
				if err != nil {
					return fmt.Errorf("failed to read public key: %w", err)
				}
				if pub, err = protocol.ParsePublicKeyPEM(string(pemData)); err != nil {
					return err
				}
			} else {
				host, err := guard.ExtractHost(sig.Creator)
				if err != nil {
					return describe(err)
				}
				if !a.guard.IsHostAllowed(host) {
					return fmt.Errorf("creator host %s is not allowed", host)
				}
				actor, err := a.actors.FindByActorID(ctx, verifier.KeyOwner(sig.Creator))
				if err != nil {
					return describe(err)
				}
				if actor.PublicKey == nil || actor.PublicKey.KeyID != sig.Creator {
					return fmt.Errorf("actor does not publish key %s", sig.Creator)
				}
				pub = actor.PublicKey.Key
			}

			if err := a.processor.Verify(doc, pub); err != nil {
				return describe(err)
			}
			generic, err := doc.Generic()
			if err != nil {
				return err
			}
			compacted, err := a.processor.Compact(generic, ldsig.DefaultContext)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "signature by %s is valid\n", sig.Creator)
			return printJSON(cmd.OutOrStdout(), compacted)
		},
	}

	cmd.Flags().StringVar(&publicKeyFile, "public-key", "", "verify offline with this PEM public key")
	return cmd
}
