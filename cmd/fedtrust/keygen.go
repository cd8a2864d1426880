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
	"os"

	"github.com/spf13/cobra"

	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/signer"
)

func keygenCmd() *cobra.Command {
	var (
		out     string
		actorID string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA key pair",
		Long: `Keygen writes a new RSA private key to --out and prints the publicKey object
to embed in the actor document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := signer.GenerateKey()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, []byte(signer.EncodePrivateKeyPEM(key)), 0o600); err != nil {
				return fmt.Errorf("failed to write key: %w", err)
			}

			pemData, err := protocol.EncodePublicKeyPEM(&key.PublicKey)
			if err != nil {
				return err
			}
			if actorID == "" {
				fmt.Fprint(cmd.OutOrStdout(), pemData)
				return nil
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"publicKey": map[string]any{
					"id":           actorID + "#main-key",
					"owner":        actorID,
					"publicKeyPem": pemData,
				},
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "private.pem", "where to write the private key")
	cmd.Flags().StringVar(&actorID, "actor", "", "print the publicKey object for this actor")
	return cmd
}
