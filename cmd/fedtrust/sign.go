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
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fedtrust/fedtrust/pkg/signer"
)

func signCmd() *cobra.Command {
	var (
		bodyFile string
		keyID    string
		headers  []string
		deliver  bool
	)

	cmd := &cobra.Command{
		Use:   "sign <url>",
		Short: "Sign a request and print its headers",
		Long: `Sign prints the signing string and the headers of a signed GET, or of a signed
POST when --body is given. With --deliver the POST is sent to url as an inbox
delivery.

The key is --key, or the instance actor key when --key is not set.`,
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

			key, err := a.instance.Key(ctx)
			if err != nil {
				return err
			}
			if keyID != "" {
				key = &signer.PrivateKeyMaterial{KeyID: keyID, PrivateKeyPEM: key.PrivateKeyPEM}
			}

			extra := make(map[string]string, len(headers))
			for _, h := range headers {
				name, value, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("header %q is not name:value", h)
				}
				extra[strings.TrimSpace(name)] = strings.TrimSpace(value)
			}

			rs := signer.NewDefaultRequestSigner()
			var signed *signer.SignedRequest
			if bodyFile == "" {
				if deliver {
					return errors.New("--deliver needs --body")
				}
				signed, err = rs.SignGet(key, args[0], extra)
			} else {
				body, readErr := os.ReadFile(bodyFile)
				if readErr != nil {
					return fmt.Errorf("failed to read body: %w", readErr)
				}
				if deliver {
					if err := a.client.Post(ctx, args[0], body, key); err != nil {
						return describe(err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "delivered to %s\n", args[0])
					return nil
				}
				signed, err = rs.SignPost(key, args[0], body, extra, "")
			}
			if err != nil {
				return describe(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n\n", signed.Method, signed.URL)
			fmt.Fprintf(out, "Signing string:\n%s\n\n", signed.SigningString)
			hdrs := signed.Header()
			names := make([]string, 0, len(hdrs))
			for name := range hdrs {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "%s: %s\n", name, hdrs.Get(name))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bodyFile, "body", "", "sign a POST with this body")
	cmd.Flags().StringVar(&keyID, "key-id", "", "publish the signature under this keyId")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header as name:value")
	cmd.Flags().BoolVar(&deliver, "deliver", false, "send the signed POST")
	return cmd
}
