// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"bufio"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docent-dev/docent/internal/config"
	"github.com/docent-dev/docent/internal/secrets"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. Tests substitute an in-memory
// implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: `Store, show, list and delete secrets kept under the docent service in the
operating system keyring. A provider name such as "openai" stands for its
API key ("openai-api-key").`,
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretGetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret, reading it from stdin unless --value is given",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
	cmd.Flags().String("value", "", "secret value (visible in shell history; prefer stdin)")
	return cmd
}

func newSecretGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a stored secret, masked unless --reveal is given",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretGet,
	}
	cmd.Flags().Bool("reveal", false, "print the full value")
	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

// secretKey maps a provider name to its API key entry; other names are
// used as given.
func secretKey(name string) string {
	if slices.Contains(config.GenerationProviders, name) {
		return secrets.ProviderKey(name)
	}
	return name
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	key := secretKey(args[0])

	value, _ := cmd.Flags().GetString("value")
	if !cmd.Flags().Changed("value") {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return docerr.New(docerr.CodeCLIInputInvalid, "no secret value on stdin")
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return docerr.New(docerr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	if err := secretStoreFactory().Set(secrets.Service, key, value); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Stored secret: %s\n", key)
	_, _ = fmt.Fprintf(out, "Reference it in docent.yaml as: keyring://%s/%s\n", secrets.Service, key)
	return nil
}

func runSecretGet(cmd *cobra.Command, args []string) error {
	key := secretKey(args[0])
	value, err := secretStoreFactory().Get(secrets.Service, key)
	if err != nil {
		return err
	}
	if reveal, _ := cmd.Flags().GetBool("reveal"); !reveal {
		value = maskSecret(value)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.Service)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	key := secretKey(args[0])
	if err := secretStoreFactory().Delete(secrets.Service, key); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", key)
	return nil
}

// maskSecret keeps the first and last four characters of long values.
func maskSecret(v string) string {
	r := []rune(v)
	if len(r) <= 8 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:4]) + strings.Repeat("*", len(r)-8) + string(r[len(r)-4:])
}
