// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docent-dev/docent/internal/config"
	"github.com/docent-dev/docent/internal/secrets"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// cli carries state shared by every subcommand of one root command.
type cli struct {
	v *viper.Viper
}

// NewRootCmd creates the root docent command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:           "docent",
		Short:         "Docent answers questions about your documents",
		Long:          "Docent stores document pages and action items as embeddings and answers questions grounded in them, remembering each document's conversation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}

	// Global flags. These map to viper keys in init.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		c.newServeCmd(),
		c.newIngestCmd(),
		c.newAskCmd(),
		c.newWatchCmd(),
		newSecretCmd(),
		c.newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// init loads .env, reads the config file and binds global flags so the
// precedence flag > env > file > defaults holds for every command.
func (c *cli) init(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return docerr.Wrap(err, docerr.CodeConfigLoadReadFailure, "reading .env")
	}

	v := c.v
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return docerr.Wrapf(err, docerr.CodeConfigLoadReadFailure, "reading config file %s", cfgFile)
		}
	} else {
		v.SetConfigName("docent")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/docent")
		v.AddConfigPath("/etc/docent")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return docerr.Wrap(err, docerr.CodeConfigLoadReadFailure, "reading config")
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return docerr.Wrap(err, docerr.CodeConfigLoadReadFailure, "reading bootstrapped config")
				}
			}
		}
	}

	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("verbose", flags.Lookup("verbose")); err != nil {
		return docerr.Wrap(err, docerr.CodeCLISetupFailure, "binding verbose flag")
	}
	if dir, _ := flags.GetString("data-dir"); dir != "" {
		v.Set("data_dir", dir)
	}

	setupLogging(cmd.ErrOrStderr(), v.GetBool("verbose"))
	config.WarnInsecurePermissions(v.ConfigFileUsed())
	return nil
}

// config resolves keyring references and decodes the effective configuration.
func (c *cli) config() (*config.Config, error) {
	if err := secrets.ResolveConfig(c.v, secretStoreFactory()); err != nil {
		return nil, err
	}
	return config.FromViper(c.v)
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
