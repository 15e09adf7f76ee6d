// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Keyward CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyward",
		Short: "Keyward - credential and session-token authority",
		Long: `Keyward is a credential and session-token authority: it registers
accounts, authenticates logins, and issues, verifies, and rolls the signed
session token carried in the access_token cookie.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
