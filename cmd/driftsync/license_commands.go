// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/database"
	"github.com/driftsync/driftsync/internal/license"
)

func RunLicenseCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "license",
		Short: "Manage the license key",
	}

	command.AddCommand(licenseStatusCommand())
	command.AddCommand(licenseActivateCommand())
	command.AddCommand(licenseCheckCommand())
	command.AddCommand(licenseDeactivateCommand())

	return command
}

// withLicenseService opens the database and runs fn against a freshly
// built license service.
func withLicenseService(configDir, dataDir string, fn func(ctx context.Context, svc *license.Service) error) error {
	cfg, err := config.New(configDir)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	if dataDir != "" {
		cfg.SetDataDir(dataDir)
	}

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	svc, err := newLicenseService(cfg, database.NewStateStore(db))
	if err != nil {
		return fmt.Errorf("failed to initialize license service: %w", err)
	}

	return fn(context.Background(), svc)
}

func licenseStatusCommand() *cobra.Command {
	var configDir, dataDir string

	command := &cobra.Command{
		Use:   "status",
		Short: "Show the stored license record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLicenseService(configDir, dataDir, func(ctx context.Context, svc *license.Service) error {
				rec, err := svc.CurrentRecord(ctx)
				if err != nil {
					return err
				}

				if rec.Key == "" {
					cmd.Println("No license key configured")
					return nil
				}

				now := svc.Now()

				cmd.Printf("Key:     %s\n", license.MaskKey(rec.Key))
				cmd.Printf("Status:  %s\n", rec.Status)
				cmd.Printf("Valid:   %t\n", rec.IsValid())

				if rec.Data != nil {
					if days, ok := rec.RemainingDays(now); ok {
						cmd.Printf("Expires: %s (%d days)\n", rec.Data.ExpiresAt.Format("2006-01-02"), days)
					} else {
						cmd.Println("Expires: never (lifetime)")
					}
					if rec.Data.Activations.Limit > 0 {
						cmd.Printf("Seats:   %d/%d\n", rec.Data.Activations.Used, rec.Data.Activations.Limit)
					}
				}

				if rec.InGracePeriod(now) {
					cmd.Printf("Grace:   %d days remaining\n", rec.GraceDaysRemaining(now))
				}
				if rec.LastCheckedAt != nil {
					cmd.Printf("Checked: %s\n", rec.LastCheckedAt.Format("2006-01-02 15:04:05"))
				}

				return nil
			})
		},
	}

	addLicenseFlags(command, &configDir, &dataDir)
	return command
}

func licenseActivateCommand() *cobra.Command {
	var configDir, dataDir, key string

	command := &cobra.Command{
		Use:   "activate [key]",
		Short: "Activate a license key against the portal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				key = args[0]
			}
			if key == "" {
				var err error
				key, err = readPassword("Enter license key: ")
				if err != nil {
					return err
				}
			}
			key = strings.TrimSpace(key)

			return withLicenseService(configDir, dataDir, func(ctx context.Context, svc *license.Service) error {
				result, err := svc.Activate(ctx, key)
				if err != nil {
					return err
				}

				printResult(cmd, result)
				return nil
			})
		},
	}

	addLicenseFlags(command, &configDir, &dataDir)
	return command
}

func licenseCheckCommand() *cobra.Command {
	var configDir, dataDir string

	command := &cobra.Command{
		Use:   "check",
		Short: "Reconcile the stored key against the portal now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLicenseService(configDir, dataDir, func(ctx context.Context, svc *license.Service) error {
				result, err := svc.Check(ctx, "")
				if err != nil {
					return err
				}

				printResult(cmd, result)
				return nil
			})
		},
	}

	addLicenseFlags(command, &configDir, &dataDir)
	return command
}

func licenseDeactivateCommand() *cobra.Command {
	var configDir, dataDir string

	command := &cobra.Command{
		Use:   "deactivate",
		Short: "Release the activation slot and clear local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLicenseService(configDir, dataDir, func(ctx context.Context, svc *license.Service) error {
				if _, err := svc.Deactivate(ctx); err != nil {
					return err
				}

				cmd.Println("License deactivated and local state cleared")
				return nil
			})
		},
	}

	addLicenseFlags(command, &configDir, &dataDir)
	return command
}

func addLicenseFlags(command *cobra.Command, configDir, dataDir *string) {
	command.Flags().StringVar(configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVar(dataDir, "data-dir", "",
		"data directory path (defaults to next to config file)")
}

func printResult(cmd *cobra.Command, result *license.Result) {
	if result.Success {
		cmd.Printf("Success: status is %q\n", result.Status)
		if result.InGracePeriod {
			cmd.Printf("Grace period open, %d days remaining\n", result.GraceDaysLeft)
		}
		return
	}

	if result.IsNetworkError {
		cmd.Printf("Portal unreachable: %s\n", result.Message)
		if result.InGracePeriod {
			cmd.Printf("Grace period open, %d days remaining\n", result.GraceDaysLeft)
		}
		return
	}

	cmd.Printf("Rejected (status %q): %s\n", result.Status, result.Message)
	for field, msgs := range result.Errors {
		for _, msg := range msgs {
			cmd.Printf("  %s: %s\n", field, msg)
		}
	}
}
