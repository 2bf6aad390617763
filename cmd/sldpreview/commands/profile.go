package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sldpreview/internal/app"
	"sldpreview/internal/config"
	"sldpreview/internal/service"
)

func newProfileCommand(cfg func() config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved connection profiles",
	}

	withBackend := func(fn func(b *app.Backend) error) error {
		b, err := app.OpenBackend(cfg(), service.LogEmitter{})
		if err != nil {
			return err
		}
		defer b.Close()
		return fn(b)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List connection profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(b *app.Backend) error {
				profiles, err := b.Preview.ListProfiles()
				if err != nil {
					return err
				}
				if profiles == nil {
					return writeJSON(cmd.OutOrStdout(), []any{})
				}
				return writeJSON(cmd.OutOrStdout(), profiles)
			})
		},
	})

	var input service.ProfileInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Save a connection profile; the password goes to the secret store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input.Name == "" || input.Driver == "" || input.Host == "" {
				return fmt.Errorf("--name, --driver and --host are required")
			}
			return withBackend(func(b *app.Backend) error {
				p, err := b.Preview.CreateProfile(input)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), p)
			})
		},
	}
	f := add.Flags()
	f.StringVar(&input.Name, "name", "", "Profile name")
	f.StringVar(&input.Driver, "driver", "", "postgis, mysql, mongodb, sqlite, geopkg, shapefile, geojson or csv")
	f.StringVar(&input.Host, "host", "", "Host name, or file path for file stores")
	f.IntVar(&input.Port, "port", 0, "Port")
	f.StringVar(&input.Database, "database", "", "Database name")
	f.StringVar(&input.Username, "username", "", "User name")
	f.StringVar(&input.Password, "password", "", "Password")
	f.StringVar(&input.Schema, "schema", "", "Postgres schema")
	f.StringVar(&input.SSLMode, "sslmode", "", "Postgres SSL mode")
	f.StringVar(&input.Table, "table", "", "Feature table or collection")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a connection profile and its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(b *app.Backend) error {
				return b.Preview.DeleteProfile(args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "test <id>",
		Short: "Open and close a profile's data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(b *app.Backend) error {
				if err := b.Preview.TestProfile(context.Background(), args[0]); err != nil {
					return fmt.Errorf("connection failed: %w", err)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Connection OK")
				return err
			})
		},
	})

	return cmd
}
