package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"campusmap_backend/internals/cache"
	"campusmap_backend/internals/configs"
	database "campusmap_backend/internals/databases"
	trashScheduler "campusmap_backend/internals/features/trash/scheduler"
	authScheduler "campusmap_backend/internals/features/users/auth/scheduler"
	authService "campusmap_backend/internals/features/users/auth/service"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
	routes "campusmap_backend/internals/route"
	"campusmap_backend/internals/seeds"
)

func main() {
	var cfg *configs.Config

	rootCmd := &cobra.Command{
		Use:   "campusmapctl",
		Short: "Maintenance commands for the campus map backend",
		PersistentPreRun: func(*cobra.Command, []string) {
			cfg = configs.LoadEnv()
		},
		SilenceUsage: true,
	}

	// deps connects to the database and builds the shared services.
	deps := func() *routes.Deps {
		database.ConnectDB(cfg)
		images, err := helperOSS.NewImageStore(cfg.ImageStoreConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "image store: %v\n", err)
			os.Exit(1)
		}
		c, err := cache.New(cfg.RedisURL)
		if err != nil {
			c = cache.NopCache{}
		}
		return routes.NewDeps(database.DB, images, c, authService.NewAuthService(database.DB, cfg.JWTSecret, cfg.JWTTTL()))
	}

	var version uint
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations (latest, or --version)",
		RunE: func(*cobra.Command, []string) error {
			return database.Migrate(cfg.DSN(), version)
		},
	}
	migrateCmd.Flags().UintVar(&version, "version", 0, "target version, 0 for latest")

	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last migration",
		RunE: func(*cobra.Command, []string) error {
			return database.Rollback(cfg.DSN())
		},
	}

	var name, email, password string
	createAdminCmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin, or reset the password of an existing one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := deps()
			a, created, err := d.Auth.CreateAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			verb := "password reset for"
			if created {
				verb = "created"
			}
			fmt.Printf("admin %s %s (id %d)\n", verb, a.Email, a.ID)
			return nil
		},
	}
	createAdminCmd.Flags().StringVar(&name, "name", "Admin", "display name")
	createAdminCmd.Flags().StringVar(&email, "email", "", "login email")
	createAdminCmd.Flags().StringVar(&password, "password", "", "password (min 8 chars)")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	reapCmd := &cobra.Command{
		Use:   "reap-trash",
		Short: "Permanently delete trash entries past retention and expired blacklisted tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := deps()
			n, err := trashScheduler.RunReaper(cmd.Context(), d.Trash, cfg.TrashRetentionPeriod())
			if err != nil {
				return err
			}
			tokens, err := authScheduler.CleanupBlacklist(cmd.Context(), d.DB)
			if err != nil {
				return err
			}
			fmt.Printf("%d trash entries and %d tokens removed\n", n, tokens)
			return nil
		},
	}

	publishAllCmd := &cobra.Command{
		Use:   "publish-all",
		Short: "Publish every pending change as the System actor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := deps()
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			res, err := d.Publication.PublishAll(ctx, helper.SystemActor())
			if err != nil {
				return err
			}
			fmt.Printf("published %d changes (maps %+v, buildings %+v, rooms %+v, employees %+v)\n",
				res.Total(), res.Maps, res.Buildings, res.Rooms, res.Employees)
			return nil
		},
	}

	var seedDir string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load admins.json and campus.json from --dir",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := deps()
			return seeds.RunAllSeeds(cmd.Context(), d.DB, d.Auth, seedDir)
		},
	}
	seedCmd.Flags().StringVar(&seedDir, "dir", "internals/seeds/data", "directory holding the seed files")

	rootCmd.AddCommand(migrateCmd, rollbackCmd, createAdminCmd, reapCmd, publishAllCmd, seedCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
