// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stixview.io/stixview/arangodb"
	"stixview.io/stixview/objects"
	"stixview.io/stixview/server"
)

var (
	rootCmd = &cobra.Command{
		Use:   "stixview",
		Short: "Queryable view over bulk-loaded STIX 2.1 objects",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the objects API server",
		RunE:  cmdRun,
	}
	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Create the database and search view and relink all collections",
		RunE:  cmdSetup,
	}
)

func init() {
	rootCmd.AddCommand(runCmd, setupCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("database.url", "http://127.0.0.1:8529", "ArangoDB endpoint")
	flags.String("database.username", "root", "ArangoDB username")
	flags.String("database.password", "", "ArangoDB password")
	flags.String("database.name", "stixview", "base name for the database and view")
	flags.String("database.view", "", "override the derived view name")
	flags.String("server.address", ":8004", "address the API server listens on")
	flags.Int64("objects.default-page-size", 50, "page size when the caller does not supply one")
	flags.Int64("objects.max-page-size", 200, "upper bound on caller-supplied page sizes")
	flags.Bool("objects.relationships-always-latest", true, "restrict relationship searches to latest versions only")

	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("stixview")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func databaseConfig() arangodb.Config {
	return arangodb.Config{
		URL:      viper.GetString("database.url"),
		Username: viper.GetString("database.username"),
		Password: viper.GetString("database.password"),
		Database: viper.GetString("database.name"),
		View:     viper.GetString("database.view"),
	}
}

func objectsConfig() objects.Config {
	return objects.Config{
		DefaultPageSize:           viper.GetInt64("objects.default-page-size"),
		MaxPageSize:               viper.GetInt64("objects.max-page-size"),
		RelationshipsAlwaysLatest: viper.GetBool("objects.relationships-always-latest"),
	}
}

func cmdRun(cmd *cobra.Command, args []string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	config := databaseConfig()
	db, err := arangodb.Open(ctx, log, config)
	if err != nil {
		return err
	}

	view, err := arangodb.EnsureView(ctx, log, db.Database(), config.ViewName())
	if err != nil {
		return err
	}
	if err := arangodb.RelinkAll(ctx, log, db.Database(), view); err != nil {
		return err
	}

	store := arangodb.NewStore(log.Named("store"), db.Database())
	service := objects.NewService(log.Named("objects"), store, config.ViewName(), objectsConfig())
	api := server.NewServer(log.Named("server"), service, objectsConfig(), viper.GetString("server.address"))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return api.Run(ctx)
	})
	return group.Wait()
}

func cmdSetup(cmd *cobra.Command, args []string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	config := databaseConfig()
	db, err := arangodb.Open(ctx, log, config)
	if err != nil {
		return err
	}

	view, err := arangodb.EnsureView(ctx, log, db.Database(), config.ViewName())
	if err != nil {
		return err
	}
	return arangodb.RelinkAll(ctx, log, db.Database(), view)
}
