package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/unicampus/campus-backend/internal/seed"
	"github.com/unicampus/campus-backend/pkg/config"
	"github.com/unicampus/campus-backend/pkg/db"
	"github.com/unicampus/campus-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	file := flag.String("file", "internal/seed/testdata/campus.yaml", "fixture file to load")
	check := flag.Bool("check", false, "validate the fixture file without touching the database")
	flag.Parse()

	fixtures, err := seed.LoadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixtures: %v\n", err)
		os.Exit(1)
	}
	if *check {
		fmt.Println("fixtures valid:", *file)
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"file": *file,
	})

	if cfg.App.IsProd() {
		logg.Warn(ctx, "refusing to seed a prod environment")
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	summary, err := seed.Apply(ctx, dbClient, fixtures)
	if err != nil {
		logg.Error(ctx, "seed failed", err)
		os.Exit(1)
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"categories": summary.Categories,
		"vendors":    summary.Vendors,
		"products":   summary.Products,
		"clubs":      summary.Clubs,
		"club_roles": summary.ClubRoles,
		"vouchers":   summary.Vouchers,
	})
	logg.Info(ctx, "seed finished")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
