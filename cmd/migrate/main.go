package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"server/internal/infra"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding goose migration files")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	_ = godotenv.Load()
	logger := infra.NewLogger(os.Getenv("APP_ENV"))

	migrator, err := infra.NewMigrator(os.Getenv("DATABASE_URL"), *dir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrator init failed")
	}

	ctx := context.Background()
	switch cmd {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx)
	case "status":
		err = migrator.Status(ctx)
	default:
		fmt.Fprintf(os.Stderr, "usage: migrate [-dir migrations] up|down|status\n")
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}
}
