package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/texnika/texnika-backend/pkg/config"
	"github.com/texnika/texnika-backend/pkg/db"
	"github.com/texnika/texnika-backend/pkg/logger"
	"github.com/texnika/texnika-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up              apply pending migrations
  down            roll back the latest migration
  to <version>    move the schema to an exact version
  version         print the applied version
  pending         list unapplied versions
  create <name>   write a new empty migration
  validate        check migration files without a database`

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", migrate.DefaultDir, "migrations directory")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, arg := args[0], ""
	if len(args) > 1 {
		arg = args[1]
	}

	if err := runOffline(command, arg, *dir); !errors.Is(err, errNeedsDatabase) {
		exitOn(err)
		return
	}

	cfg, err := config.Load()
	exitOn(err)
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"command": command,
		"dir":     *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn(err)
	m, err := migrate.New(sqlDB, cfg.DB.Driver, os.DirFS(*dir), logg)
	exitOn(err)

	if err := runOnline(ctx, m, command, arg); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

var errNeedsDatabase = errors.New("needs database")

func runOffline(command, arg, dir string) error {
	switch command {
	case "create":
		if arg == "" {
			return errors.New("create needs a name")
		}
		path, err := migrate.CreateSQLMigration(dir, arg)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	}
	return errNeedsDatabase
}

func runOnline(ctx context.Context, m *migrate.Migrator, command, arg string) error {
	switch command {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "to":
		if arg == "" {
			return errors.New("to needs a version")
		}
		return m.To(ctx, arg)
	case "version":
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	case "pending":
		versions, err := m.Pending(ctx)
		if err != nil {
			return err
		}
		out := make([]string, 0, len(versions))
		for _, v := range versions {
			out = append(out, strconv.FormatInt(v, 10))
		}
		fmt.Println(strings.Join(out, "\n"))
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "migrate:", err)
	os.Exit(1)
}
