package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/printz/fulfillment-backend/pkg/bootstrap"
	"github.com/printz/fulfillment-backend/pkg/db"
	"github.com/printz/fulfillment-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|up-by-one|down|redo|reset|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory (defaults to the embedded set; create writes to "+migrate.SourceDir+")")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate only touch the filesystem.
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		target := *dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.Create(target, *name, time.Now())
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		files, err := migrate.Files(*dir)
		if err != nil {
			fail("failed to open migrations: %v", err)
		}
		if err := migrate.Validate(files); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	if *cmd == "version" && *version == "" {
		fail("missing -version for version command")
	}

	proc := bootstrap.Start("migrate")
	ctx := proc.Logger.WithFields(context.Background(), map[string]any{
		"env": proc.Config.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	dbClient, err := db.New(ctx, proc.Config.DB, proc.Logger)
	proc.Must("resource not working: database", err)
	proc.Defer("database", dbClient.Close)

	sqlDB, err := dbClient.DB().DB()
	proc.Must("resource not working: sql database", err)
	files, err := migrate.Files(*dir)
	proc.Must("resource not working: migration files", err)
	runner, err := migrate.NewRunner(sqlDB, files, proc.Logger)
	proc.Must("resource not working: migration runner", err)

	if *cmd == "version" {
		err = runner.To(ctx, *version)
	} else {
		err = runner.Run(ctx, *cmd)
	}
	proc.Must("migration failed", err)
	proc.Logger.Info(ctx, "migration finished")
	proc.Close()
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
