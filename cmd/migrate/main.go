// Command migrate applies the embedded schema migrations.
//
//	migrate [-dsn URL] [-v] up|down|version
//	migrate [-dsn URL] [-v] steps N
//	migrate [-dsn URL] [-v] force N
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/safestack/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "SAFESTACK_DB_DSN"

func main() {
	dsn := flag.String("dsn", "", "postgres:// URL; defaults to "+envDSN+" then the server database config")
	verbose := flag.Bool("v", false, "log each migration as it runs")
	flag.Usage = usage
	flag.Parse()

	cmd, err := parseCommand(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	url, err := resolveDSN(*dsn)
	if err != nil {
		log.Fatalf("resolve dsn: %v", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		log.Fatalf("open migrations: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer m.Close()

	m.Log = &migrateLogger{
		logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)).With("system", "migrate"),
		verbose: *verbose,
	}

	msg, err := cmd.run(m)
	if err != nil {
		log.Fatalf("%s: %v", cmd.name, err)
	}
	fmt.Println(msg)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate [-dsn URL] [-v] up|down|version|steps N|force N")
	flag.PrintDefaults()
}

func resolveDSN(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(envDSN); env != "" {
		return env, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Database.URL(), nil
}

// migrateLogger routes migrate's progress output through slog.
type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return l.verbose
}
