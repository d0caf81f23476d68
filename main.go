package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"proxy-panel/internal/config"
	"proxy-panel/internal/core"
	"proxy-panel/internal/database"
	"proxy-panel/internal/handler"
	"proxy-panel/internal/migration"
	"proxy-panel/internal/router"
	"proxy-panel/internal/xray"
)

func main() {
	// load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// ensure basic directories exist
	if err := ensureDir(filepath.Dir(cfg.Database.Path)); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	if err := setupLogFile(cfg.Log.File); err != nil {
		log.Fatalf("open log file: %v", err)
	}
	if err := ensureDir(cfg.Backup.Dir); err != nil {
		log.Fatalf("create backup dir: %v", err)
	}

	// a staged restore replaces the database file before it is opened
	if staged := cfg.Database.Path + ".restore"; fileExists(staged) {
		if err := os.Rename(staged, cfg.Database.Path); err != nil {
			log.Fatalf("apply staged restore: %v", err)
		}
		log.Printf("restored database from %s", staged)
	}

	// init database
	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	// run schema migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	if err := handler.SeedAdmin(db, cfg.Admin, cfg.Security.BcryptCost); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	// load the inbound catalog from the engine's config file
	catalog := core.NewCatalogHolder()
	inbounds, err := xray.LoadInbounds(cfg.Xray.ConfigPath)
	if err != nil {
		log.Fatalf("load xray inbounds: %v", err)
	}
	cat := catalog.Replace(inbounds)
	if err := database.SyncInbounds(db, cat); err != nil {
		log.Fatalf("sync inbounds: %v", err)
	}
	log.Printf("inbound catalog loaded: %d inbounds", cat.Len())

	// one-time group reconstruction from the legacy schema, if present
	if err := migration.Migrate(db, cat); err != nil {
		log.Fatalf("group migration: %v", err)
	}

	locks := core.NewUserLocker()
	notifier := xray.LogNotifier{}

	r := router.SetupRouter(cfg, db, catalog, locks, notifier)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	log.Printf("server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("run server: %v", err)
	}
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// setupLogFile mirrors the standard logger to a file when one is
// configured; stdout keeps receiving everything.
func setupLogFile(path string) error {
	if path == "" {
		return nil
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return nil
}
