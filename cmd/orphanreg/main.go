package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jask/orphanreg/internal/api"
	"github.com/jask/orphanreg/internal/config"
	"github.com/jask/orphanreg/internal/database"
	"github.com/jask/orphanreg/internal/database/repository"
	"github.com/jask/orphanreg/internal/logging"
	"github.com/jask/orphanreg/internal/preview"
	"github.com/jask/orphanreg/internal/service"
	"github.com/jask/orphanreg/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logFile, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logFile.Close()

	previews, err := preview.Start(cfg.Preview.Addr)
	if err != nil {
		log.Fatalf("preview server: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := previews.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("preview server shutdown")
		}
	}()

	client, err := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	if err != nil {
		log.Fatalf("api client: %v", err)
	}
	registrar := &service.Registrar{API: client}

	// the journal is optional
	if cfg.Journal.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
			log.Fatalf("mkdir journal dir: %v", err)
		}
		if err := database.RunMigrations(cfg.Journal.Path); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		db, err := database.Open(cfg.Journal.Path)
		if err != nil {
			log.Fatalf("open journal: %v", err)
		}
		defer db.Close()
		registrar.Journal = repository.NewRegistrationRepo(db)
	}

	logrus.WithFields(logrus.Fields{
		"api":     cfg.API.BaseURL,
		"preview": previews.Addr(),
		"journal": cfg.Journal.Path,
	}).Info("starting")

	app := tui.New(ctx, cfg, tui.Services{
		Registrar: registrar,
		Listing:   client,
		Previews:  previews.Registry,
	})
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fmt.Printf("error: %v\n", err)
	}
}
