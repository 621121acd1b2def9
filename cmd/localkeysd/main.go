package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gpdir16/LocalKeys/internal/approval"
	"github.com/gpdir16/LocalKeys/internal/audit"
	"github.com/gpdir16/LocalKeys/internal/platform"
	"github.com/gpdir16/LocalKeys/internal/server"
	"github.com/gpdir16/LocalKeys/internal/storage"
	"github.com/gpdir16/LocalKeys/internal/vault"
)

// app wires the components together explicitly; nothing reaches into
// package-level singletons.
type app struct {
	cfg    config
	logger *log.Logger
	store  *storage.FileStore
	audit  *audit.Log
	vault  *vault.Vault
	gate   *approval.Gate
	server *server.Server
}

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	dataDir := flag.String("data", "", "data directory (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "[localkeysd] ", log.LstdFlags)

	if err := platform.DisableCoreDumps(); err != nil {
		logger.Printf("disable core dumps: %v", err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	if err := a.run(); err != nil {
		logger.Fatalf("%v", err)
	}
}

func newApp(cfg config, logger *log.Logger) (*app, error) {
	store, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	auditLog := audit.New(store, cfg.MaxLogEntries)
	v := vault.NewWithDebounce(store, auditLog, time.Duration(cfg.DebounceMillis)*time.Millisecond)
	gate := approval.New(auditLog, time.Duration(cfg.ApprovalTimeoutSeconds)*time.Second)

	srv, err := server.New(server.Config{
		RatePerSecond: cfg.RatePerSecond,
		RateBurst:     cfg.RateBurst,
	}, v, gate, auditLog, store, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		audit:  auditLog,
		vault:  v,
		gate:   gate,
		server: srv,
	}, nil
}

func (a *app) run() error {
	in := bufio.NewReader(os.Stdin)

	if err := a.openVault(in); err != nil {
		return err
	}

	// The terminal stands in for the GUI decision surface: every gated
	// read shows up here and waits for y/n until the gate's deadline.
	a.gate.SetSource(newTerminalDecisionSource(in, os.Stdout))

	if err := a.server.Start(); err != nil {
		return err
	}
	_ = a.audit.Append(audit.CategoryApp, "daemon started")

	// Fixed duration from unlock, not sliding per activity.
	idle := time.AfterFunc(time.Duration(a.cfg.IdleLockMinutes)*time.Minute, func() {
		a.logger.Printf("idle timeout, locking vault")
		if err := a.vault.Lock(); err != nil {
			a.logger.Printf("idle lock: %v", err)
		}
	})
	defer idle.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	a.logger.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Stop(ctx); err != nil {
		a.logger.Printf("server stop: %v", err)
	}
	if err := a.vault.Lock(); err != nil {
		a.logger.Printf("lock: %v", err)
	}
	_ = a.audit.Append(audit.CategoryApp, "daemon stopped")
	return nil
}

// openVault runs setup on first use, otherwise unlocks with up to three
// password attempts.
func (a *app) openVault(in *bufio.Reader) error {
	if !a.vault.Exists() {
		fmt.Println("No vault found, creating one.")
		pw, err := promptSecret(in, "New master password: ")
		if err != nil {
			return err
		}
		confirm, err := promptSecret(in, "Confirm master password: ")
		if err != nil {
			return err
		}
		if pw != confirm {
			return errors.New("passwords do not match")
		}
		return a.vault.Setup(pw)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		pw, err := promptSecret(in, "Master password: ")
		if err != nil {
			return err
		}
		err = a.vault.Unlock(pw)
		if err == nil {
			return nil
		}
		if !errors.Is(err, vault.ErrInvalidPassword) {
			return err
		}
		fmt.Println("Invalid password.")
	}
	return errors.New("too many failed unlock attempts")
}

func promptSecret(in *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := in.ReadString('\n')
	if err != nil {
		return "", err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}
