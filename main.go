package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ryanmoran/gitdocs/internal"
	"github.com/ryanmoran/gitdocs/internal/api"
	"github.com/ryanmoran/gitdocs/internal/store"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic occurred: %v", r)
			os.Exit(1)
		}
	}()

	if err := run(os.Args, os.Environ()); err != nil {
		log.Fatal(err)
	}
}

func run(args, env []string) error {
	config, err := internal.ParseConfig(args[1:], env)
	if err != nil {
		return err
	}

	// Create context with cancellation for proper goroutine cleanup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals to cancel context and cleanup
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	w := internal.NewStandardWriter()

	cleanupMgr := internal.NewCleanupManager(w)
	defer cleanupMgr.Execute()

	s, err := store.Open(ctx, store.Config{
		Remote:    config.Remote,
		Checkout:  config.Checkout,
		Branch:    config.Branch,
		Extension: config.Extension,
		Author: store.Author{
			Name:  config.GitUser.Name,
			Email: config.GitUser.Email,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open document store for %q: %w\nCheck that the remote URL is reachable", config.Remote, err)
	}

	server, err := api.NewServer(s, config.ListenAddr, w)
	if err != nil {
		return fmt.Errorf("failed to start server on %q: %w", config.ListenAddr, err)
	}
	cleanupMgr.Add("http-server", server.Close)

	w.Printf("serving documents from %s on port %d\n", config.Remote, server.Port())

	<-ctx.Done()
	return nil
}
