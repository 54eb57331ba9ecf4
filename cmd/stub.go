package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ooi-datateam/ingestctl/internal/m2mstub"
	"github.com/ooi-datateam/ingestctl/pkg/model"
)

var (
	stubListen string
	stubSeed   string
	stubAPIKey string
	stubToken  string
)

var stubServerCmd = &cobra.Command{
	Use:   "stub-server",
	Short: "Serve an in-memory M2M ingest and annotation API for rehearsals",
	Long: `Serve the ingestrequest and anno endpoints from memory. Point --base-url at it
to rehearse a run without touching the real system.`,
	Example: `  # Start with two existing jobs and basic auth
  ingestctl stub-server --listen :8089 --seed jobs.json --api-key OOIAPI-TEST --token secret

  # In another terminal
  ingestctl --base-url http://localhost:8089 ingest run CE01ISSM_D00005_ingest.csv`,
	RunE: runStubServer,
}

func init() {
	rootCmd.AddCommand(stubServerCmd)
	stubServerCmd.Flags().StringVar(&stubListen, "listen", ":8089", "Listen address")
	stubServerCmd.Flags().StringVar(&stubSeed, "seed", "", "JSON file with ingest requests to start from")
	stubServerCmd.Flags().StringVar(&stubAPIKey, "api-key", "", "API key accepted by basic auth (empty disables auth)")
	stubServerCmd.Flags().StringVar(&stubToken, "token", "", "Token accepted by basic auth")
}

func runStubServer(cmd *cobra.Command, args []string) error {
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := m2mstub.Options{}
	if stubAPIKey != "" {
		opts.Credentials = map[string]string{stubAPIKey: stubToken}
	}
	if stubSeed != "" {
		seed, err := m2mstub.LoadSeed(stubSeed)
		if err != nil {
			return err
		}
		opts.Seed = seed
	}
	stub, err := m2mstub.NewServer(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         stubListen,
		Handler:      stub.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("stub server starting", "component", "http_server", "addr", stubListen, "seeded", len(opts.Seed), "auth", stubAPIKey != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start stub server: %w", err)
		}
		return nil
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("stub server forced to shutdown: %w", err)
	}
	printStubState(cmd, stub.Requests())
	return nil
}

func printStubState(cmd *cobra.Command, requests []model.IngestRequestRecord) {
	fmt.Fprintf(cmd.OutOrStdout(), "Stub server stopped with %d ingest requests\n", len(requests))
}
