package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/jobtrail/internal/api"
	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/config"
	"github.com/kalambet/jobtrail/internal/migration"
	"github.com/kalambet/jobtrail/internal/records"
	"github.com/kalambet/jobtrail/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the jobtrail server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show jobtrail server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", true, "serve MCP over stdin/stdout alongside HTTP")
	rootCmd.AddCommand(statusCmd)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "jobtrail version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.NewLogger())

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrator := migration.NewMigrator(store)
	if err := prepareData(ctx, migrator, cfg.Migration.AutoRun); err != nil {
		return err
	}

	repo := collection.New(store)
	appHandler := api.NewAppHandler(api.AppDeps{
		Collection: repo,
		Migrator:   migrator,
		Token:      cfg.API.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           appHandler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "jobtrail listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Collection: repo,
			Migrator:   migrator,
			Version:    version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// prepareData brings stored data to the current schema version before
// anything reads it. With autoRun off, a store that is behind is refused
// rather than served.
func prepareData(ctx context.Context, m *migration.Migrator, autoRun bool) error {
	if !autoRun {
		v, err := m.Registry().Version(ctx)
		if err != nil {
			return err
		}
		if v < records.CurrentSchemaVersion {
			return fmt.Errorf("stored data is at schema version %d, want %d: run `jobtrail migrate` or set migration.auto_run", v, records.CurrentSchemaVersion)
		}
		return nil
	}

	rep, err := m.RunIfNeeded(ctx)
	if err != nil {
		return fmt.Errorf("migrating data: %w", err)
	}
	slog.Info("data migration checked",
		"state", rep.State.String(),
		"from", rep.FromVersion,
		"to", rep.ToVersion,
		"inserted", rep.Inserted,
		"skipped", rep.Skipped,
	)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      cfg.API.Token,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}

	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if err == nil {
		var postings []struct{}
		if r, err := client.get(ctx, "/postings"); err == nil && decodeJSON(r, &postings) == nil {
			printStatus("Postings", "%d", len(postings))
		}
		var conns []struct{}
		if r, err := client.get(ctx, "/connections"); err == nil && decodeJSON(r, &conns) == nil {
			printStatus("Connections", "%d", len(conns))
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Auto-migrate", "%t", cfg.Migration.AutoRun)
	return nil
}
