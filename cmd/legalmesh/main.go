// Command legalmesh runs the legal assistant: the HTTP API, the A2A remote
// delegate, the MCP tool server, or all three in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/legalmesh"
	"github.com/hupe1980/legalmesh/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "legalmesh",
	Short:         "Legal assistant multi-agent mesh",
	Long:          `legalmesh answers legal questions with a research workflow, a remote document delegate and an orchestrator that merges both into a JSON report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "legalmesh.yaml", "path to the YAML config file (optional)")
	rootCmd.AddCommand(serveCmd, delegateCmd, toolsCmd, allCmd, askCmd, probeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadComponents validates the config and connects the model provider. A
// missing key is logged before the command fails.
func loadComponents(ctx context.Context) (*legalmesh.Components, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	c, err := legalmesh.NewComponents(ctx, cfg)
	if err != nil {
		logger := cfg.Logger()
		if errors.Is(err, config.ErrMissingAPIKey) {
			logger.Error("config.missing_api_key", "provider", cfg.LLM.Provider, "error", err.Error())
		} else {
			logger.Error("components.init.failed", "error", err.Error())
		}

		return nil, err
	}

	return c, nil
}

type server interface {
	Serve(ln net.Listener) error
	Shutdown(ctx context.Context) error
}

// serve runs srv on ln until ctx is done, then shuts it down within timeout.
func serve(ctx context.Context, srv server, ln net.Listener, timeout time.Duration) error {
	errCh := make(chan error, 1)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", ln.Addr(), err)
	}

	return <-errCh
}

// listen binds addr before serving so dependent clients can dial it at once.
func listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	return ln, nil
}
