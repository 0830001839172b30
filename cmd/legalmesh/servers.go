package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/legalmesh"
	"github.com/hupe1980/legalmesh/httpapi"
)

var (
	delegateHost string
	delegatePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API (POST /run)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		c, err := loadComponents(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		srv, ln, err := newAPIServer(ctx, c)
		if err != nil {
			return err
		}

		return serve(ctx, srv, ln, c.Config.Server.ShutdownTimeout)
	},
}

var delegateCmd = &cobra.Command{
	Use:   "delegate",
	Short: "Serve the A2A remote delegate",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		c, err := loadComponents(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		applyDelegateFlags(cmd, c)

		srv, ln, err := newDelegateServer(ctx, c)
		if err != nil {
			return err
		}

		c.Logger.Info("a2a.server.start", "addr", ln.Addr().String())

		return serve(ctx, srv, ln, c.Config.Server.ShutdownTimeout)
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Serve the legal tools over MCP streamable HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		c, err := loadComponents(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		srv, err := c.NewToolServer()
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(c.Config.ToolServer.Addr) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		return <-errCh
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run the tool server, the remote delegate and the HTTP API in one process",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := loadComponents(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		applyDelegateFlags(cmd, c)

		g, ctx := errgroup.WithContext(cmd.Context())
		timeout := c.Config.Server.ShutdownTimeout

		if c.Config.ToolServer.URL != "" {
			tools, err := c.NewToolServer()
			if err != nil {
				return err
			}

			ln, err := listen(c.Config.ToolServer.Addr)
			if err != nil {
				return err
			}

			c.Logger.Info("toolserver.start", "addr", ln.Addr().String(), "tools", len(tools.Tools()))
			g.Go(func() error { return serve(ctx, &http.Server{Handler: tools, ReadHeaderTimeout: 10 * time.Second}, ln, timeout) })
		}

		delegate, dln, err := newDelegateServer(ctx, c)
		if err != nil {
			return err
		}

		c.Logger.Info("a2a.server.start", "addr", dln.Addr().String())
		g.Go(func() error { return serve(ctx, delegate, dln, timeout) })

		api, aln, err := newAPIServer(ctx, c)
		if err != nil {
			return err
		}

		g.Go(func() error { return serve(ctx, api, aln, timeout) })

		return g.Wait()
	},
}

func init() {
	for _, cmd := range []*cobra.Command{delegateCmd, allCmd} {
		cmd.Flags().StringVar(&delegateHost, "host", "localhost", "delegate host")
		cmd.Flags().IntVar(&delegatePort, "port", 10001, "delegate port")
	}
}

func applyDelegateFlags(cmd *cobra.Command, c *legalmesh.Components) {
	if cmd.Flags().Changed("host") {
		c.Config.Delegate.Host = delegateHost
	}

	if cmd.Flags().Changed("port") {
		c.Config.Delegate.Port = delegatePort
	}
}

func newDelegateServer(ctx context.Context, c *legalmesh.Components) (*http.Server, net.Listener, error) {
	cfg := c.Config.Delegate

	handler, err := c.NewDelegateServer(ctx, cfg.Host, cfg.Port)
	if err != nil {
		return nil, nil, fmt.Errorf("delegate: %w", err)
	}

	ln, err := listen(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, nil, err
	}

	return &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}, ln, nil
}

func newAPIServer(ctx context.Context, c *legalmesh.Components) (*httpapi.Server, net.Listener, error) {
	mesh, err := c.NewMesh(ctx)
	if err != nil {
		return nil, nil, err
	}

	cfg := c.Config.Server

	api := httpapi.NewServer(ctx, cfg.Addr, mesh, func(o *httpapi.Options) {
		o.RateLimit = cfg.RateLimit
		o.RateBurst = cfg.RateBurst
		o.ReadTimeout = cfg.ReadTimeout
		o.WriteTimeout = cfg.WriteTimeout
		o.Metrics = c.Metrics
		o.Logger = c.Logger
	})

	ln, err := listen(api.Addr())
	if err != nil {
		return nil, nil, err
	}

	return api, ln, nil
}
