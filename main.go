package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-kernel/framework/app"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFiles []string

	cmd := &cobra.Command{
		Use:          "kernel",
		Short:        "Go-Kernel example application",
		Version:      app.Version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Env files to load (default: .env)")

	load := func() (*app.Application, error) {
		application, err := app.New(app.WithEnvFiles(envFiles...))
		if err != nil {
			return nil, err
		}
		registerRoutes(application)
		return application, nil
	}

	cmd.AddCommand(serveCmd(load), routesCmd(load))
	return cmd
}

func serveCmd(load func() (*app.Application, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Boot the application and serve HTTP on APP_PORT.

The server shuts down gracefully on SIGINT or SIGTERM, waiting up to
HTTP_SHUTDOWN_TIMEOUT for in-flight requests.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Run(ctx)
		},
	}
}

func routesCmd(load func() (*app.Application, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List registered routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := load()
			if err != nil {
				return err
			}
			if err := application.Boot(context.Background()); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH\tNAME\tPATTERN")
			for _, rt := range application.Router().Routes() {
				name := rt.Name
				if rt.IsFallback() {
					name = strings.TrimSpace(name + " (fallback)")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", strings.Join(rt.Methods, "|"), rt.Path, name, rt.Pattern)
			}
			return w.Flush()
		},
	}
}
