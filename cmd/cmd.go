package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/guildview/panel-service/config"
	"github.com/guildview/panel-service/internal/monitor"
)

const ServiceName = "guildview-panel"

// Stamped by the release pipeline via -ldflags.
var (
	version = "0.0.0"
	commit  = "hash"
	branch  = "branch"
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Control panel backend for the chat platform",
		Version: fmt.Sprintf("%s (%s@%s)", version, branch, commit),
		Commands: []*cli.Command{
			serverCmd(),
			monitorCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the panel service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}

func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:    "monitor",
		Aliases: []string{"m"},
		Usage:   "Live terminal dashboard over a running panel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Panel base URL (overrides monitor.url)",
				EnvVars: []string{"GUILDVIEW_MONITOR_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Admin token (overrides monitor.token)",
				EnvVars: []string{"GUILDVIEW_MONITOR_TOKEN"},
			},
		},
		Action: func(c *cli.Context) error {
			mcfg := config.MonitorConfig{
				URL:   c.String("url"),
				Token: c.String("token"),
			}

			// The server's config file is a convenience here, not a
			// requirement: flags win, and only an explicitly named file
			// may fail the command.
			if cfg, err := config.LoadConfig(); err == nil {
				if mcfg.URL == "" {
					mcfg.URL = cfg.Monitor.URL
				}
				if mcfg.Token == "" {
					mcfg.Token = cfg.Monitor.Token
				}
				mcfg.Refresh = cfg.Monitor.Refresh
			} else if c.String("config_file") != "" {
				return err
			}
			if mcfg.URL == "" {
				mcfg.URL = "http://localhost:8181"
			}

			return monitor.Run(c.Context, mcfg)
		},
	}
}
