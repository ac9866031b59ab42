package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Stiffstream/arataga-sub001"
)

type options struct {
	logLevel string
	version  bool
}

// version is the string printed by --version, a plain constant the way
// the teacher's cmd/routedns/main.go embeds its own version string.
const version = "0.1.0"

func main() {
	var opt options
	cmd := &cobra.Command{
		Use:   "arataga <config> [<config>..]",
		Short: "Multi-protocol forwarding proxy",
		Long: `Multi-protocol forwarding proxy.

Accepts client connections on configured ACLs, detects SOCKS5 or
HTTP/1.1, authenticates against an installed user list, resolves
the destination through a caching DNS layer and forwards traffic
while enforcing per-user and per-domain bandwidth limits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opt.version {
				fmt.Println(version)
				return nil
			}
			return run(args, opt)
		},
	}
	cmd.Flags().StringVar(&opt.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opt.version, "version", false, "print version and exit")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPaths []string, opt options) error {
	arataga.SetLogLevel(parseLogLevel(opt.logLevel))

	cfg, err := arataga.LoadConfig(configPaths...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	app := arataga.NewApp(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("starting app: %w", err)
	}

	if cfg.Admin.Bind != "" {
		admin := arataga.NewAdmin("admin", cfg.Admin.Bind, app)
		go func() {
			if err := admin.Start(); err != nil {
				arataga.Log.Error("admin listener stopped", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			admin.Stop()
		}()
	}

	<-ctx.Done()
	return nil
}

// parseLogLevel bridges the CLI's --log-level flag into an slog.Level,
// borrowing logrus's level-name vocabulary: logrus supplies the parsing
// vocabulary only, slog remains the sink.
func parseLogLevel(s string) slog.Level {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	switch lvl {
	case logrus.TraceLevel, logrus.DebugLevel:
		return slog.LevelDebug
	case logrus.WarnLevel:
		return slog.LevelWarn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
