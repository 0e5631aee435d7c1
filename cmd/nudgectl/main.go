// Command nudgectl runs and inspects the nudge engine from a shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sitecrew/nudges/internal/app"
	"github.com/sitecrew/nudges/internal/config"
	"github.com/sitecrew/nudges/internal/logger"
)

const binary = "nudgectl"

var (
	// Used for flags.
	cfgFile    string
	jsonOutput bool

	rootCmd = &cobra.Command{
		Use:           binary,
		Short:         "nudgectl runs the nudge engine and manages nudges and custom rules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is "+config.DefaultFile+" in current directory)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "print results as JSON")
}

func main() {
	// stdout is for command output
	if os.Getenv("OTEL_ENABLED") != "true" {
		logger.SetOutput(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if shutdownErr := logger.Shutdown(context.Background()); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", binary, err)
		os.Exit(1)
	}
}

// openApp loads the config and connects. Callers must Close the app.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
