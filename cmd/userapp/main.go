// Command userapp demonstrates how to wire a small layered application with
// acorn. Run it with:
//
//	go run ./cmd/userapp lookup --id 42
//	USERAPP_LOG_LEVEL=debug go run ./cmd/userapp lookup --id 7 --trace stdout
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ARTM2000/acorn"
)

var (
	envFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:               "userapp",
	Short:             "Look up users through an acorn-wired service graph",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Resolve the user service and look up one user",
	RunE:  runLookup,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the container wiring without constructing anything",
	RunE:  runCheck,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading USERAPP_* variables")
	pf.String("database-url", "postgres://localhost:5432/app", "database connection URL")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("trace", "none", "trace exporter (none, stdout)")
	pf.Duration("timeout", 2*time.Second, "user lookup timeout")

	lookupCmd.Flags().Int("id", 42, "user ID to look up")

	rootCmd.AddCommand(lookupCmd, checkCmd)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	v.SetEnvPrefix("USERAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range []string{"database-url", "log-level", "trace", "timeout"} {
		if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func runLookup(cmd *cobra.Command, _ []string) error {
	id, err := cmd.Flags().GetInt("id")
	if err != nil {
		return err
	}

	c, log, shutdownTracing, err := wire(v)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer shutdown(c, shutdownTracing, log)

	ctx := cmd.Context()
	svc, err := acorn.Resolve[*UserService](c,
		acorn.WithContext(ctx),
		acorn.WithOverride(acorn.Key("timeout"), v.GetDuration("timeout")),
	)
	if err != nil {
		return err
	}

	result, err := svc.GetUser(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "result:", result)
	return nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	c, log, shutdownTracing, err := wire(v)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer shutdown(c, shutdownTracing, log)

	// UserService is autowired, so register it explicitly for Validate to
	// walk its graph.
	if err := c.RegisterImplementation(acorn.TypeOf[*UserService](), acorn.TypeOf[*UserService]().Type(),
		acorn.WithLifetime(acorn.Transient)); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "wiring ok")
	return nil
}

func shutdown(c acorn.Container, shutdownTracing func(context.Context) error, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Shutdown(ctx); err != nil {
		log.Warn("container shutdown", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Warn("tracer shutdown", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
