package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"brewvulns/internal/config"
	bverrors "brewvulns/internal/errors"
	"brewvulns/internal/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exit = os.Exit

var (
	cfgFile      string
	includeDeps  bool
	jsonOut      bool
	sarifOut     bool
	cyclonedxOut bool
	brewfile     string

	logCloser io.Closer
)

// defaultBrewfile is used when --brewfile is given without a path.
const defaultBrewfile = "Brewfile"

var rootCmd = &cobra.Command{
	Use:   "brew-vulns [formula]",
	Short: "Check installed Homebrew packages for known vulnerabilities",
	Long: `Check installed Homebrew packages for known vulnerabilities via osv.dev.

Each formula whose source is hosted on a supported forge is looked up by its
repository URL and release tag. Exits 1 when vulnerabilities are found.`,
	Example: `  brew vulns                        Check all installed packages
  brew vulns openssl                Check only openssl
  brew vulns vim --deps             Check vim and its dependencies
  brew vulns --brewfile             Scan packages listed in ./Brewfile
  brew vulns -b ~/project/Brewfile  Scan a specific Brewfile
  brew vulns -b Brewfile --deps     Scan Brewfile packages and their dependencies
  brew vulns --json                 Output as JSON for CI/CD
  brew vulns --cyclonedx            Output as CycloneDX SBOM
  brew vulns --sarif                Output as SARIF for GitHub Actions
  brew vulns --severity high        Only show HIGH and CRITICAL vulnerabilities`,
	Args:              cobra.MaximumNArgs(1),
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	RunE:              runScan,
}

// exitStatus carries a non-zero exit code that is not an error to report.
type exitStatus struct {
	code int
}

func (e *exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the root command with the process arguments.
func Execute() {
	execute(os.Args[1:])
}

func execute(args []string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Command Execution Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", r)
			exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SetArgs(normalizeArgs(args))
	err := rootCmd.ExecuteContext(ctx)

	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}

	var status *exitStatus
	switch {
	case errors.As(err, &status):
		exit(status.code)
	case err != nil:
		fmt.Fprintln(rootCmd.ErrOrStderr(), bverrors.UserMessage(err))
		exit(1)
	}
}

// normalizeArgs attaches a separate Brewfile path to its flag so that both
// "-b path" and a bare "-b" parse.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if (arg == "-b" || arg == "--brewfile") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, "--brewfile="+args[i+1])
			i++
			continue
		}
		out = append(out, arg)
	}
	return out
}

func init() {
	rootCmd.Version = versionString()
	rootCmd.SetVersionTemplate("brew-vulns {{.Version}}\n")

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.brew-vulns.yaml or $HOME/.brew-vulns.yaml)")
	flags.BoolVarP(&includeDeps, "deps", "d", false, "Include dependencies when checking a specific formula or Brewfile")
	flags.BoolVarP(&jsonOut, "json", "j", false, "Output results as JSON")
	flags.BoolVar(&cyclonedxOut, "cyclonedx", false, "Output results as CycloneDX SBOM with vulnerabilities")
	flags.BoolVar(&sarifOut, "sarif", false, "Output results as SARIF for GitHub code scanning")
	flags.StringVarP(&brewfile, "brewfile", "b", "", "Scan packages from a Brewfile (default: ./Brewfile)")
	flags.Lookup("brewfile").NoOptDefVal = defaultBrewfile
	flags.IntP("max-summary", "m", 60, "Truncate summaries to N characters (0 for no limit)")
	flags.StringP("severity", "s", "", "Only show vulnerabilities at or above LEVEL (low, medium, high, critical)")
	flags.BoolP("verbose", "v", false, "Enable verbose/debug logging")
	flags.String("ignore-file", "", "YAML file of vulnerability IDs to silence")
	flags.String("metrics-file", "", "Write scan metrics in Prometheus textfile format")
	flags.String("log-file", "", "Also write JSON logs to this file")
}

var flagBindings = map[string]string{
	"max_summary":  "max-summary",
	"severity":     "severity",
	"verbose":      "verbose",
	"ignore_file":  "ignore-file",
	"metrics_file": "metrics-file",
	"log_file":     "log-file",
}

// initConfig reads the config file, environment and flags, then sets up logging.
func initConfig(cmd *cobra.Command, _ []string) error {
	for key, name := range flagBindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}

	if err := config.Load(cfgFile); err != nil {
		return err
	}
	if err := config.ValidateConfig(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	settings := config.Current()
	logCloser = telemetry.InitLogger(cmd.ErrOrStderr(), settings.Verbose, settings.LogFile)
	return nil
}
