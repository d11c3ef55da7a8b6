package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"kcgateway/internal/app"
	"kcgateway/internal/config"
)

// Version information (set via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	configFile string
	logLevel   string
	logFormat  string
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitConfig  = 3
)

var rootCmd = &cobra.Command{
	Use:   "kcgateway",
	Short: "Keycloak session gateway",
	Long: `HTTP gateway that authenticates browser sessions against a Keycloak
realm using the OAuth2 Authorization Code flow.

The gateway redirects unauthenticated users to Keycloak, exchanges the
returned code for tokens, binds the resulting identity to a server-side
session and guards the application routes behind that session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long: `Start the gateway process.

The gateway:
  - Discovers the Keycloak realm endpoints via OIDC discovery
  - Serves the login, callback and logout endpoints
  - Maintains server-side sessions with an idle timeout
  - Guards API routes behind session authentication`,
	RunE: runServe,
}

// overrideExitCode is set by subcommands (check-config) so main() can call
// os.Exit() after cobra finishes.  This avoids calling os.Exit() inside RunE
// which would bypass deferred functions.  -1 means "use default".
var overrideExitCode = -1

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display version, commit hash, and build date.`,
	Run:   runVersion,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration file",
	Long: `Load and validate the configuration file without starting the gateway.

Checks for:
  - Valid YAML syntax
  - Required fields present
  - Valid URLs and ranges
  - Logical consistency

Exit codes:
  0 = Configuration is valid
  3 = Configuration error`,
	RunE: runCheckConfig,
}

func init() {
	// Global flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "/etc/kcgateway/config.yaml",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error) - overrides config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (json, text) - overrides config file")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}

	// If a subcommand set a specific exit code, use it.
	// This is done outside RunE so deferred functions run properly.
	if overrideExitCode >= 0 {
		os.Exit(overrideExitCode)
	}
}

// runServe starts the gateway
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override log settings from flags if provided
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	config.SetupLogging(&cfg.Log)

	slog.Info("starting Keycloak session gateway",
		"version", version,
		"commit", commit,
		"build_date", buildDate,
		"config", configFile,
	)

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to create gateway", "error", err)
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	return a.Run()
}

// runVersion displays version information
func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("kcgateway version %s\n", version)
	fmt.Printf("  Commit:     %s\n", commit)
	fmt.Printf("  Build date: %s\n", buildDate)
	fmt.Printf("  Go version: %s\n", runtime.Version())
}

// runCheckConfig validates the configuration
func runCheckConfig(cmd *cobra.Command, args []string) error {
	fmt.Printf("Checking configuration: %s\n\n", configFile)

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed:\n")
		fmt.Fprintf(os.Stderr, "   %v\n", err)
		overrideExitCode = ExitConfig
		return nil // exit code handled via overrideExitCode
	}

	// Print configuration summary (with secrets redacted)
	fmt.Println("✅ Configuration is valid")
	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  Keycloak Issuer: %s\n", cfg.Keycloak.Issuer())
	fmt.Printf("  Client ID:       %s\n", cfg.Keycloak.ClientID)
	fmt.Printf("  Redirect URI:    %s\n", cfg.Keycloak.RedirectURI)
	fmt.Printf("  Scopes:          %v\n", cfg.Keycloak.Scopes)
	fmt.Printf("  Role Claim:      %s\n", cfg.Keycloak.RoleClaim)
	fmt.Printf("  HTTP Listen:     %s\n", cfg.Listen.HTTP)
	fmt.Printf("  Session TTL:     %d seconds\n", cfg.Auth.SessionTTL)
	fmt.Printf("  Cookie Name:     %s\n", cfg.Auth.CookieName)
	fmt.Printf("  Admin Role:      %s\n", cfg.Auth.AdminRole)
	fmt.Printf("  Log Level:       %s\n", cfg.Log.Level)
	fmt.Printf("  Log Format:      %s\n", cfg.Log.Format)
	fmt.Printf("  TLS Enabled:     %v\n", cfg.TLS.Enabled)

	if cfg.Keycloak.ClientSecret != "" {
		fmt.Println("\n  Client Secret:   [SET]")
	} else {
		fmt.Println("\n  Client Secret:   [NOT SET] (public client, PKCE only)")
	}

	fmt.Println("\n✅ Ready to start")

	return nil
}
