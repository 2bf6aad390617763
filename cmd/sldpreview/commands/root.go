// Package commands implements the sldpreview command line.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sldpreview/internal/config"
	"sldpreview/internal/domain"
	"sldpreview/internal/logging"
	"sldpreview/internal/service"
	"sldpreview/internal/style"
)

// Version is reported by --version.
var Version = "dev"

// NewRoot builds the command tree. Settings resolve through v: flags, then
// SLDPREVIEW_* environment variables, then the config file, then defaults.
func NewRoot(v *viper.Viper) *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:   "sldpreview",
		Short: "Infer the data a map style needs and preview it against real or synthesized sources",
		Long: `sldpreview reads a style document, infers the attributes and geometry its
symbolizers and filters refer to, and builds a sample feature from them. It can
connect the style to a real data source (PostGIS, MySQL, MongoDB, SQLite,
GeoPackage, GeoJSON) and correct the inferred attribute types against it.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			loaded, err := config.Load(v, configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logging.Setup(loaded.LogLevel, loaded.LogPretty)
			cfg = loaded
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Configuration file path")
	flags.String("data-dir", "", "Directory of the application database")
	flags.String("log-level", "info", "Logging level (trace, debug, info, warn, error, disabled)")
	flags.Bool("log-pretty", true, "Colored console logs instead of JSON")
	flags.String("secret-backend", "keychain", "Where passwords are kept (keychain, env)")
	flags.String("refresh-schedule", "", "Cron expression for refreshing external sources")
	flags.Bool("watch", false, "Reload the document when its file changes")

	v.BindPFlag(config.KeyDataDir, flags.Lookup("data-dir"))
	v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	v.BindPFlag(config.KeyLogPretty, flags.Lookup("log-pretty"))
	v.BindPFlag(config.KeySecretBackend, flags.Lookup("secret-backend"))
	v.BindPFlag(config.KeyRefreshSchedule, flags.Lookup("refresh-schedule"))
	v.BindPFlag(config.KeyWatch, flags.Lookup("watch"))

	current := func() config.Config { return cfg }

	root.AddCommand(
		newInferCommand(),
		newClassifyCommand(),
		newSampleCommand(),
		newSchemaCommand(),
		newConnectCommand(current),
		newCorrectCommand(current),
		newProfileCommand(current),
		newMCPCommand(current),
		newWatchCommand(current),
	)
	return root
}

// ── Shared helpers ─────────────────────────────────────────

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadDocument(path string) (*style.Document, error) {
	doc, err := style.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return doc, nil
}

// newDetachedService builds a preview service with no persistence, for
// commands that only look at one document.
func newDetachedService() *service.PreviewService {
	return service.NewPreviewService(nil, nil, nil, service.LogEmitter{})
}

// parseAssignments splits key=value pairs.
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, val, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[strings.TrimSpace(k)] = val
	}
	return out, nil
}

func connectionProperties(pairs []string) (domain.ConnectionProperties, error) {
	m, err := parseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	return domain.ConnectionProperties(m), nil
}
