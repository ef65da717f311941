// Package cli implements the volunteerhub command-line client.
package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/spf13/cobra"
)

// Streams are the command's standard streams.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// DefaultStreams uses the process's stdin, stdout and stderr.
func DefaultStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

type rootOptions struct {
	configFile  string
	envFile     string
	verbose     bool
	apiURL      string
	backend     string
	sessionFile string
	language    string

	streams Streams
	app     *App
}

// NewRootCommand builds the volunteerhub command tree.
func NewRootCommand(streams Streams) *cobra.Command {
	opts := &rootOptions{streams: streams}

	root := &cobra.Command{
		Use:   "volunteerhub",
		Short: "Command-line client for the volunteer coordination platform",
		Long: `volunteerhub signs in to the platform, keeps the session on disk (or in
Redis) between invocations, and checks which pages the current session may
open using the same navigation rules as the web client.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.open,
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.app != nil {
				opts.app.Close()
			}
		},
	}
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ./volunteerhub.yaml or <user config dir>/volunteerhub/volunteerhub.yaml)")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&opts.apiURL, "api-url", "", "backend base URL, e.g. http://localhost:3000/api")
	flags.StringVar(&opts.backend, "backend", "", "session persistence: file, memory or redis")
	flags.StringVar(&opts.sessionFile, "session-file", "", "session file for the file backend")
	flags.StringVar(&opts.language, "language", "", "default language sent to the backend")

	root.AddCommand(
		newLoginCommand(opts),
		newRegisterCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newNavigateCommand(opts),
		newRoutesCommand(opts),
		newLanguageCommand(opts),
		newMetricsCommand(opts),
	)
	return root
}

func (o *rootOptions) open(cmd *cobra.Command, _ []string) error {
	overrides := make(map[string]any)
	if o.apiURL != "" {
		overrides["api.base_url"] = o.apiURL
	}
	if o.backend != "" {
		overrides["persistence.backend"] = o.backend
	}
	if o.sessionFile != "" {
		overrides["persistence.path"] = o.sessionFile
	}
	if o.language != "" {
		overrides["api.language"] = o.language
	}

	cfg, err := LoadConfig(LoadOptions{
		ConfigFile: o.configFile,
		EnvFile:    o.envFile,
		Overrides:  overrides,
	})
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	app, err := OpenApp(cfg, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	o.app = app
	return nil
}

// resultError turns a failed Result into the command's error.
func resultError(res goVolunteer.Result) error {
	if res.Success {
		return nil
	}
	if res.Message != "" {
		return errors.New(res.Message)
	}
	if res.Err != nil {
		return res.Err
	}
	return errors.New("operation failed")
}
