package cli

import (
	"os"

	"learnpath-quiz/internal/backend"
	"learnpath-quiz/internal/config"
	"learnpath-quiz/internal/logging"
	"learnpath-quiz/internal/profile"

	"github.com/spf13/cobra"
)

var (
	port        string
	configPath  string
	profilePath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envPort := os.Getenv("PORT")
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:           "quizctl",
		Short:         "Timed quizzes: backend service and terminal client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&port, "port", envPort, "port to listen on")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&profilePath, "profile", "", "path to the profile file (default ~/.learnpath/profile.yaml)")

	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewSeedCmd(&configPath))
	cmd.AddCommand(NewQuizzesCmd(&configPath))
	cmd.AddCommand(NewTakeCmd(&configPath))
	cmd.AddCommand(NewResultCmd(&configPath))
	cmd.AddCommand(NewLoginCmd(&configPath))
	cmd.AddCommand(NewLogoutCmd(&configPath))
	return cmd
}

// loadConfig reads the config and sets up logging from it.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	logging.Init(cfg.Log.Level, cfg.Log.Pretty)
	return cfg, nil
}

func loadProfile(cfg config.Config) (*profile.Context, error) {
	path := profilePath
	if path == "" {
		path = cfg.Profile.Path
	}
	if path == "" {
		path = profile.DefaultPath()
	}
	p := profile.NewContext(path)
	if err := p.Load(); err != nil {
		return nil, err
	}
	return p, nil
}

// newBackendClient builds a REST client acting as the logged-in user, if any.
func newBackendClient(cfg config.Config) (*backend.Client, error) {
	p, err := loadProfile(cfg)
	if err != nil {
		return nil, err
	}
	baseURL := cfg.Backend.URL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return backend.NewClient(baseURL, config.TTLDuration(cfg.Backend.Timeout, 0), p), nil
}
