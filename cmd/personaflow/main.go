package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/personaflow/internal/profile"
	"github.com/hrygo/personaflow/server"
	"github.com/hrygo/personaflow/server/middleware"
	apiv1 "github.com/hrygo/personaflow/server/router/api/v1"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "personaflow",
	Short: "Persona conversational agent that replies in character and recalls its own past.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelInfo
		if viper.GetBool("verbose") {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		prof, err := loadProfile()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		comps, err := openComponents(ctx, prof)
		if err != nil {
			return err
		}
		defer comps.Close()

		api := apiv1.NewAPIV1Service(comps.personas, comps.orchestrator, comps.store, comps.retriever,
			middleware.NewRateLimiter(prof.ChatRequestsPerSec, prof.ChatBurst))
		api.Author = comps.author

		s := server.NewServer(prof, api)
		if err := s.Start(ctx); err != nil {
			return err
		}
		printGreetings(prof, comps)

		<-ctx.Done()
		s.Shutdown(context.Background())
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("backend", "", "recollection backend: chromem, postgres or sqlite")
	flags.String("dsn", "", "database source name for the sql backends")
	flags.String("personas", "", "YAML file with persona profiles and their recollections")
	flags.Bool("verbose", false, "enable debug logging")

	for _, name := range []string{"mode", "addr", "port", "data", "backend", "dsn", "personas", "verbose"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("personaflow")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(serveCmd, newChatCmd(), newSeedCmd(), newAuthorCmd())
}

// loadProfile merges flags and PERSONAFLOW_* variables into a validated profile.
func loadProfile() (*profile.Profile, error) {
	prof := &profile.Profile{
		Mode:                viper.GetString("mode"),
		Addr:                viper.GetString("addr"),
		Port:                viper.GetInt("port"),
		Data:                viper.GetString("data"),
		DSN:                 viper.GetString("dsn"),
		RecollectionBackend: viper.GetString("backend"),
		PersonasFile:        viper.GetString("personas"),
		Version:             version,
	}
	prof.FromEnv()
	if err := prof.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return prof, nil
}

func printGreetings(prof *profile.Profile, comps *components) {
	fmt.Printf("personaflow %s started in %s mode\n", prof.Version, prof.Mode)
	fmt.Printf("Data directory: %s\n", prof.Data)
	fmt.Printf("Recollection backend: %s\n", prof.RecollectionBackend)
	fmt.Printf("Personas loaded: %d\n", len(comps.personas.IDs()))
	if prof.Addr == "" {
		fmt.Printf("Server running on port %d\n", prof.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", prof.Addr, prof.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
