package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
	"syncstream.pro/api"
	"syncstream.pro/config"
	"syncstream.pro/pkg/resolver"
	"syncstream.pro/pkg/security"
	"syncstream.pro/room"
)

var (
	host       string
	port       int
	secretFile string
	staticDir  string
)

// rootCmd starts the server
var rootCmd = &cobra.Command{
	Use:           "syncstream",
	Short:         "Host a synchronized watch room on this machine",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

// Execute is called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "", "interface to listen on (overrides HTTP_HOST)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides HTTP_PORT)")
	rootCmd.Flags().StringVar(&secretFile, "secret-file", "", "path of the instance secret (overrides SECRET_FILE)")
	rootCmd.Flags().StringVar(&staticDir, "static-dir", "", "directory with the UI files (overrides STATIC_DIR)")
}

func run(cmd *cobra.Command, _ []string) error {
	// a missing .env is fine
	_ = godotenv.Load()

	c := config.Get()
	if cmd.Flags().Changed("host") {
		c.HttpHost = host
	}
	if cmd.Flags().Changed("port") {
		c.HttpPort = port
	}
	if cmd.Flags().Changed("secret-file") {
		c.SecretFile = secretFile
	}
	if cmd.Flags().Changed("static-dir") {
		c.StaticDir = staticDir
	}
	log.SetLevel(parseLevel(c.LogLevel))

	secret, created, err := security.LoadOrCreateSecret(c.SecretFile)
	if err != nil {
		return err
	}
	if created {
		log.Infof("new instance secret written to %s", c.SecretFile)
	}

	rooms := room.NewManager(room.Config{
		MaxRooms:        c.MaxRooms,
		DefaultMaxUsers: c.DefaultMaxUsers,
		MaxUsersLimit:   c.MaxUsersLimit,
	}, security.NewHasher(secret, c.BcryptCost), security.NewTokens(secret, c.TokenTTL))
	res := resolver.New(c.ResolverPrimary, c.ResolverFallback, c.ResolverTimeout)

	a := api.New(c, rooms, res)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case err = <-errCh:
		return err
	case sig := <-signals:
		log.Infof("signal %s received, stopping server...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err = a.Close(ctx); err != nil {
		log.Error(err)
	}
	return nil
}

func parseLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
