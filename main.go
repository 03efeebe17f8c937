package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-ripple/anim"
	"go-ripple/config"
	"go-ripple/debug"
	"go-ripple/loop"
	"go-ripple/midi"
	"go-ripple/relay"
	"go-ripple/replica"
	"go-ripple/sequencer"
	"go-ripple/theme"
	"go-ripple/tuning"
	"go-ripple/tui"
)

var (
	configFile string
	debugLog   bool
	listenAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "ripple",
		Short:        "grid step sequencer with ripples",
		SilenceUsage: true,
		RunE:         runTUI,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.config/go-ripple/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "write a debug log")

	relayCmd := &cobra.Command{
		Use:   "relay",
		Short: "run the profile relay hub",
		RunE:  runRelay,
	}
	relayCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default from config)")

	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "list MIDI output ports",
		RunE:  listPorts,
	}

	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "generate a new identity secret and store it in the config",
		RunE:  newSecret,
	}

	rootCmd.AddCommand(relayCmd, portsCmd, secretCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if debugLog || cfg.DebugLog != "" {
		if err := debug.Enable(cfg.DebugLog); err != nil {
			return nil, fmt.Errorf("debug log: %w", err)
		}
	}
	return cfg, nil
}

// ensureSecret returns the configured secret, generating and saving one
// on first run
func ensureSecret(cfg *config.Config) (string, error) {
	if cfg.Sync.Secret != "" {
		if err := replica.ValidateSecret(cfg.Sync.Secret); err != nil {
			return "", fmt.Errorf("config secret: %w", err)
		}
		return cfg.Sync.Secret, nil
	}
	secret, err := replica.GenerateSecret()
	if err != nil {
		return "", err
	}
	cfg.Sync.Secret = secret
	if err := cfg.Save(configFile); err != nil {
		return "", fmt.Errorf("save config: %w", err)
	}
	return secret, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer debug.Disable()

	secret, err := ensureSecret(cfg)
	if err != nil {
		return err
	}
	identity, err := replica.NewIdentity(secret)
	if err != nil {
		return err
	}

	db, err := replica.OpenSQLite(cfg.Sync.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	store := replica.NewStore(db, identity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Sync.RelayURL != "" {
		go replica.NewRelayClient(cfg.Sync.RelayURL, store).Run(ctx)
	}

	var palette *theme.Palette
	if cfg.Palette != "" {
		if palette, err = theme.LoadGPL(cfg.Palette); err != nil {
			return err
		}
	}

	synth := midi.NewSynth(cfg.MIDI.PortName, cfg.MIDI.Channel, cfg.MIDI.NoteLength)
	defer midi.Close()

	l := loop.New(loop.Real())
	manager := sequencer.NewManager(l, synth, store, sequencer.Options{
		Size:    cfg.Grid.Size,
		Unit:    cfg.Grid.Unit,
		Variant: anim.Variant(cfg.Grid.Variant),
		Tempo:   cfg.Grid.Tempo,
		Tuning:  tuning.Key(cfg.Grid.Tuning),
		Name:    cfg.Sync.Name,
		Seed:    true,
	})

	m := tui.NewModel(manager, l, theme.New(palette))
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !debug.Enabled() {
		debug.EnableStderr(log.InfoLevel)
	}

	addr := listenAddr
	if addr == "" {
		addr = cfg.Sync.ListenAddr
	}

	srv := &http.Server{Addr: addr, Handler: relay.NewHub()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.WithField("addr", addr).Info("relay listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func listPorts(cmd *cobra.Command, args []string) error {
	defer midi.Close()
	names, err := midi.OutPortNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no MIDI output ports")
		return nil
	}
	for i, name := range names {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func newSecret(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	secret, err := replica.GenerateSecret()
	if err != nil {
		return err
	}
	pub, err := replica.PublicKey(secret)
	if err != nil {
		return err
	}
	cfg.Sync.Secret = secret
	if err := cfg.Save(configFile); err != nil {
		return err
	}
	fmt.Printf("new identity %s\n", pub)
	return nil
}
