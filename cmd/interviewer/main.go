package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dkeye/interviewer/internal/adapters/backend"
	"github.com/dkeye/interviewer/internal/adapters/capture"
	"github.com/dkeye/interviewer/internal/adapters/rtc"
	"github.com/dkeye/interviewer/internal/adapters/tokenstore"
	"github.com/dkeye/interviewer/internal/adapters/transcript"
	"github.com/dkeye/interviewer/internal/app/orch"
	"github.com/dkeye/interviewer/internal/config"
	"github.com/dkeye/interviewer/internal/core"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/dkeye/interviewer/internal/logging"
	"github.com/dkeye/interviewer/internal/ui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "interviewer",
		Short:         "Voice interview client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default config/config.$CONFIG_ENV.yaml)")

	root.AddCommand(newTUICmd(&configFile))
	root.AddCommand(newLoginCmd(&configFile))
	root.AddCommand(newRegisterCmd(&configFile))
	root.AddCommand(newLogoutCmd(&configFile))
	root.AddCommand(newWhoamiCmd(&configFile))
	return root
}

func loadConfig(configFile string) (*config.Config, error) {
	logging.Setup(os.Stderr, "release")
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	logging.Level(cfg.Mode)
	return cfg, nil
}

func newManager(cfg *config.Config) *orch.Manager {
	tokens := tokenstore.NewFileStore(cfg.Auth.TokenFile)
	client := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, tokens)
	devices := capture.NewDevices(capture.Config{
		AudioSource: cfg.Media.AudioSource,
		VideoSource: cfg.Media.VideoSource,
		FrameSize:   cfg.Media.FrameSize,
	})
	return orch.New(orch.Deps{
		Backend: client,
		Auth:    client,
		Tokens:  tokens,
		NewMedia: func() core.MediaNegotiator {
			return rtc.NewNegotiator(rtc.Config{
				OfferURL:     cfg.Media.OfferURL,
				ICEServers:   cfg.Media.ICEServers,
				OfferTimeout: cfg.Media.OfferTimeout,
			}, devices)
		},
		NewTranscript: func() core.TranscriptChannel {
			return transcript.NewChannel(transcript.Config{
				URL:              cfg.Transcript.URL,
				ReadLimit:        cfg.Transcript.ReadLimit,
				HandshakeTimeout: cfg.Transcript.HandshakeTimeout,
			})
		},
		Policy: orch.Policy{
			ResultDelay:    cfg.Session.ResultDelay,
			ResultAttempts: cfg.Session.ResultAttempts,
			ResultBackoff:  cfg.Session.ResultBackoff,
		},
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newTUICmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the interview terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			// The terminal belongs to the UI from here on.
			closer, err := logging.ToFile(cfg.LogFile, cfg.Mode)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, cancel := signalContext()
			defer cancel()
			return ui.Run(ctx, newManager(cfg))
		},
	}
}

func newLoginCmd(configFile *string) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			m := newManager(cfg)
			defer m.Close()
			if err := m.Login(ctx, username, passwordOrEnv(password)); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", m.Snapshot().User.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (or INTERVIEWER_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newRegisterCmd(configFile *string) *cobra.Command {
	var creds domain.Credentials
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			m := newManager(cfg)
			defer m.Close()
			creds.Password = passwordOrEnv(creds.Password)
			if err := m.Register(ctx, creds); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "registered and signed in as %s\n", m.Snapshot().User.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "account password (or INTERVIEWER_PASSWORD)")
	cmd.Flags().StringVar(&creds.FullName, "full-name", "", "display name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			m := newManager(cfg)
			defer m.Close()
			if err := m.Logout(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoamiCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			m := newManager(cfg)
			defer m.Close()
			if err := m.Resume(ctx); err != nil {
				return err
			}
			u := m.Snapshot().User
			if u.FullName != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", u.Username, u.FullName)
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), u.Username)
			return nil
		},
	}
}

func passwordOrEnv(p string) string {
	if p != "" {
		return p
	}
	return os.Getenv("INTERVIEWER_PASSWORD")
}
