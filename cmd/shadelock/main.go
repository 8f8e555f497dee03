// Command shadelock locks the X session behind a full-screen credential
// prompt. The process exits 0 only after a successful unlock.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/user"

	"golang.org/x/sys/unix"

	"shadelock/internal/auth"
	"shadelock/internal/config"
	"shadelock/internal/logging"
	"shadelock/internal/logind"
	"shadelock/internal/session"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "configuration file (default: "+config.DefaultPath()+")")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("shadelock %s\n", version)
		return 0
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shadelock: %v\n", err)
		return 1
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shadelock: %v\n", err)
		return 1
	}
	defer logger.Close()
	logging.SetDefault(logger)
	log := logger.Logger

	// Pin the address space before the first credential byte exists.
	if cfg.Session.LockMemory {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			log.Warn("mlockall failed, credential memory may reach swap", "error", err)
		}
	}

	account := cfg.Auth.User
	if account == "" {
		account = currentUser()
	}
	if account == "" {
		log.Error("could not determine the account to authenticate")
		return 1
	}

	// Authenticator setup is fatal: a locker that can never accept a
	// credential would lock the user out, not the screen.
	verifier, err := newAuthenticator(cfg, account, log)
	if err != nil {
		log.Error("authenticator setup failed", "backend", cfg.Auth.Backend, "error", err)
		return 1
	}

	var (
		notifier *logind.Notifier
		stop     <-chan struct{}
	)
	if cfg.Session.Logind {
		notifier, err = logind.New(log)
		if err != nil {
			// Best effort, the lock works without logind.
			log.Warn("logind integration unavailable", "error", err)
		} else {
			defer notifier.Close()
			unlockc := make(chan struct{}, 1)
			if err := notifier.SubscribeUnlock(unlockc); err != nil {
				log.Warn("could not subscribe to unlock signal", "error", err)
			} else {
				stop = unlockc
			}
		}
	}

	sess, err := session.New(session.Options{
		Config:        cfg,
		Authenticator: verifier,
		Stop:          stop,
		Logger:        log,
	})
	if err != nil {
		log.Error("session setup failed", "error", err)
		return 1
	}

	if err := sess.Lock(); err != nil {
		log.Error("could not lock the screen", "error", err)
		return 1
	}
	if notifier != nil {
		if err := notifier.SetLocked(true); err != nil {
			log.Warn("could not set locked hint", "error", err)
		}
	}

	runErr := sess.Run()

	if err := sess.Release(); err != nil {
		log.Warn("teardown reported errors", "error", err)
	}
	if notifier != nil {
		if err := notifier.SetLocked(false); err != nil {
			log.Warn("could not clear locked hint", "error", err)
		}
	}

	if runErr != nil {
		log.Error("session ended abnormally", "error", runErr)
		return 1
	}
	return 0
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = cfg.Logging.Output
	if cfg.Logging.FilePath != "" {
		lc.FilePath = cfg.Logging.FilePath
	}
	return logging.New(lc)
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func newAuthenticator(cfg *config.Config, account string, log *slog.Logger) (auth.Authenticator, error) {
	switch cfg.Auth.Backend {
	case "pam":
		return auth.NewPAM(cfg.Auth.PAMService, account, log)
	default:
		return auth.NewShadow(account, nil, log)
	}
}
