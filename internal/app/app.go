package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chatsync/internal/chat"
	"chatsync/internal/config"
	"chatsync/internal/db"
	"chatsync/internal/handlers"
	"chatsync/internal/services"
	"chatsync/internal/transport"
	"chatsync/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// NewLogger builds the process logger.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ResolveIdentity takes the user from the access token, letting explicit
// configuration override username, role and level.
func ResolveIdentity(cfg config.Config) (chat.Identity, error) {
	var id chat.Identity
	if cfg.AccessToken != "" {
		u, err := services.IdentityFromToken(cfg.AccessToken)
		if err != nil && cfg.Username == "" {
			return id, err
		}
		id = chat.Identity{Username: u.Username, Role: u.Role, Level: u.Level}
	}
	if cfg.Username != "" {
		id.Username = cfg.Username
	}
	if cfg.Role != "" {
		id.Role = services.ParseRole(cfg.Role)
	}
	if id.Role == "" {
		id.Role = services.ParseRole("")
	}
	if cfg.Level != 0 {
		id.Level = cfg.Level
	}
	if id.Username == "" {
		return id, chat.ErrNoUsername
	}
	return id, nil
}

// Run starts the client and blocks until SIGINT/SIGTERM.
func Run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(c)
		select {
		case <-c:
			log.Info("gracefully shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	err := Start(ctx, cfg, log)
	log.Info("shutdown complete")
	return err
}

// Start wires transport, session, archive and bridge and runs them until ctx is done.
func Start(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	identity, err := ResolveIdentity(cfg)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	sessionID := uuid.NewString()
	log = log.With("user", identity.Username)

	rooms := services.NewRoomService(cfg.APIURL, cfg.AccessToken, cfg.RequestTimeout).WithLogger(log)
	client := transport.NewClient(transport.Config{
		URL:               cfg.ServerURL,
		Token:             cfg.AccessToken,
		ReconnectInterval: cfg.ReconnectInterval,
	}, log)
	hub := handlers.NewHub(log)

	opts := []chat.Option{
		chat.WithID(sessionID),
		chat.WithEmitter(client),
		chat.WithNotifier(hub),
		chat.WithBackend(rooms),
		chat.WithEvents(client.Events()),
		chat.WithLogger(log),
	}

	if cfg.DatabaseURL != "" {
		if archive, err := openArchive(ctx, cfg.DatabaseURL, sessionID); err != nil {
			utils.LogError(log, err, "transcript archive disabled")
		} else {
			defer db.CloseDB()
			opts = append(opts, chat.WithArchiver(archive))
			log.Info("transcript archive enabled")
		}
	}

	session := chat.NewSession(chat.Config{
		Identity:    identity,
		DedupWindow: cfg.DedupWindow,
		SendTimeout: cfg.SendTimeout,
		AutoScroll:  cfg.AutoScroll,
	}, opts...)

	bridge := handlers.NewBridge(handlers.Deps{
		Session:   session,
		Rooms:     rooms,
		Hub:       hub,
		Secret:    cfg.BridgeSecret,
		Log:       log,
		AccessLog: true,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		return client.Run(gctx)
	})
	g.Go(func() error {
		addr := ":" + strconv.Itoa(cfg.BridgePort)
		log.Info("bridge listening", "addr", addr)
		if err := bridge.Listen(addr); err != nil {
			return fmt.Errorf("bridge: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Close()
		return bridge.ShutdownWithTimeout(5 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openArchive(ctx context.Context, url, sessionID string) (*services.ArchiveService, error) {
	if err := db.InitDB(ctx, url); err != nil {
		return nil, err
	}
	archive := services.NewArchiveService(db.Pool, sessionID)
	schemaCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := archive.EnsureSchema(schemaCtx); err != nil {
		db.CloseDB()
		return nil, err
	}
	return archive, nil
}
