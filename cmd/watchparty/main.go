package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zmagdon/watchparty/internal/config"
	"github.com/zmagdon/watchparty/internal/history"
	"github.com/zmagdon/watchparty/internal/player"
	"github.com/zmagdon/watchparty/internal/session"
	"github.com/zmagdon/watchparty/internal/ws"
)

const maxBackoff = 30 * time.Second

func main() {
	cfg := config.Load()

	var (
		wsURL = flag.String("ws-url", cfg.BaseURL, "room server base URL (wss://...)")
		room  = flag.String("room", cfg.Room, "room id")
		name  = flag.String("name", cfg.Name, "display name")
		file  = flag.String("file", "", "path to local video file (everyone should pick the same file)")
		debug = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		os.Exit(1)
	}
	if _, err := os.Stat(*file); err != nil {
		fmt.Fprintln(os.Stderr, "file not found:", *file)
		os.Exit(1)
	}

	log := newLogger(*debug)
	defer func() { _ = log.Sync() }()

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		log.Warn("resume store unavailable", zap.Error(err))
		store = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mpv := player.NewMPV()
	if err := mpv.Start(ctx, *file); err != nil {
		log.Fatal("failed to start mpv", zap.Error(err))
	}
	defer mpv.Stop()

	if store != nil {
		if pos, found, err := store.Get(*file); err == nil && found && pos > 0 {
			fmt.Printf("Last watched position for this file: %.0fs (use: seek %.0f)\n", pos, pos)
		}
	}

	sess := session.New(session.Config{
		UserID:            uuid.NewString(),
		Name:              *name,
		HeartbeatInterval: cfg.Heartbeat,
	}, func(ctx context.Context) (ws.Session, error) {
		return ws.Dial(ctx, *wsURL, *room)
	}, mpv, log)

	go printEvents(sess)
	go stdinLoop(ctx, stop, sess, mpv, cfg.SeekStep)

	fmt.Printf("Connecting: %s/room/%s\n", *wsURL, *room)
	runWithBackoff(ctx, sess, log)

	if store != nil {
		if pos, ok := sess.LastPosition(); ok {
			if err := store.Save(*file, *room, pos); err != nil {
				log.Warn("failed to save resume position", zap.Error(err))
			}
		}
		_ = store.Close()
	}
	fmt.Println("Bye.")
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		return zap.Must(zap.NewDevelopment())
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return zap.Must(cfg.Build())
}

// runWithBackoff redials after transport failures with exponential backoff,
// reset whenever a connection held for a while. Returns when the user quits.
func runWithBackoff(ctx context.Context, sess *session.Session, log *zap.Logger) {
	backoff := time.Second
	for {
		started := time.Now()
		err := sess.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > time.Minute {
			backoff = time.Second
		}
		if err != nil {
			fmt.Printf("Disconnected: %v (reconnecting in %s)\n", err, backoff)
		} else {
			fmt.Printf("Disconnected (reconnecting in %s)\n", backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func printEvents(sess *session.Session) {
	for ev := range sess.Events() {
		switch ev.Kind {
		case session.EventStateApplied:
			fmt.Printf("[STATE v%d] playing=%v target=%.2fs by=%s\n", ev.Version, ev.Playing, ev.Target, ev.By)
		case session.EventChat:
			fmt.Printf("[CHAT] %s: %s\n", ev.From, ev.Text)
		case session.EventPresence:
			fmt.Printf("[PRESENCE] %d users: %s\n", len(ev.Users), joinNames(ev.Users))
		case session.EventServerError:
			fmt.Printf("[ERROR] %s: %s\n", ev.Code, ev.Text)
		}
	}
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
