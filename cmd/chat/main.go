package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chat-sync/bus"
	"chat-sync/domain/event"
	"chat-sync/moderation"
	"chat-sync/runtime/workers"
	"chat-sync/session"
	"chat-sync/store"
	"chat-sync/transport"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the client lifecycle.
// Returning the error to main ensures all defers execute before the
// process exits, so the store and the connection close cleanly.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Shared store (BadgerDB)
	sharedStore, err := store.Open(config.StorePath, log)
	if err != nil {
		return fmt.Errorf("shared store opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing shared store...")
		_ = sharedStore.Close()
	}()

	// 3. Optional outbound moderation
	var moderator *moderation.Moderator
	if config.CensoredWordsDir != "" {
		mask, err := maskRune(config.MaskCharacter)
		if err != nil {
			return err
		}
		list, err := moderation.LoadWords(os.DirFS(config.CensoredWordsDir), ".")
		if err != nil {
			return fmt.Errorf("loading censored words: %w", err)
		}
		log.Info(fmt.Sprintf("%d censored words loaded [%s]",
			len(list.Words), strings.Join(list.Languages, ",")))
		if moderator, err = moderation.NewModerator(list.Words, mask); err != nil {
			return err
		}
	}

	// 4. Core wiring: bus, transports, session
	eventBus := bus.New(log)
	live := transport.NewLive(log, eventBus, config.HubURL,
		config.ConnectTimeout, config.ReconnectBudget)
	simulated := transport.NewSimulated(log, eventBus, sharedStore.NewContext())

	sess, err := session.New(log, eventBus, live, simulated,
		sharedStore.NewContext(), moderator, config.ConnectTimeout)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing session...")
		_ = sess.Close()
	}()

	// 5. Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("session failed to start: %w", err)
	}
	color.Cyan.Printf("Status: %s\n", sess.StatusBadge())

	// 6. Background workers under supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewHeartbeatWorker(log, sess, config.HeartbeatInterval),
		workers.NewStoreGCWorker(log, sharedStore, config.StoreGCInterval),
	)
	go sup.Run(ctx)
	defer sup.Stop()

	// 7. Join, then read commands until EOF or signal
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	username, err := promptJoin(ctx, sess, scanner)
	if err != nil {
		return err
	}
	printer := newPrinter(username)
	printer.attach(eventBus)

	color.Green.Printf("Joined as %s (%s). /image <path>, /users, /find <terms>, /typing on|off, /quit\n",
		username, sess.StatusBadge())

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		if err := handleCommand(ctx, sess, line); err != nil {
			color.Red.Printf("Error: %v\n", err)
		}
	}

	log.Info("Client stopped cleanly")
	return scanner.Err()
}

func promptJoin(ctx context.Context, sess *session.Session, scanner *bufio.Scanner) (string, error) {
	for {
		color.Cyan.Print("Choose a username: ")
		if !scanner.Scan() {
			return "", fmt.Errorf("no username provided")
		}
		raw := scanner.Text()
		if err := sess.Join(ctx, raw); err != nil {
			color.Red.Printf("Cannot join: %v\n", err)
			continue
		}
		return strings.TrimSpace(raw), nil
	}
}

func handleCommand(ctx context.Context, sess *session.Session, line string) error {
	switch {
	case strings.HasPrefix(line, "/image "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/image "))
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return sess.SendImage(ctx, data)

	case line == "/users":
		users := sess.Presence()
		color.Yellow.Printf("%d user(s) online with you\n", len(users)+1)
		for _, u := range users {
			fmt.Printf("  - %s\n", u)
		}
		return nil

	case strings.HasPrefix(line, "/find"):
		hits, err := sess.Search(ctx, line)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			color.Yellow.Println("No matching messages")
			return nil
		}
		for _, hit := range hits {
			fmt.Printf("  [%s] %s: %s\n",
				hit.Timestamp.Format("15:04:05"), hit.User, hit.Text)
		}
		return nil

	case line == "/typing on":
		sess.SetTyping(ctx, true)
		return nil
	case line == "/typing off":
		sess.SetTyping(ctx, false)
		return nil

	default:
		return sess.SendText(ctx, line)
	}
}

// printer renders inbound events. Own messages are skipped; the user
// just typed them.
type printer struct {
	username string
}

func newPrinter(username string) *printer {
	return &printer{username: username}
}

func (p *printer) attach(b *bus.Bus) {
	b.Subscribe(event.KindMessageReceived, p.onEvent)
	b.Subscribe(event.KindUserJoined, p.onEvent)
	b.Subscribe(event.KindUserLeft, p.onEvent)
	b.Subscribe(event.KindTypingChanged, p.onEvent)
	b.Subscribe(event.KindConnectionState, p.onEvent)
}

func (p *printer) onEvent(e event.DomainEvent) {
	switch evt := e.(type) {
	case event.MessageReceived:
		msg := evt.Message
		if msg.User == p.username {
			return
		}
		stamp := msg.Timestamp.Format("15:04:05")
		if msg.IsImage() {
			color.Magenta.Printf("[%s] %s sent an image (%d chars)\n",
				stamp, msg.User, len(msg.Image))
			return
		}
		color.Green.Printf("[%s] %s: %s\n", stamp, msg.User, msg.Text)
	case event.UserJoined:
		color.Yellow.Printf("* %s joined the chat\n", evt.User)
	case event.UserLeft:
		color.Yellow.Printf("* %s left the chat\n", evt.User)
	case event.TypingChanged:
		if evt.Typing {
			color.Gray.Printf("%s is typing...\n", evt.User)
		}
	case event.ConnectionStateChanged:
		color.Cyan.Printf("* connection: %s\n", evt.State)
	}
}
