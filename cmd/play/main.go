// Package main provides a developer console that exercises the full
// pipeline: content loading, session, model calls, and narrated output.
// The production UI is an external consumer of the session library; this
// binary exists for end-to-end play testing.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kvance/estate/internal/config"
	"github.com/kvance/estate/internal/game/event"
	"github.com/kvance/estate/internal/game/session"
	"github.com/kvance/estate/internal/game/world"
	"github.com/kvance/estate/internal/llm"
	"github.com/kvance/estate/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	seed := flag.Int64("seed", time.Now().UnixNano(), "schedule randomization seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	original, err := world.LoadFromDir(cfg.Content.Dir)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}

	client, err := llm.NewAnthropicClient(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("creating model client", zap.Error(err))
	}

	sess, err := session.New(original, client, rand.New(rand.NewSource(*seed)), logger)
	if err != nil {
		logger.Fatal("creating session", zap.Error(err))
	}

	fmt.Println("estate console. /undo, /redo, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			return
		case "/undo":
			if ok, err := sess.Undo(); err != nil {
				fmt.Printf("undo failed: %v\n", err)
			} else if !ok {
				fmt.Println("nothing to undo")
			}
			continue
		case "/redo":
			if ok, err := sess.Redo(); err != nil {
				fmt.Printf("redo failed: %v\n", err)
			} else if !ok {
				fmt.Println("nothing to redo")
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		events, err := sess.Run(ctx, line)
		cancel()
		if err != nil {
			fmt.Printf("turn failed: %v\n", err)
			continue
		}
		render(sess, events)
	}
}

func render(sess *session.Session, events []*event.StoryEvent) {
	for _, ev := range events {
		if ev.LLMError != nil {
			fmt.Printf("  [error: %s — %s]\n", ev.LLMError.Context, ev.LLMError.Description)
			continue
		}
		for _, a := range ev.Actions {
			switch a.Kind {
			case event.ActionDialog:
				speaker := displayName(sess, a.ID)
				fmt.Printf("  %s: %q\n", speaker, a.Text)
			case event.ActionDescription:
				fmt.Printf("  %s\n", a.Text)
			case event.ActionAttempt:
				if a.Resolution != "" {
					fmt.Printf("  %s\n", a.Resolution)
				} else {
					fmt.Printf("  (attempting: %s)\n", a.Attempt)
				}
			}
		}
		if ev.Suggestions != "" {
			fmt.Printf("  [hint: %s]\n", ev.Suggestions)
		}
	}
}

func displayName(sess *session.Session, id string) string {
	if e, ok := sess.World().Get(id); ok && e.Name != "" {
		return e.Name
	}
	return id
}
