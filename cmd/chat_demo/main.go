// README: Terminal chat against an in-memory agent; streams each turn's events to stdout.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"tripmate/internal/agent"
	"tripmate/internal/ai"
	"tripmate/internal/config"
	"tripmate/internal/eventbus"
	"tripmate/internal/infra"
	"tripmate/internal/modules/conversation"
	"tripmate/internal/modules/preference"
	"tripmate/internal/modules/session"
	"tripmate/internal/search"
	"tripmate/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	cfg.Log.Level = "warn"
	logger := infra.NewLogger(os.Stderr, cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var provider ai.Provider
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		p, err := ai.NewGeminiProvider(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiModel)
		if err != nil {
			log.Fatalf("Failed to initialize AI provider: %v", err)
		}
		defer p.Close()
		provider = p
	default:
		provider = ai.NewOpenAIProvider(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.OpenAIModel)
	}

	st := store.NewMemoryStore()
	assistant := ai.NewAssistant(provider, logger)
	prefs := preference.NewService(st, cfg.Agent.DefaultOrigin, logger)
	a := agent.NewAgent(agent.Deps{
		Assistant:     assistant,
		Conversations: conversation.NewService(st, logger),
		Preferences:   prefs,
		Sessions:      session.NewService(st, logger),
		Search:        search.NewFacade(search.NewCompletionSearcher(assistant), assistant, logger),
		Logger:        logger,
	})

	const sessionID = "demo"
	fmt.Println("Plan a trip. Empty line or Ctrl-C to quit.")
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !in.Scan() {
			return
		}
		msg := strings.TrimSpace(in.Text())
		if msg == "" {
			return
		}
		for ev := range a.ProcessMessageStream(ctx, sessionID, msg) {
			switch p := ev.Payload.(type) {
			case eventbus.Action:
				fmt.Printf("  [%s]\n", p.Description)
			case eventbus.Memory:
				fmt.Printf("  [remembered %s]\n", strings.Join(preference.SortedKeys(p.Updates), ", "))
			case eventbus.ResponseStart:
				fmt.Print("Agent: ")
			case eventbus.Token:
				fmt.Print(p.Content)
			case eventbus.Error:
				fmt.Printf("\nError: %s\n", p.Message)
			case eventbus.Complete:
				fmt.Println()
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}
