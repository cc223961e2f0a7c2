// README: Entry point; loads config, wires storage, models, search and the event bus, then serves HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tripmate/internal/agent"
	"tripmate/internal/ai"
	"tripmate/internal/config"
	"tripmate/internal/eventbus"
	httptransport "tripmate/internal/http"
	"tripmate/internal/infra"
	"tripmate/internal/maps"
	"tripmate/internal/modules/conversation"
	"tripmate/internal/modules/preference"
	"tripmate/internal/modules/session"
	"tripmate/internal/search"
	"tripmate/internal/store"
	"tripmate/internal/turnlock"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("tripmate exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Warn("store close", "error", err)
		}
	}()
	logger.Info("store ready", "driver", cfg.Store.Driver)

	var locker turnlock.Locker
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = turnlock.NewRedisLocker(rdb, cfg.Redis.LockTTL, logger)
		logger.Info("shared turn lock enabled", "addr", cfg.Redis.Addr)
	}

	provider, err := newProvider(ctx, cfg.AI)
	if err != nil {
		return err
	}
	defer provider.Close()
	assistant := ai.NewAssistant(provider, logger)

	facade, err := newSearch(cfg.Maps, assistant, logger)
	if err != nil {
		return err
	}

	bus := eventbus.NewBus(eventbus.Config{
		HeartbeatInterval: cfg.Events.HeartbeatInterval,
		QueueLimit:        cfg.Events.QueueLimit,
	}, logger)
	defer bus.Close()

	prefs := preference.NewService(st, cfg.Agent.DefaultOrigin, logger)
	convs := conversation.NewService(st, logger)
	sessions := session.NewService(st, logger)

	a := agent.NewAgent(agent.Deps{
		Assistant:     assistant,
		Conversations: convs,
		Preferences:   prefs,
		Sessions:      sessions,
		Search:        facade,
		Bus:           bus,
		Locker:        locker,
		Logger:        logger,
		Config: agent.Config{
			ContextMessages: cfg.Agent.ContextMessages,
			TurnTimeout:     cfg.Agent.TurnTimeout,
		},
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Agent:         a,
		Bus:           bus,
		Conversations: convs,
		Preferences:   prefs,
		Sessions:      sessions,
		Search:        facade,
		DB:            st,
		DBType:        string(cfg.Store.Driver),
		Version:       version,
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		Logger:        logger,
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router, cfg.HTTP.ShutdownTimeout, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		// Ends open event streams so the server can drain.
		bus.Close()
		return nil
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StorePostgres:
		pool, err := infra.NewDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(ctx, pool)
	case config.StoreMongo:
		client, err := infra.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return store.NewMongoStore(ctx, client, cfg.MongoDatabase)
	case config.StoreMemory, "":
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("%w: store driver %q", config.ErrInvalid, cfg.Driver)
}

type closingProvider interface {
	ai.Provider
	io.Closer
}

func newProvider(ctx context.Context, cfg config.AIConfig) (closingProvider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return ai.NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case config.ProviderGemini:
		return ai.NewGeminiProvider(ctx, cfg.GeminiKey, cfg.GeminiModel)
	}
	return nil, errors.New("unknown llm provider: " + string(cfg.Provider))
}

// newSearch answers from the model, with Google Places and road estimates
// layered on when a Maps key is configured.
func newSearch(cfg config.MapsConfig, assistant *ai.Assistant, logger *slog.Logger) (*search.Facade, error) {
	var web search.WebSearcher = search.NewCompletionSearcher(assistant)
	if cfg.APIKey == "" {
		return search.NewFacade(web, assistant, logger), nil
	}

	places, err := maps.NewPlacesService(cfg.APIKey, cfg.Region)
	if err != nil {
		return nil, err
	}
	routes, err := maps.NewRouteService(cfg.APIKey, cfg.Region)
	if err != nil {
		return nil, err
	}
	logger.Info("google maps search enabled", "region", cfg.Region)
	return search.NewFacade(search.NewPlacesSearcher(places, web, logger), assistant, logger,
		search.WithRouteEstimator(routes)), nil
}
