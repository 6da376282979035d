package main

import (
	"context"
	"log"
	"strings"

	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/ai"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/coach"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/config"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/db"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/httpapi"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/store/rabbitmq"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/store/redisstore"
)

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	return reg
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	provider, err := newRegistry(cfg).Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	var cache coach.ScenarioCache
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ScenarioCacheTTL)
	if err := rds.Ping(context.Background()); err != nil {
		log.Printf("redis unavailable, scenario cache disabled: %v", err)
	} else {
		cache = rds
	}

	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, async feedback disabled: %v", err)
		rabbit = nil
	} else {
		defer rabbit.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, provider, cache, rabbit)
	log.Printf("server listening addr=%s provider=%s", cfg.Addr, cfg.AIProvider)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
