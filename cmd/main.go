package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sitechat-rag/internal/answer"
	"sitechat-rag/internal/config"
	"sitechat-rag/internal/embedding"
	"sitechat-rag/internal/llmservice"
	"sitechat-rag/internal/rag"
	"sitechat-rag/internal/server"
	"sitechat-rag/internal/store"
	"sitechat-rag/internal/store/chromem"
	"sitechat-rag/internal/store/pg"
	"sitechat-rag/internal/store/qdrant"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()

	corpus, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening corpus store")
	}
	defer corpus.Close()

	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	chat, err := llmservice.New(&cfg.ChatLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chat model")
	}

	svc := rag.NewService(corpus, embedder,
		answer.NewFAQResponder(chat),
		answer.NewProductResponder(chat),
		&cfg.RAG)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(svc).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("storage", cfg.Storage.Driver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.CorpusStore, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		st, err := pg.Connect(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := st.Init(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "chromem":
		return chromem.New(cfg.Storage.Path)
	case "qdrant":
		st, err := qdrant.New(&cfg.Storage)
		if err != nil {
			return nil, err
		}
		if err := st.Init(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
