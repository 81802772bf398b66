// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/wealthwarriors/wealthcoach/pkg/extensions"
	"github.com/wealthwarriors/wealthcoach/pkg/logging"
	"github.com/wealthwarriors/wealthcoach/services/cache"
	"github.com/wealthwarriors/wealthcoach/services/chat/handlers"
	"github.com/wealthwarriors/wealthcoach/services/chat/routes"
	"github.com/wealthwarriors/wealthcoach/services/chat/session"
	"github.com/wealthwarriors/wealthcoach/services/llm"
	"github.com/wealthwarriors/wealthcoach/services/rag"
)

const serviceName = "wealthcoach-chat"

// initTracer sets up the OTLP trace exporter. Tracing is optional: when no
// collector endpoint is configured the service runs without it.
func initTracer(ctx context.Context) (func(context.Context), error) {
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return func(context.Context) {}, nil
	}

	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("Failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient builds the vector store client from WEAVIATE_SERVICE_URL.
// A missing or invalid URL puts the service in lightweight mode: chat works,
// retrieval augmentation is off.
func newWeaviateClient(ctx context.Context) *weaviate.Client {
	weaviateURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set. Running in lightweight mode (chat only).")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running in lightweight mode.",
			"url", weaviateURL, "error", err)
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return nil
	}
	if err := rag.EnsureSchema(ctx, client); err != nil {
		slog.Warn("Failed to ensure Weaviate schema", "error", err)
	}
	return client
}

func runServe(ctx context.Context) error {
	appLogger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: serviceName,
		JSON:    true,
		LogDir:  os.Getenv("LOG_DIR"),
	})
	defer appLogger.Close()
	slog.SetDefault(appLogger.Slog())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup, err := initTracer(ctx)
	if err != nil {
		return err
	}
	defer cleanup(context.Background())

	// Cache backend.
	cacheConfig := cache.DefaultConfig()
	if path := os.Getenv("CACHE_DB_PATH"); path != "" {
		cacheConfig.Path = path
	}
	db, err := cache.Open(cacheConfig)
	if err != nil {
		return err
	}
	defer db.Close()
	gc, err := cache.NewGCRunner(db, cacheConfig.GCInterval, cacheConfig.GCDiscardRatio, slog.Default())
	if err != nil {
		return err
	}
	gc.Start()
	defer gc.Stop()
	store := cache.NewBadgerStore(db)

	// LLM gateway.
	llmClient, err := llm.NewOpenAIClient()
	if err != nil {
		return err
	}
	counter, err := llm.NewTokenCounter(llmClient.ModelName())
	if err != nil {
		return err
	}
	prices := llm.DefaultPriceTable
	if pricesFile := os.Getenv("MODEL_PRICES_FILE"); pricesFile != "" {
		prices, err = llm.LoadPriceTable(pricesFile)
		if err != nil {
			return err
		}
	}
	responseCache := cache.NewResponseCache(store, llmClient.ModelName(), cache.DefaultResponseTTL)
	gateway := llm.NewGateway(llmClient, responseCache, counter, prices.Estimate)

	// Retrieval stack, when Weaviate is reachable.
	var retriever *rag.Retriever
	if weaviateClient := newWeaviateClient(ctx); weaviateClient != nil {
		embedder, err := rag.NewOpenAIEmbedder()
		if err != nil {
			return err
		}
		embedCache := cache.NewEmbeddingCache(store, embedder.ModelName(), cache.DefaultEmbeddingTTL)
		retriever = rag.NewRetriever(
			rag.NewCachedEmbedder(embedder, embedCache),
			rag.NewWeaviateStore(weaviateClient, ""),
		)
	}

	opts := extensions.DefaultOptions()
	deps := &handlers.Deps{
		Gateway:   gateway,
		Retriever: retriever,
		Auth:      opts.AuthProvider,
		Profiles:  opts.ProfileStore,
		Messages:  opts.MessageStore,
		Registry:  session.NewRegistry(),
	}

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	routes.SetupRoutes(router, deps)

	port := os.Getenv("CHAT_PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("Starting chat server", "port", port, "model", llmClient.ModelName())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		slog.Info("Shutting down chat server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
