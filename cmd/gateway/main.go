// Command gateway serves the math tutor agent over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CodeSistency/agentTemplate/gateway"
	"github.com/CodeSistency/agentTemplate/pkg/llmfactory"
	"github.com/CodeSistency/agentTemplate/store"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/CodeSistency/agentTemplate", "gateway/cmd")

const shutdownTimeout = 10 * time.Second

func main() {
	cfgFile := flag.String("cfg", "", "gateway configuration file")
	envFile := flag.String("env", ".env", "environment file, ignored when missing")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if *debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	}

	if err := run(*cfgFile, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %+v\n", err)
		os.Exit(1)
	}
}

func run(cfgFile, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to load %s", envFile)
	}

	cfg, err := gateway.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	ttl, err := cfg.Store.TTLDuration()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := llmfactory.Load(cfg.LLMConfig)
	if err != nil {
		return errors.WithMessage(err, "failed to load LLM configuration")
	}
	llm, err := f.AssistantModel(cfg.Assistant)
	if err != nil {
		return errors.WithMessage(err, "failed to create model")
	}

	st, err := newStore(ctx, cfg.Store, ttl)
	if err != nil {
		return err
	}

	tools := gateway.NewToolServer()
	invoker, err := gateway.NewInvoker(ctx, cfg.Tools, tools)
	if err != nil {
		return err
	}
	agent, err := gateway.NewAgent(llm, invoker, cfg.RecursionLimit)
	if err != nil {
		return err
	}

	l, err := gateway.Listen(cfg.Host, cfg.Port, cfg.PortAttempts)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           gateway.NewServer(cfg, agent, st, tools),
		ReadHeaderTimeout: 10 * time.Second,
	}

	addr := l.Addr().String()
	fmt.Printf("%s v%s\n", gateway.ServiceName, gateway.Version)
	fmt.Printf("  model:     %s (%s)\n", llm.GetName(), llm.GetProviderType())
	fmt.Printf("  tools:     %s\n", cfg.Tools.Mode)
	fmt.Printf("  store:     %s\n", cfg.Store.Kind)
	fmt.Printf("  endpoints: http://%s/v1/chat, http://%s/v1/chats, http://%s/mcp, http://%s/health\n", addr, addr, addr, addr)

	if ttl > 0 {
		go gateway.RunCleanup(ctx, st, ttl/4, ttl)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(l)
	}()

	select {
	case err = <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	logger.KV(xlog.INFO, "status", "shutting_down", "addr", addr)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "failed to shutdown")
	}
	return nil
}

func newStore(ctx context.Context, cfg gateway.StoreConfig, ttl time.Duration) (store.ConversationStore, error) {
	if cfg.Kind != gateway.StoreRedis {
		return store.NewMemoryStore(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	return store.NewRedisStore(client, cfg.Prefix, ttl), nil
}
