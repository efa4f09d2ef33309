package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"reifydb/internal/adminhttp"
	"reifydb/internal/backend"
	"reifydb/internal/backend/memkv"
	"reifydb/internal/backend/sqlitekv"
	"reifydb/internal/catalog"
	"reifydb/internal/cdc"
	"reifydb/internal/cdcrpc"
	"reifydb/internal/commitlog"
	"reifydb/internal/config"
	"reifydb/internal/logging"
	"reifydb/internal/mvcc"
	"reifydb/internal/row"
	"reifydb/internal/session"
	"reifydb/internal/store"
)

type serveFlags struct {
	configPath string
	httpAddr   string
	grpcAddr   string
}

func serveCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a reifydb node",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to reifydb.toml (defaults to built-in configuration)")
	cmd.Flags().StringVar(&flags.httpAddr, "http-addr", ":8090", "address for the §6 HTTP admin surface")
	cmd.Flags().StringVar(&flags.grpcAddr, "grpc-addr", ":8091", "address for the CDC watermark gRPC service")

	return cmd
}

func runServe(flags *serveFlags) error {
	log := logging.New("reifydb")

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	hot, err := openBackend(cfg.Store.HotBackend, cfg.Store.WarmPath)
	if err != nil {
		return fmt.Errorf("open hot backend: %w", err)
	}

	st := store.New(hot, log)
	if cfg.Store.WarmBackend != "" && cfg.Store.WarmBackend != cfg.Store.HotBackend {
		warm, err := openBackend(cfg.Store.WarmBackend, cfg.Store.WarmPath)
		if err != nil {
			return fmt.Errorf("open warm backend: %w", err)
		}
		st = st.WithWarm(warm)
	}
	if cfg.Store.ColdBackend != "" {
		cold, err := openBackend(cfg.Store.ColdBackend, cfg.Store.ColdPath)
		if err != nil {
			return fmt.Errorf("open cold backend: %w", err)
		}
		st = st.WithCold(cold)
	}

	oracle := mvcc.New(log)
	names := memkv.New()
	cat := catalog.New(names.Single(), names.Single(), log)
	pool := row.NewPool()

	namespace, err := cat.Namespaces.Create(1, 1, 0, "default", catalog.NamespaceDef{ID: 1, Name: "default"})
	if err != nil {
		return fmt.Errorf("create default namespace: %w", err)
	}

	dispatcher := commitlog.NewDispatcher(cfg.CDC.Shards, hot.CDC(), cdc.Encode, cfg.CDC.BatchWindow.Duration, cfg.CDC.MaxBatch, log)
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("start CDC dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	sess := session.New(cat, st, oracle, pool, namespace.ID)
	httpServer := adminhttp.New(sess)

	grpcServer := grpc.NewServer()
	cdcrpc.RegisterWatermarkService(grpcServer, cdcrpc.NewWatermarkServer(dispatcher))

	listener, err := net.Listen("tcp", flags.grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", flags.grpcAddr, err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- grpcServer.Serve(listener) }()
	go func() { errCh <- httpServer.Start(flags.httpAddr) }()

	log.WithField("http_addr", flags.httpAddr).WithField("grpc_addr", flags.grpcAddr).Info("reifydb node listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
		grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

func openBackend(kind, path string) (backend.Backend, error) {
	switch kind {
	case "", "memory":
		return memkv.New(), nil
	case "sqlite":
		return sqlitekv.Open(path)
	default:
		return nil, fmt.Errorf("unsupported backend kind %q", kind)
	}
}
