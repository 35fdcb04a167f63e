package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"deliveryService/internal/auth"
	"deliveryService/internal/capability"
	"deliveryService/internal/config"
	"deliveryService/internal/db"
	"deliveryService/internal/delivery"
	grpcserver "deliveryService/internal/grpc"
	"deliveryService/internal/httpapi"
	"deliveryService/internal/lifecycle"
	"deliveryService/internal/logx"
	"deliveryService/internal/metrics"
	"deliveryService/repository"
	"deliveryService/repository/dynamostore"
)

// stores bundles whichever backend was selected.
type stores struct {
	orders interface {
		repository.OrderRepositoryI
		repository.AssignedIndexI
	}
	users repository.UserRepositoryI
	close func() error
}

func main() {
	cfg, err := config.LoadForEnvironment(os.Args[1:])
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logx.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	logger.Info("configuration loaded", logx.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Error("open store", logx.String("backend", cfg.Store.Backend), logx.Err(err))
		os.Exit(1)
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("close store", logx.Err(err))
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)

	accounts := auth.NewAccounts(st.users, logger)
	if _, err := accounts.EnsureInitialAdmin(ctx, cfg.Auth.InitialUserPassword); err != nil {
		logger.Error("bootstrap admin", logx.Err(err))
		os.Exit(1)
	}
	verifier := auth.NewVerifier(st.users, logger)

	orders := lifecycle.New(st.orders, logger, m)
	svc := delivery.New(orders, st.orders,
		capability.Keyring{Customers: cfg.Ably.CustomersKey, Riders: cfg.Ably.RidersKey},
		delivery.MapKeys{GoogleMaps: cfg.Maps.GoogleMapsAPIKey, Mapbox: cfg.Maps.MapboxAccessToken},
		delivery.Options{Logger: logger, Recorder: m},
	)

	shutdownGRPC, err := grpcserver.StartGRPC(cfg.GRPC.Address, grpcserver.Deps{
		Delivery: &grpcserver.Server{Delivery: svc},
		Admin:    &grpcserver.AdminServer{Accounts: accounts, Orders: st.orders},
		Verifier: verifier,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("start grpc", logx.Err(err))
		os.Exit(1)
	}
	logger.Info("gRPC server listening", logx.String("address", cfg.GRPC.Address))

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Handlers: httpapi.NewHandlers(svc, accounts, logger),
		Verifier: verifier,
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logger,
	})
	httpSrv := httpapi.NewServer(cfg.HTTP.Address, router)
	httpErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logx.String("address", cfg.HTTP.Address))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-httpErr:
		logger.Error("http server", logx.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", logx.Err(err))
	}
	if err := shutdownGRPC(shutdownCtx); err != nil {
		logger.Warn("grpc shutdown", logx.Err(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		dc := cfg.Store.DynamoDB
		client, err := dynamostore.NewClient(ctx, dc.Region, dc.Endpoint)
		if err != nil {
			return nil, err
		}
		return &stores{
			orders: dynamostore.NewStore(client, dynamostore.Tables{Orders: dc.OrdersTable, Globals: dc.GlobalsTable, Users: dc.UsersTable}),
			users:  dynamostore.NewUsers(client, dc.UsersTable),
			close:  func() error { return nil },
		}, nil
	default:
		d, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return &stores{
			orders: repository.NewOrderRepository(d),
			users:  repository.NewUserRepository(d),
			close:  d.Close,
		}, nil
	}
}
