// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides the entry point of the AetherFlow dashboard API.
//
// The default command wires the configured key-value store, the API server and
// optional metrics and activity log endpoints, serves until SIGINT/SIGTERM and then
// shuts down gracefully. The seed command writes the sample dataset into an empty
// store and exits.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"aetherflow/internal/common/logging"
	"aetherflow/internal/dashboard/api"
	"aetherflow/internal/dashboard/config"
	"aetherflow/internal/dashboard/core"
	"aetherflow/internal/dashboard/model"
	"aetherflow/internal/dashboard/persistence"
	"aetherflow/internal/dashboard/telemetry"
	"aetherflow/internal/sinks"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:          "aetherflow-api",
		Short:        "Serve the AetherFlow dashboard API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configFile)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML configuration file")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Write the sample dataset into an empty store and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configFile)
			if err != nil {
				return err
			}
			return seed(cmd.Context(), cfg)
		},
	})
	return cmd
}

func loadConfig(cmd *cobra.Command, configFile string) (config.Config, error) {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format, os.Stdout); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (persistence.Store, error) {
	store, err := persistence.BuildStore(ctx, cfg.Store.Adapter, cfg.StoreOptions(telemetry.StoreObserver{}))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", cfg.Store.Adapter)
	}
	log.WithFields(log.Fields{
		"adapter":    cfg.Store.Adapter,
		"key_prefix": cfg.Store.KeyPrefix,
		"cache_size": cfg.Store.CacheSize,
	}).Info("key-value store ready")
	return store, nil
}

func seed(ctx context.Context, cfg config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	set, err := model.Seed(clock.RealClock{}.Now())
	if err != nil {
		return err
	}
	seeded, err := core.NewStores(store, set).EnsureSeed(ctx)
	if err != nil {
		return err
	}
	log.WithField("kinds", seeded).Info("seed complete")
	return nil
}

func serve(cfg config.Config) error {
	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Warn("closing store")
		}
	}()

	opts := []api.Option{}
	if cfg.ActivityLog != "" {
		sink, err := sinks.NewActivityFileSink(cfg.ActivityLog)
		if err != nil {
			return err
		}
		defer sink.Close()
		opts = append(opts, api.WithActivitySink(sink))
		log.WithField("path", sink.Path()).Info("activity log enabled")
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr == "" {
		opts = append(opts, api.WithMetricsHandler(telemetry.Handler()))
	} else {
		metricsServer = telemetry.NewMetricsServer(cfg.MetricsAddr)
	}

	apiServer, err := api.NewServer(store, clock.RealClock{}, opts...)
	if err != nil {
		return err
	}
	if cfg.GaugeInterval > 0 {
		worker := core.NewGaugeWorker(apiServer.Stores().Pipelines, clock.RealClock{}, cfg.GaugeInterval, telemetry.ObservePipelines)
		worker.Start()
		defer worker.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: cfg.ShutdownTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Infof("AetherFlow API server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- errors.Wrapf(err, "listen on %s", cfg.HTTPAddr)
		}
	}()
	if metricsServer != nil {
		go func() {
			log.Infof("metrics listening on %s", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- errors.Wrapf(err, "listen on %s", cfg.MetricsAddr)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case <-stop:
		log.Info("shutting down server")
	case runErr = <-errCh:
		log.WithError(runErr).Error("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "metrics server shutdown failed")
		}
	}
	log.Info("server gracefully stopped")
	return runErr
}
