//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trpc.group/trpc-go/trpc-consult-go/log"
	"trpc.group/trpc-go/trpc-consult-go/server/consult"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the consultation API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
	cmd.Flags().String("addr", ":8000", "HTTP listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}()

	srv := consult.New(a.runner,
		consult.WithBasePath(cfg.Server.BasePath),
		consult.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
	)
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("consultd listening on %s%s", cfg.Server.Addr, cfg.Server.BasePath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Infof("consultd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
