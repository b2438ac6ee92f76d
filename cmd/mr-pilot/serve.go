/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/javimosch/mr-pilot/dispatch"
	"github.com/javimosch/mr-pilot/proxy"
	"github.com/javimosch/mr-pilot/server"
	"github.com/javimosch/mr-pilot/tools"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the front-end server (standalone, dispatcher and/or slave)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := clog.FromContext(ctx)

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if cfg.MasterEnabled && len(cfg.MasterSlaveCodes) == 0 {
				return errors.New("MASTER_ENABLED requires MASTER_SLAVE_CODES")
			}
			if cfg.SlaveEnabled && (cfg.MasterWSURL == "" || cfg.SlaveCode == "") {
				return errors.New("SLAVE_ENABLED requires MASTER_WS_URL and SLAVE_CODE")
			}

			deps, err := buildDeps(ctx, cfg)
			if err != nil {
				return err
			}
			dispatcher := dispatch.New("mr-pilot", version)
			tools.Register(dispatcher, deps)

			srv := server.New(server.Config{
				Dispatcher: dispatcher,
				Master:     cfg.MasterEnabled,
				SlaveCodes: cfg.MasterSlaveCodes,
			})

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Port))
			})
			if cfg.SlaveEnabled {
				slave := proxy.NewSlave(cfg.MasterWSURL, cfg.SlaveCode, dispatcher)
				log.With("master", cfg.MasterWSURL).Info("Starting slave connector")
				g.Go(func() error {
					err := slave.Run(ctx)
					if errors.Is(err, ctx.Err()) {
						return nil
					}
					return err
				})
			}

			log.With("port", cfg.Port).
				With("master", cfg.MasterEnabled).
				With("slave", cfg.SlaveEnabled).
				Info("mr-pilot serving")
			return g.Wait()
		},
	}
}
