package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP facade mirroring every stage command (spec §6)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.Port)
	srv := service.New(cfg, logger)
	return srv.ListenAndServe(addr)
}
