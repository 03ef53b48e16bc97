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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trpc.group/trpc-go/trpc-consult-go/config"
	"trpc.group/trpc-go/trpc-consult-go/log"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "consultd",
	Short: "Resumable multi-agent medical consultation service",
	Long: `consultd routes a patient's complaint from a general practitioner to a
specialist, pauses whenever an agent asks the patient a question and resumes
from the last checkpoint when the answer arrives.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./consultd.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("checkpoint-backend", config.BackendMemory, "checkpoint store (memory, sqlite, redis)")
	flags.String("agent-backend", config.AgentScripted, "agents staffing the workflow (scripted, openai)")
	flags.String("model", "gpt-4o-mini", "model used by the openai agent backend")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("checkpoint.backend", flags.Lookup("checkpoint-backend"))
	_ = viper.BindPFlag("agent.backend", flags.Lookup("agent-backend"))
	_ = viper.BindPFlag("agent.model", flags.Lookup("model"))

	rootCmd.AddCommand(newServeCmd(), newChatCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	cfg, err = config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.Log.Level)
	if err := log.SetFormat(cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
