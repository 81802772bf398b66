// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is injected at build time via -ldflags.
var version = "dev"

var (
	rootCmd = &cobra.Command{
		Use:   "wealthcoach",
		Short: "WealthCoach AI chat backend",
		Long: `WealthCoach runs the personal finance chat backend: a streaming
WebSocket chat endpoint and a buffered HTTP chat endpoint, backed by an
LLM gateway with response caching and retrieval-augmented generation over
a Weaviate knowledge base.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("wealthcoach", version)
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
