// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sophiactl is the terminal client for the SophIA server.
//
// Usage:
//
//	sophiactl chat                    # interactive conversation
//	sophiactl ask "estatus inc 6816"  # one-shot question
//	sophiactl clear                   # drop the conversation history
//
// The server address defaults to http://localhost:8080 and can be
// overridden with SOPHIA_URL.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// displayName and chatID hold flag values shared by the subcommands.
var (
	displayName string
	chatID      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sophiactl",
		Short: "Terminal client for the SophIA conversational ITSM server",
	}
	rootCmd.PersistentFlags().StringVar(&displayName, "name", "", "Display name the assistant addresses you by")
	rootCmd.PersistentFlags().StringVar(&chatID, "chat-id", "", "Conversation ID (defaults to a per-invocation ID)")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Run:   runChatCommand,
	}

	askCmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a single message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop the stored history for a conversation",
		Run:   runClearCommand,
	}

	rootCmd.AddCommand(chatCmd, askCmd, clearCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getServerBaseURL resolves the SophIA server address.
func getServerBaseURL() string {
	if url := os.Getenv("SOPHIA_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}
