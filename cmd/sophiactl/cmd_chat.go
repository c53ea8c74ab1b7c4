// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type chatRequest struct {
	ChatID      string `json:"chat_id"`
	Message     string `json:"message"`
	DisplayName string `json:"display_name,omitempty"`
}

type chatResponse struct {
	Tipo      string `json:"tipo"`
	Respuesta string `json:"respuesta"`
}

type clearRequest struct {
	ChatID string `json:"chat_id"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// effectiveChatID returns the --chat-id flag or a fresh per-invocation ID.
func effectiveChatID() string {
	if chatID != "" {
		return chatID
	}
	return "cli-" + uuid.New().String()
}

func runAskCommand(_ *cobra.Command, args []string) {
	message := strings.Join(args, " ")
	reply, err := sendChatMessage(effectiveChatID(), message)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println(reply)
}

func runChatCommand(_ *cobra.Command, args []string) {
	if len(args) > 0 {
		fmt.Printf("Warning: Unexpected arguments ignored: %v\n", args)
		fmt.Println("Use 'sophiactl chat --help' to see available flags.")
	}

	id := effectiveChatID()
	fmt.Printf("SophIA (%s). Type 'exit' to quit, 'clear' to reset the conversation.\n", getServerBaseURL())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "exit" || message == "quit" || message == "q" {
			fmt.Println("Goodbye.")
			break
		}
		if message == "clear" {
			if err := sendClear(id); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			} else {
				fmt.Println("Conversation cleared.")
			}
			continue
		}

		reply, err := sendChatMessage(id, message)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", reply)
	}
}

func runClearCommand(_ *cobra.Command, _ []string) {
	if chatID == "" {
		log.Fatalf("clear requires --chat-id")
	}
	if err := sendClear(chatID); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println("Conversation cleared.")
}

// sendChatMessage posts one message and returns the assistant reply. Password
// resets can poll downstream for a while, so the timeout is generous.
func sendChatMessage(id, message string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		ChatID:      id,
		Message:     message,
		DisplayName: displayName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create request body: %w", err)
	}

	client := &http.Client{Timeout: 3 * time.Minute}

	done := make(chan bool)
	go showSpinner("Thinking", done)

	resp, err := client.Post(getServerBaseURL()+"/v1/chat", "application/json", bytes.NewBuffer(payload))
	done <- true
	fmt.Print("\r                                                \r")

	if err != nil {
		return "", fmt.Errorf("server unavailable at %s: %w", getServerBaseURL(), err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return "", fmt.Errorf("server error (%s): %s", errResp.Code, errResp.Error)
		}
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return chatResp.Respuesta, nil
}

func sendClear(id string) error {
	payload, _ := json.Marshal(clearRequest{ChatID: id})

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(getServerBaseURL()+"/v1/chat/clear", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("server unavailable at %s: %w", getServerBaseURL(), err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// showSpinner displays the waiting animation until done is signalled.
func showSpinner(msg string, done chan bool) {
	chars := []string{"▖", "▘", "▝", "▗"}
	i := 0

	fmt.Print("\033[?25l")
	defer fmt.Print("\033[?25h")

	for {
		select {
		case <-done:
			return
		default:
			fmt.Printf("\r%s  %s... \033[K", chars[i%len(chars)], msg)
			i++
			time.Sleep(100 * time.Millisecond)
		}
	}
}
