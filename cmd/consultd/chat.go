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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-consult-go/event"
	"trpc.group/trpc-go/trpc-consult-go/runner"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <complaint>",
		Short: "Run a consultation in the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return chat(cmd.Context(), a.runner, strings.Join(args, " "), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// chat runs turns until the workflow finishes, reading one answer from in
// for every question.
func chat(ctx context.Context, r runner.Runner, complaint string, in io.Reader, out io.Writer) error {
	threadID, events, err := r.Start(ctx, complaint)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "thread %s\n", threadID)

	answers := bufio.NewScanner(in)
	for {
		last, err := printTurn(out, events)
		if err != nil {
			return err
		}
		if last == nil || last.Type != event.TypeAskUser {
			return nil
		}
		fmt.Fprint(out, "> ")
		if !answers.Scan() {
			if err := answers.Err(); err != nil {
				return err
			}
			return errors.New("input closed before the consultation finished")
		}
		if events, err = r.Resume(ctx, threadID, strings.TrimSpace(answers.Text())); err != nil {
			return err
		}
	}
}

// printTurn writes a turn's messages and returns its terminal event.
func printTurn(out io.Writer, events <-chan *event.Event) (*event.Event, error) {
	var last *event.Event
	for e := range events {
		switch e.Type {
		case event.TypeMessage:
			fmt.Fprintf(out, "[%s] %s\n", e.Speaker, e.Content)
		case event.TypeFinal:
			if e.Message != nil {
				fmt.Fprintf(out, "\n%s\n", *e.Message)
			}
		case event.TypeError:
			return e, fmt.Errorf("consultation failed: %s", e.Error)
		}
		last = e
	}
	return last, nil
}
