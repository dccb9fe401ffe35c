package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/memoforge/internal/assembler"
	"github.com/fyrsmithlabs/memoforge/internal/llm"
	"github.com/fyrsmithlabs/memoforge/internal/memo"
	"github.com/fyrsmithlabs/memoforge/internal/plan"
	"github.com/fyrsmithlabs/memoforge/internal/retry"
	"github.com/fyrsmithlabs/memoforge/internal/sections"
	"github.com/fyrsmithlabs/memoforge/internal/stream"
)

func newGenerateCmd() *cobra.Command {
	var (
		req     assembler.Request
		offline bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Generate a memo, printing sections as they arrive",
		Long: `Generate a memo for a topic. Sections are printed in their colour as soon as
the daemon produces them.

Examples:
  memoctl generate "la photosynthèse" --subject SVT
  memoctl generate --offline "les fractions"
  memoctl generate --json "la Révolution française" > memo.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Topic = strings.Join(args, " ")
			out := cmd.OutOrStdout()
			onSection := func(s memo.Section) {
				if !asJSON {
					fmt.Fprintln(out, renderSection(s))
				}
			}

			var (
				m   *memo.Memo
				err error
			)
			if offline {
				m, err = generateOffline(cmd.Context(), req, onSection)
			} else {
				m, err = newClient().Generate(cmd.Context(), req, onSection)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, m)
			}
			fmt.Fprintln(out, renderFooter(m))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Subject, "subject", "", "school subject")
	cmd.Flags().StringVar(&req.BookID, "book", "", "book to attach the memo to")
	cmd.Flags().BoolVar(&offline, "offline", false, "run the pipeline locally with the demo model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the finished memo as JSON")
	return cmd
}

// generateOffline runs the whole pipeline in-process on the static demo
// model. Nothing is persisted.
func generateOffline(ctx context.Context, req assembler.Request, onSection func(memo.Section)) (*memo.Memo, error) {
	client := llm.NewStatic(sections.DemoRules()...)
	exec := retry.NewExecutor(nil)
	ro := retry.Options{MaxRetries: 2, BaseDelay: 100 * time.Millisecond}
	asm := assembler.New(
		plan.NewGenerator(client, exec, nil, plan.WithRetryOptions(ro)),
		sections.New(client, exec, nil, sections.WithRetryOptions(ro)),
		nil,
	)
	return asm.GenerateStream(ctx, req, memo.EmitterFunc(onSection))
}

func newListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your saved memos, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			memos, err := newClient().List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, memos)
			}
			if len(memos) == 0 {
				fmt.Fprintln(out, "No memos yet.")
				return nil
			}
			for _, m := range memos {
				fmt.Fprintln(out, renderListLine(m))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one saved memo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newClient().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, m)
			}
			fmt.Fprintln(out, renderMemo(m))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check memoforge server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := newClient().Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", status)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// streamError turns an error frame into a CLI error.
func streamError(f stream.Frame) error {
	if f.Code != "" {
		return fmt.Errorf("generation failed (%s): %s", f.Code, f.Message)
	}
	return fmt.Errorf("generation failed: %s", f.Message)
}
