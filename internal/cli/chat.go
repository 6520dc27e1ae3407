package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scimuse/scimuse/internal/bootstrap"
	"github.com/scimuse/scimuse/internal/core/domain"
)

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask questions about the ingested documents",
		Long: "With a question argument, answers it and exits. Without one, reads\n" +
			"questions from stdin until EOF or an empty line.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if len(args) == 1 {
					return askOnce(ctx, app, cmd.OutOrStdout(), args[0])
				}
				return chatLoop(ctx, app, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func chatLoop(ctx context.Context, app *bootstrap.App, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}
		if err := askOnce(ctx, app, out, question); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			// A quota error ends the session; anything else is reported and
			// the prompt continues.
			if domain.IsKind(err, domain.ErrQuotaExceeded) {
				return err
			}
			fmt.Fprintf(out, "could not answer: %v\n\n", err)
		}
	}
	return scanner.Err()
}

func askOnce(ctx context.Context, app *bootstrap.App, out io.Writer, question string) error {
	result, err := app.Asker.Ask(ctx, question)
	if err != nil {
		if result != nil {
			printFailures(out, result)
		}
		return err
	}
	printResult(out, result)
	return nil
}

func printResult(out io.Writer, result *domain.QueryResult) {
	answer := result.Answer
	fmt.Fprintln(out, answer.Text)
	fmt.Fprintln(out)

	if len(answer.Citations) > 0 {
		fmt.Fprintln(out, "Sources:")
		for i, citation := range answer.Citations {
			location := fmt.Sprintf("p.%d", citation.Page)
			if citation.Region != "" {
				location += ", " + citation.Region
			}
			fmt.Fprintf(out, "  [%d] document %s (%s)\n", i+1, citation.DocumentID, location)
		}
	}

	fmt.Fprintf(out, "Confidence: %.2f\n", answer.Confidence)
	for _, caveat := range answer.Caveats {
		fmt.Fprintf(out, "Note: %s\n", caveat)
	}
	printFailures(out, result)
	fmt.Fprintln(out)
}

func printFailures(out io.Writer, result *domain.QueryResult) {
	for _, failure := range result.Failed {
		fmt.Fprintf(out, "Unanswered: %s (%s)\n", failure.Question, failure.Reason)
	}
}
