package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lexcodex/delver/agents"
	"github.com/lexcodex/delver/framework"
	"github.com/lexcodex/delver/tools"
	"github.com/lexcodex/delver/trace"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Bold(true).
			Padding(0, 2)

	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

	helpStyle = lipgloss.NewStyle().Faint(true)

	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// checkCredentials verifies the provider keys are set before any network
// call. Remediation goes to stderr; the returned error carries the summary.
func checkCredentials(cmd *cobra.Command) error {
	missing := agents.MissingEnv()
	if len(missing) == 0 {
		return nil
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Set the missing keys and try again:")
	for _, key := range missing {
		fmt.Fprintf(cmd.ErrOrStderr(), "  export %s=<your key>\n", key)
	}
	return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
}

func plainOutput() bool {
	return plainMode || os.Getenv("PLAIN_OUTPUT") != ""
}

// buildSession wires the tool registry, model factory, and tracer for one
// interactive or one-shot session.
func buildSession(out io.Writer) (*trace.Tracer, *agents.Factory, error) {
	registry := framework.NewToolRegistry()
	if err := registry.Register(tools.NewWebSearch()); err != nil {
		return nil, nil, err
	}
	factory := agents.NewFactory(cfg, registry)

	var renderer trace.Renderer
	if plainOutput() {
		renderer = &trace.PlainRenderer{Out: out}
	} else {
		renderer = trace.NewPanelRenderer(out)
	}
	tracer := trace.NewTracer(factory, renderer, trace.Options{
		OutputsDir:       cfg.OutputsDir,
		PreviewLimit:     cfg.PreviewLimit,
		FlushPerQuestion: true,
	})
	return tracer, factory, nil
}

// runREPL is the interactive prompt loop. Ctrl+C during a question cancels
// only that question; the session keeps going until quit or EOF.
func runREPL(cmd *cobra.Command) error {
	if err := checkCredentials(cmd); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	tracer, _, err := buildSession(out)
	if err != nil {
		return err
	}
	printBanner(out)

	var mu sync.Mutex
	var cancelInFlight context.CancelFunc
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer func() {
		signal.Stop(sig)
		close(sig)
	}()
	go cancelOnInterrupt(sig, &mu, &cancelInFlight)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, promptStyle.Render("🔍 Ask: "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			return finishSession(out, tracer)
		case "clear":
			fmt.Fprint(out, "\033[2J\033[H")
			printBanner(out)
			continue
		}

		qctx, cancel := context.WithCancel(ctx)
		mu.Lock()
		cancelInFlight = cancel
		mu.Unlock()

		runErr := tracer.Run(qctx, line)

		mu.Lock()
		cancelInFlight = nil
		mu.Unlock()
		cancel()

		if runErr != nil {
			fmt.Fprintln(out, errStyle.Render(runErr.Error()))
		}
		fmt.Fprintln(out)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return finishSession(out, tracer)
}

// cancelOnInterrupt cancels the in-flight question on each interrupt and
// returns once the signal channel is closed.
func cancelOnInterrupt(sig <-chan os.Signal, mu *sync.Mutex, cancelInFlight *context.CancelFunc) {
	for range sig {
		mu.Lock()
		if *cancelInFlight != nil {
			(*cancelInFlight)()
		}
		mu.Unlock()
	}
}

func printBanner(out io.Writer) {
	fmt.Fprintln(out, bannerStyle.Render("🔎 delver research assistant"))
	fmt.Fprintln(out, helpStyle.Render("Ask a question, or quit/exit/q to leave. clear wipes the screen."))
	fmt.Fprintln(out)
}

// finishSession persists anything not yet flushed and says goodbye.
func finishSession(out io.Writer, tracer *trace.Tracer) error {
	if tracer.Dirty() {
		if path, err := tracer.Flush(); err == nil && path != "" {
			fmt.Fprintln(out, helpStyle.Render("📁 Trace saved to "+path))
		}
	}
	fmt.Fprintln(out, "👋 Goodbye!")
	return nil
}
