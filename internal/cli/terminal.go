package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"digital.vasic.nback/pkg/orchestrator"
	"digital.vasic.nback/pkg/report"
	"digital.vasic.nback/pkg/task"
)

// terminal renders session events as lines of text. Observer
// calls may come from several goroutines.
type terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out}
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) observe(ev task.Event) {
	switch ev.Type {
	case task.EventSessionStarted:
		t.printf("\n== %s, %d trials ==\nEnter = match, c = cancel, q = quit\n", ev.Level, ev.Total)
	case task.EventStimulusShown:
		if d := ev.Display.CurrentDigit; d != nil {
			t.printf("[%2d/%d]  %d\n", ev.Trial+1, ev.Total, *d)
		}
	case task.EventResponseAccepted:
		if fb := ev.Display.Feedback; fb != nil {
			t.printf("        %s (%d ms)\n", fb.Message, ev.ReactionTime.Milliseconds())
		}
	case task.EventSessionFinished:
		if r := ev.Result; r != nil {
			t.printf(
				"\n%s finished: %d/%d matches, %d false alarms, accuracy %.2f%%\n",
				r.Level, r.MatchCount, r.TotalRequiredMatches,
				r.FalseAlarms, r.AccuracyPercent,
			)
		}
		t.printf("Rate the difficulty 1-7 (Enter to skip, r = restart, q = quit): ")
	case task.EventSessionCancelled:
		t.printf("\nLevel cancelled. Enter = retry, r = restart, q = quit\n")
	}
}

// readLines forwards lines from r until EOF.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// parseRating reads an optional 1..7 rating. Empty input means
// no rating.
func parseRating(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, report.ErrInvalidRating
	}
	if err := report.ValidateRating(n); err != nil {
		return nil, err
	}
	return &n, nil
}

// runTerminal drives orch from input lines until the run is
// complete, the participant quits or input ends. The terminal
// must already observe orch.
func runTerminal(
	ctx context.Context,
	orch *orchestrator.Orchestrator,
	lines <-chan string,
	term *terminal,
) error {
	term.printf("Level order %s. Press Enter to start %s.\n", orch.Order(), orch.CurrentLevel())
	for {
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			orch.ExitEarly()
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			orch.ExitEarly()
			return nil
		}
		input := strings.ToLower(strings.TrimSpace(line))
		if input == "q" {
			orch.ExitEarly()
			term.printf("Exited.\n")
			return nil
		}

		switch orch.State() {
		case orchestrator.StateRunning:
			switch input {
			case "":
				// responses outside the window are ignored
				_ = orch.SubmitResponse()
			case "c":
				orch.Cancel()
			}

		case orchestrator.StateAwaitingAdvance:
			if input == "r" {
				restart(orch, term)
				continue
			}
			rating, err := parseRating(input)
			if err != nil {
				term.printf("Enter a rating from 1 to 7, or press Enter to skip: ")
				continue
			}
			if _, err := orch.Advance(ctx, rating); err != nil {
				term.printf("Advance failed: %v\n", err)
				continue
			}
			if orch.State() == orchestrator.StateComplete {
				term.printf("\nAll levels complete. Thank you!\n")
				return nil
			}

		case orchestrator.StateIdle, orchestrator.StateCancelled:
			switch input {
			case "":
				if _, err := orch.Start(ctx); err != nil {
					term.printf("Start failed: %v\n", err)
				}
			case "r":
				restart(orch, term)
			}

		case orchestrator.StateComplete:
			return nil
		}
	}
}

func restart(orch *orchestrator.Orchestrator, term *terminal) {
	if err := orch.Restart(); err != nil {
		term.printf("Restart failed: %v\n", err)
		return
	}
	term.printf("Restarted. Level order %s. Press Enter to start %s.\n", orch.Order(), orch.CurrentLevel())
}
