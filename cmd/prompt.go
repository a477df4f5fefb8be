package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/orchestrator"
)

// prompt is the line-based operator on a terminal. "q" cancels.
type prompt struct {
	in  *bufio.Reader
	out io.Writer

	once  sync.Once
	lines chan answerLine
}

type answerLine struct {
	text string
	err  error
}

func newPrompt(in io.Reader, out io.Writer) *prompt {
	return &prompt{in: bufio.NewReader(in), out: out}
}

// Choose implements orchestrator.Operator
func (p *prompt) Choose(ctx context.Context, plan *orchestrator.Plan) (string, error) {
	for i, o := range plan.Options {
		marker := " "
		if o.Recommended {
			marker = "*"
		}
		fmt.Fprintf(p.out, "  %s%d) %s\n", marker, i+1, o.Label)
	}
	for {
		answer, err := p.ask(ctx, "Choose [number, enter for *, q to quit]: ")
		if err != nil {
			return "", err
		}
		if answer == "" {
			if o, ok := plan.Recommended(); ok {
				return o.Key, nil
			}
			continue
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(plan.Options) {
			return plan.Options[n-1].Key, nil
		}
		if o, ok := plan.Option(answer); ok {
			return o.Key, nil
		}
		fmt.Fprintf(p.out, "  %q is not an option\n", answer)
	}
}

var resolutionKeys = map[string]domain.Resolution{
	"o": domain.ResolveKeepOurs,
	"t": domain.ResolveKeepTheirs,
	"e": domain.ResolveManualEdit,
	"s": domain.ResolveSkip,
	"a": domain.ResolveAbort,
}

// ResolvePath implements conflict.Resolver
func (p *prompt) ResolvePath(ctx context.Context, kind domain.OperationKind, path string) (domain.Resolution, error) {
	fmt.Fprintf(p.out, "Conflict in %s during %s\n", path, kind.GitVerb())
	for {
		answer, err := p.ask(ctx, "[o]urs, [t]heirs, [e]dited by hand, [s]kip commit, [a]bort, [q]uit: ")
		if err != nil {
			return "", err
		}
		if r, ok := resolutionKeys[answer]; ok {
			return r, nil
		}
		fmt.Fprintf(p.out, "  %q is not an option\n", answer)
	}
}

// readLines feeds input lines to ask so a pending read never delays an interrupt.
// The goroutine ends with the input.
func (p *prompt) readLines() {
	defer close(p.lines)
	for {
		text, err := p.in.ReadString('\n')
		p.lines <- answerLine{text: text, err: err}
		if err != nil {
			return
		}
	}
}

func (p *prompt) ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", orchestrator.ErrCancelled, err)
	}
	fmt.Fprint(p.out, question)
	p.once.Do(func() {
		p.lines = make(chan answerLine)
		go p.readLines()
	})
	var next answerLine
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", fmt.Errorf("%w: %v", orchestrator.ErrCancelled, ctx.Err())
	case l, ok := <-p.lines:
		if !ok {
			return "", fmt.Errorf("%w: end of input", orchestrator.ErrCancelled)
		}
		next = l
	}
	line, err := next.text, next.err
	if err != nil && line == "" {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: end of input", orchestrator.ErrCancelled)
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "q" {
		return "", orchestrator.ErrCancelled
	}
	return answer, nil
}
