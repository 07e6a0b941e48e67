package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"vpnproxy/pkg/selector"
	"vpnproxy/pkg/vpngate"
)

var (
	ErrAborted         = errors.New("selection aborted")
	ErrTooManyAttempts = errors.New("too many invalid selections")
)

const invalidNotice = " * Select Appropriate Number *"

// Prompter asks for a country number, retrying a bounded number of times.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	maxAttempts int

	// pending holds a read still blocked on input after its caller gave up.
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func New(in io.Reader, out io.Writer, maxAttempts int) *Prompter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		maxAttempts: maxAttempts,
	}
}

// Choose reads lines until one resolves to a country in order. It returns
// the chosen country with its record. Cancelling ctx aborts a pending read.
func (p *Prompter) Choose(ctx context.Context, catalog selector.Catalog, order []string) (string, vpngate.ServerRecord, error) {
	if len(order) == 0 {
		return "", vpngate.ServerRecord{}, fmt.Errorf("no countries to choose from")
	}

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", vpngate.ServerRecord{}, fmt.Errorf("%w: %w", ErrAborted, err)
		}
		fmt.Fprint(p.out, "\n>> ")

		line, err := p.readLine(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", vpngate.ServerRecord{}, fmt.Errorf("%w: %w", ErrAborted, ctxErr)
		}
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			if errors.Is(err, io.EOF) {
				return "", vpngate.ServerRecord{}, ErrAborted
			}
			return "", vpngate.ServerRecord{}, fmt.Errorf("failed to read selection: %w", err)
		}

		index, record, choiceErr := resolve(catalog, order, line)
		if choiceErr == nil {
			return order[index-1], record, nil
		}

		var selErr *selector.SelectionError
		if !errors.As(choiceErr, &selErr) {
			return "", vpngate.ServerRecord{}, choiceErr
		}
		fmt.Fprintln(p.out, invalidNotice)

		if errors.Is(err, io.EOF) {
			return "", vpngate.ServerRecord{}, ErrAborted
		}
	}

	return "", vpngate.ServerRecord{}, fmt.Errorf("%w (%d attempts)", ErrTooManyAttempts, p.maxAttempts)
}

// readLine reads one line in the background so that ctx can interrupt it.
// A read abandoned by cancellation is picked up by the next call.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	if p.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := p.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
		p.pending = ch
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-p.pending:
		p.pending = nil
		return res.line, res.err
	}
}

func resolve(catalog selector.Catalog, order []string, line string) (int, vpngate.ServerRecord, error) {
	index, err := selector.ParseChoice(strings.TrimSpace(line), len(order))
	if err != nil {
		return 0, vpngate.ServerRecord{}, err
	}
	record, err := selector.ChooseByIndex(catalog, order, index)
	return index, record, err
}
