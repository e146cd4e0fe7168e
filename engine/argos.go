package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommand is the Argos Translate CLI binary.
const DefaultCommand = "argos-translate"

// defaultMaxRetries bounds transient engine failures per call.
const defaultMaxRetries = 3

// Argos translates by invoking the Argos Translate command line tool.
// One instance per worker; the process environment is pinned to the C
// locale so engine output is not shaped by the operator's locale.
type Argos struct {
	// Command is the engine binary (DefaultCommand when empty).
	Command string
	// MaxRetries bounds retry attempts per call (defaultMaxRetries when 0).
	MaxRetries int
	// Cache, when set, short-circuits repeated source texts.
	Cache *Cache
}

// Translate runs the engine binary once per call, feeding text on stdin.
// Transient failures are retried with linear backoff, matching how flaky
// local engine wrappers behave in practice.
func (a *Argos) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	if a.Cache != nil {
		if hit, ok := a.Cache.Get(tgt, text); ok {
			return hit, nil
		}
	}

	retries := a.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		out, err := a.run(ctx, text, src, tgt)
		if err == nil {
			if a.Cache != nil {
				a.Cache.Put(tgt, text, out)
			}
			return out, nil
		}
		lastErr = err

		// A missing model never heals by retrying.
		var pe *PairError
		if errors.As(err, &pe) || ctx.Err() != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("engine failed after %d attempts: %w", retries, lastErr)
}

// run performs a single engine invocation.
func (a *Argos) run(ctx context.Context, text, src, tgt string) (string, error) {
	cmd := exec.CommandContext(ctx, a.command(), "--from-lang", src, "--to-lang", tgt)
	cmd.Env = append(os.Environ(), "LC_ALL=C", "LANG=C")
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if isMissingModel(stderr.String()) {
			return "", &PairError{Src: src, Tgt: tgt}
		}
		return "", fmt.Errorf("%s: %w (%s)", a.command(), err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimRight(stdout.String(), "\n"), nil
}

// Verify checks that the engine binary exists and the language pair has an
// installed model, by translating a one-word probe. Called once before any
// batch is dispatched so a missing pair fails the job up front.
func (a *Argos) Verify(ctx context.Context, src, tgt string) error {
	if _, err := exec.LookPath(a.command()); err != nil {
		return fmt.Errorf("translation engine not found: %w", err)
	}
	if _, err := a.run(ctx, "hello", src, tgt); err != nil {
		return err
	}
	return nil
}

func (a *Argos) command() string {
	if a.Command != "" {
		return a.Command
	}
	return DefaultCommand
}

// isMissingModel recognizes the stderr shapes argos-translate emits when a
// language pair has no installed package.
func isMissingModel(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "not installed") ||
		strings.Contains(s, "no package") ||
		strings.Contains(s, "language not found") ||
		strings.Contains(s, "invalid language")
}
