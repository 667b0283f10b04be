package smi

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"

	"codeberg.org/mutker/nvoltctl/internal/errors"
)

// Stream launches the query utility in loop mode and consumes its output
// line by line in the background. Once the process exits, all device
// readings become permanently absent; the controller is expected to skip
// affected devices rather than fail.
//
// The long-lived loop process needs incremental line consumption from a
// stdout pipe, so it is spawned with os/exec rather than the buffered
// one-shot runner used by Poll.
func (r *Reader) Stream(ctx context.Context) error {
	errFactory := errors.New()

	seconds := int(r.cfg.Interval.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	args := append(r.queryArgs(), "-l", strconv.Itoa(seconds))

	command := exec.CommandContext(ctx, r.cfg.Path, args...)
	stdout, err := command.StdoutPipe()
	if err != nil {
		return errFactory.Wrap(ErrStreamFailed, err)
	}

	if err := command.Start(); err != nil {
		return errFactory.Wrap(ErrStreamFailed, err)
	}

	r.log.Debug().Str("path", r.cfg.Path).Int("interval_seconds", seconds).Msg("Telemetry stream started")

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			r.ingest(scanner.Text())
		}
		_ = command.Wait()

		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		r.log.Warn().Msg("Telemetry stream ended; device readings are now unavailable")
	}()

	return nil
}
