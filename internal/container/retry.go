// SPDX-License-Identifier: MPL-2.0

package container

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/laurynaslubys/docker-buildkite-plugin/pkg/types"
)

// SleepFunc pauses between retry attempts. Injectable for tests.
type SleepFunc func(time.Duration)

// RunWithRetries executes run until it succeeds or the attempt budget is
// spent, with linear backoff between attempts.
//
// retries bounds the total number of attempts; retries == 0 disables
// retrying entirely (one attempt, its exit code returned as-is). After a
// failed attempt the executor sleeps (attemptsSoFar-1)*2 seconds, so the
// first retry happens immediately and the delay grows from the second
// retry on. Success at any attempt short-circuits and returns 0; on
// exhaustion the last failure's exit code is returned.
func RunWithRetries(retries int, run func() types.ExitCode, sleep SleepFunc, logger *log.Logger) types.ExitCode {
	if sleep == nil {
		sleep = time.Sleep
	}
	if logger == nil {
		logger = log.Default()
	}

	attempts := 1
	for {
		code := run()
		if code.IsSuccess() {
			return 0
		}

		logger.Errorf("Exited with %s", code)
		switch {
		case retries == 0:
			return code
		case attempts == retries:
			logger.Errorf("Failed after %d retries", attempts)
			return code
		default:
			logger.Warnf("Retrying %d more times...", retries-attempts)
			attempts++
			sleep(time.Duration(attempts-2) * 2 * time.Second)
		}
	}
}
