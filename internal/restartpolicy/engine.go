// Package restartpolicy is the pure decision layer for worker restarts: given
// a policy and how many restarts a worker has already performed, it decides
// whether to restart again and after what delay. It holds no state of its
// own beyond the arguments it is called with.
package restartpolicy

import (
	"math"
	"time"

	"github.com/procwatch/procwatchd/internal/config"
)

// Decision is the result of consulting the engine for one restart attempt.
type Decision struct {
	ShouldRestart bool
	Delay         time.Duration
}

// Evaluate computes (should_restart, delay) for a worker that has already
// performed restartCount restarts under policy. The first restart (
// restartCount == 0) waits BaseDelay; the nth waits
// min(MaxDelay, BaseDelay * BackoffMultiplier^restartCount).
func Evaluate(policy config.RestartPolicy, restartCount int) Decision {
	shouldRestart := policy.Unbounded || restartCount < policy.MaxRestarts
	if !shouldRestart {
		return Decision{ShouldRestart: false}
	}
	return Decision{ShouldRestart: true, Delay: delay(policy, restartCount)}
}

func delay(policy config.RestartPolicy, restartCount int) time.Duration {
	base := policy.BaseDelay.Seconds()
	if base == 0 {
		return 0
	}
	if restartCount < 0 {
		restartCount = 0
	}

	multiplied := base * math.Pow(policy.BackoffMultiplier, float64(restartCount))

	maxSeconds := policy.MaxDelay.Seconds()
	if math.IsInf(multiplied, 1) || multiplied > maxSeconds {
		multiplied = maxSeconds
	}
	if multiplied < 0 {
		multiplied = 0
	}
	return time.Duration(multiplied * float64(time.Second))
}
