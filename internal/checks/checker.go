// Package checks detects remote clients that should keep the machine awake.
package checks

import (
	"fmt"
	"time"

	"preventsleep/internal/config"
	"preventsleep/internal/logging"
)

// Checker probes one kind of client activity.
//
// Check is called once per loop and must not block or sleep. It returns a
// non-empty reason when sleep should be inhibited, most important detail
// first since the reason may be truncated by logind, and "" otherwise. For
// unchanged activity it must return the same string so the inhibitor can skip
// redundant calls. Failing to read a data source is not an error: the checker
// reports no activity, or assumes activity when it cannot tell.
type Checker interface {
	Name() string
	Check() string
}

// Constructor builds one checker from configuration
type Constructor func(cfg config.Config, logger *logging.Logger) (Checker, error)

// Registry returns the checker constructors in discovery order
func Registry() []Constructor {
	constructors := []Constructor{
		newSSHFromConfig,
		newNFSFromConfig,
	}
	return append(constructors, optionalConstructors()...)
}

// Discover builds every available checker in registry order. A checker that
// cannot be constructed is skipped with a warning.
func Discover(cfg config.Config, logger *logging.Logger) []Checker {
	var checkers []Checker
	for _, construct := range Registry() {
		checker, err := construct(cfg, logger)
		if err != nil {
			logger.Warn("checks.unavailable", "Checker unavailable, skipping", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		logger.Info("checks.discovered", fmt.Sprintf("Discovered checker '%s'", checker.Name()), map[string]interface{}{
			"checker": checker.Name(),
		})
		checkers = append(checkers, checker)
	}
	return checkers
}

func checkInterval(cfg config.Config) time.Duration {
	return time.Duration(cfg.CheckIntervalSeconds) * time.Second
}

// levelFor returns info when something changed and debug while it persists
func levelFor(changed bool) logging.Level {
	if changed {
		return logging.LevelInfo
	}
	return logging.LevelDebug
}
