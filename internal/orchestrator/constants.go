package orchestrator

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Timeout and retry settings, overridable through the environment
var (
	// DefaultProbeTimeout bounds one probe of every state axis
	DefaultProbeTimeout = getTimeoutOrDefault("RELEASESYNC_PROBE_TIMEOUT", 60*time.Second, 5*time.Second)
	// DefaultRetryCount is the number of retries for hosting-platform steps
	DefaultRetryCount = uint64(getRetryCountOrDefault("RELEASESYNC_RETRY_COUNT", 3, 1))
	// DefaultRetryDelay is the initial delay for exponential backoff
	DefaultRetryDelay = getTimeoutOrDefault("RELEASESYNC_RETRY_DELAY", 1*time.Second, 10*time.Millisecond)
)

const (
	// DefaultMaxPasses caps probe-classify-dispatch cycles in one run
	DefaultMaxPasses = 6
	// ChoiceExit leaves the repository as it is
	ChoiceExit = "exit"
)

// isTestEnvironment detects if we're running in a test environment
func isTestEnvironment() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, ".test") || strings.Contains(arg, "go test") {
			return true
		}
	}
	return os.Getenv("GO_TEST") == "true" || os.Getenv("TEST_MODE") == "true"
}

// getTimeoutOrDefault returns production timeout or test timeout based on environment
func getTimeoutOrDefault(envVar string, prodDefault, testDefault time.Duration) time.Duration {
	if env := os.Getenv(envVar); env != "" {
		if duration, err := time.ParseDuration(env); err == nil {
			return duration
		}
	}
	if isTestEnvironment() {
		return testDefault
	}
	return prodDefault
}

// getRetryCountOrDefault returns production retry count or test retry count based on environment
func getRetryCountOrDefault(envVar string, prodDefault, testDefault int) int {
	if env := os.Getenv(envVar); env != "" {
		if count, err := strconv.Atoi(env); err == nil {
			return count
		}
	}
	if isTestEnvironment() {
		return testDefault
	}
	return prodDefault
}
