package testutils

import (
	"log/slog"
	"testing"

	"github.com/phrazzld/autobuild/internal/ciutil"
)

// IntegrationEnv returns the first non-empty value among envVars. When none
// is set the test is skipped locally and failed in CI, where the backing
// service is expected to be provisioned.
func IntegrationEnv(t *testing.T, envVars ...string) string {
	t.Helper()

	value := ciutil.GetEnvWithFallbacks(envVars, "", slog.Default())
	if value != "" {
		return value
	}

	if ciutil.IsCI() {
		t.Fatalf("integration environment not configured; set one of %v", envVars)
	}
	t.Skipf("integration environment not configured; set one of %v", envVars)
	return ""
}
