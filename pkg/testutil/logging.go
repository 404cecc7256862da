// Package testutil holds helpers shared by tests across the module.
package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// Logs are discarded unless the test binary runs with -v. Importing this
// package is enough to keep routine output out of test results.
func init() {
	var isVerbose bool
	for _, arg := range os.Args {
		if arg == "-test.v=true" || arg == "-test.v" {
			isVerbose = true
		}
	}

	logrus.SetLevel(logrus.TraceLevel)

	if !isVerbose {
		logrus.StandardLogger().Out = io.Discard
	}
}

func DisableLogging() (reset func()) {
	originalLogOutput := logrus.StandardLogger().Out
	logrus.StandardLogger().Out = io.Discard
	return func() {
		logrus.StandardLogger().Out = originalLogOutput
	}
}

// CaptureLogs records entries written to the standard logger until the test
// ends.
func CaptureLogs(t *testing.T) *logtest.Hook {
	hook := logtest.NewGlobal()
	t.Cleanup(func() {
		hook.Reset()
		logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	})
	return hook
}
