package xmltree

import "go.uber.org/zap"

// logger is a package-wide structured logger. It defaults to a nop logger so
// the library stays silent unless the caller opts in via SetLogger.
var logger = zap.NewNop()

// SetLogger installs a zap logger used for debug-level tracing of expression
// compilation, evaluation and bulk mutations. Passing nil restores the nop
// logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		logger = zap.NewNop()
		return
	}
	logger = l
}
