package util

import (
	"time"

	"go.uber.org/zap"
)

// Trace 记录一段操作的耗时，用法：defer util.Trace("infer")()
func Trace(msg string) func() {
	start := time.Now()
	return func() {
		Logger.Debug("trace", zap.String("op", msg), zap.Duration("cost", time.Since(start)))
	}
}
