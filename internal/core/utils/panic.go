package utils

import (
	"context"
	"log"
	"runtime"
)

func stackTrace() []byte {
	stack := make([]byte, 8096)
	return stack[:runtime.Stack(stack, false)]
}

// CatchPanicWithCancel recovers a goroutine panic, logs the stack and cancels the
// surrounding run context.
func CatchPanicWithCancel(cancel context.CancelFunc) {
	if err := recover(); err != nil {
		log.Printf("recovered panic: %v\n%s", err, stackTrace())
		cancel()
	}
}

// CatchPanicWithFallback recovers a panic and passes the recovered value to onPanic.
func CatchPanicWithFallback(onPanic func(any)) {
	if err := recover(); err != nil {
		log.Printf("recovered panic: %v\n%s", err, stackTrace())
		onPanic(err)
	}
}
