package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/ignatzorin/influmarket-backend/internal/logger"
)

// SafeGo запускает горутину с перехватом panic: паника логируется
// со стеком и не роняет процесс.
func SafeGo(fn func()) {
	go func() {
		defer logPanic()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и перехватом panic.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer logPanic()
		fn(ctx)
	}()
}

func logPanic() {
	if r := recover(); r != nil {
		logger.WithComponent("goroutine").
			Errorf("panic в горутине: %v\n%s", r, debug.Stack())
	}
}
