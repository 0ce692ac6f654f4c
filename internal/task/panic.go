package task

import (
	"fmt"
	"runtime/debug"
	"strings"
)

func panicMessage(rec any) string {
	stack := strings.TrimSpace(string(debug.Stack()))
	if len(stack) > 2000 {
		stack = stack[:2000]
	}
	return fmt.Sprintf("panic: %v\n%s", rec, stack)
}
