package logger

import (
	"fmt"

	"k8s.io/klog/v2"
)

var DebugEnabled bool

// Debugf logs only if DebugEnabled is true
func Debugf(format string, args ...interface{}) {
	if DebugEnabled {
		klog.InfoDepth(1, fmt.Sprintf("[DEBUG] "+format, args...))
	}
}

// Infof logs always
func Infof(format string, args ...interface{}) {
	klog.InfoDepth(1, fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...interface{}) {
	klog.WarningDepth(1, fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	klog.ErrorDepth(1, fmt.Sprintf(format, args...))
}

// Flush drains buffered log output; call before exit
func Flush() {
	klog.Flush()
}
