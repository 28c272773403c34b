// Package logger provides a plain prefixed logger for the small maintenance
// commands that do not need the main application's structured logging.
package logger

import (
	"fmt"
	"log"
	"os"
)

// New returns a stderr logger prefixed with the command name.
func New(command string) *log.Logger {
	prefix := fmt.Sprintf("[%s] ", command)
	return log.New(os.Stderr, prefix, log.LstdFlags)
}
