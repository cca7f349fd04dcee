// Package version хранит сведения о сборке, заданные через -ldflags.
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает commit сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// String возвращает строку для логов и флага -version.
func String() string {
	return fmt.Sprintf("storefront version=%s commit=%s date=%s", version, commit, date)
}
