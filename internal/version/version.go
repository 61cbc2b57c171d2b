// Package version хранит сведения о сборке. Значения задаются через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/storefront/internal/version.version=v1.4.0 \
//	  -X github.com/vladislavdragonenkov/storefront/internal/version.commit=$(git rev-parse HEAD)"
package version

import "fmt"

const shortCommitLen = 7

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// Short возвращает версию с укороченным коммитом, например "v1.4.0+1a2b3c4".
// Для сборки без коммита возвращает только версию.
func Short() string {
	if commit == "" || commit == "unknown" {
		return version
	}
	c := commit
	if len(c) > shortCommitLen {
		c = c[:shortCommitLen]
	}
	return version + "+" + c
}

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
