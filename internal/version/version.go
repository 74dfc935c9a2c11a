package version

import "fmt"

// Заполняются через -ldflags при сборке релиза.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Version возвращает только номер версии (для health-ответов).
func Version() string { return version }

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// String возвращает одну строку со всей информацией о сборке.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
