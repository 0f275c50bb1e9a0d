// formatação pequena e consistente de números em headers e formulários.

package gate

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// formatSeconds arredonda para cima: Retry-After nunca deve ser menor que o real.
func formatSeconds(d time.Duration) string {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return formatInt(s)
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

// truthy aceita os formatos comuns de checkbox/flag de formulário.
func truthy(v string) bool {
	switch v {
	case "1", "on", "yes", "true", "TRUE", "True":
		return true
	}
	return false
}
