package policy

import (
	"strings"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
)

// CheckCommandAllowed enforces the enable_commands allowlist. Entries match a
// full command path ("account send") or a whole grammar ("account").
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		norm := normalize(allowed)
		if norm == normPath || strings.HasPrefix(normPath, norm+" ") {
			return nil
		}
	}
	return clierr.Newf(clierr.CodeBlocked, "command %q blocked by --enable-commands policy", normPath)
}

// IsMeta reports commands that are always allowed because they only drive the shell itself.
func IsMeta(name string) bool {
	switch normalize(name) {
	case "help", "h", "clear", "exit":
		return true
	}
	return false
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
