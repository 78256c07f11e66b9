package runner

import (
	"regexp"
	"strings"
)

// ShellName is the value of $0 inside the login shell.
const ShellName = "splatpipe"

// safeShellWord matches words that need no quoting in POSIX shells.
var safeShellWord = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./~-]+$`)

// placeholder matches {name} tokens.
var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// ShellQuote quotes s for safe interpolation into a POSIX shell script.
// A leading ~/ is kept outside the quotes so the shell still expands it.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if safeShellWord.MatchString(s) {
		return s
	}
	if rest, ok := strings.CutPrefix(s, "~/"); ok {
		return "~/" + ShellQuote(rest)
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// DefaultActivationTemplate builds the activation snippet for the
// non-empty parts of a conda setup.
func DefaultActivationTemplate(workdir, condaProfile, condaEnv string) string {
	var steps []string
	if workdir != "" {
		steps = append(steps, "cd {workdir}")
	}
	if condaProfile != "" {
		steps = append(steps, "source {conda_profile}")
	}
	if condaEnv != "" {
		steps = append(steps, "conda activate {conda_env}")
	}
	return strings.Join(steps, " && ")
}

// ExpandTemplate substitutes {name} placeholders in a trusted shell template
// with shell-quoted values. Unknown placeholders are left untouched.
func ExpandTemplate(template string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(token string) string {
		value, ok := vars[token[1:len(token)-1]]
		if !ok {
			return token
		}
		return ShellQuote(value)
	})
}

// ExpandArgs substitutes {name} placeholders in each argument. Values are
// inserted verbatim; arguments are never re-split.
func ExpandArgs(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = placeholder.ReplaceAllStringFunc(arg, func(token string) string {
			if value, ok := vars[token[1:len(token)-1]]; ok {
				return value
			}
			return token
		})
	}
	return out
}

// LoginShellArgv wraps argv in a bash login shell that runs activation
// first. The command words are passed as positional parameters so they
// never pass through shell parsing.
func LoginShellArgv(activation string, argv []string) []string {
	script := `exec "$@"`
	if strings.TrimSpace(activation) != "" {
		script = activation + ` && exec "$@"`
	}
	out := []string{"bash", "--login", "-c", script, ShellName}
	return append(out, argv...)
}
