package bridge

import (
	"regexp"
	"strings"
)

var drivePrefix = regexp.MustCompile(`^([A-Za-z]):`)

// ForeignArg translates a host path into its WSL mount path without
// quoting, for use as a single argv element.
func ForeignArg(localPath string) string {
	p := drivePrefix.ReplaceAllStringFunc(localPath, func(drive string) string {
		return "/mnt/" + strings.ToLower(drive[:1])
	})
	return strings.ReplaceAll(p, `\`, "/")
}

// ToForeignPath translates a host path into its WSL mount path, wrapping
// the result in double quotes when it contains whitespace.
func ToForeignPath(localPath string) string {
	p := ForeignArg(localPath)
	if strings.ContainsAny(p, " \t") {
		return `"` + p + `"`
	}
	return p
}
