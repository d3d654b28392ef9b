package handler

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errUsage   = errors.New("usage")
	errPercent = errors.New("invalid percentage")
)

// purgeArgs is a parsed "/purge <text> [-here] [-user <id>] [-percent <n>]".
// Words after "--" are search text even if they look like flags.
type purgeArgs struct {
	Text       string
	Here       bool
	UserID     string
	Percentage int
}

func parsePurgeArgs(args []string) (purgeArgs, error) {
	var out purgeArgs
	var words []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch strings.ToLower(arg) {
		case "--":
			words = append(words, args[i+1:]...)
			i = len(args)
		case "-here":
			out.Here = true
		case "-user":
			if i+1 >= len(args) {
				return purgeArgs{}, errUsage
			}
			i++
			out.UserID = args[i]
		case "-percent":
			if i+1 >= len(args) {
				return purgeArgs{}, errUsage
			}
			i++
			n, err := strconv.Atoi(strings.TrimSuffix(args[i], "%"))
			if err != nil || n < 1 || n > 100 {
				return purgeArgs{}, errPercent
			}
			out.Percentage = n
		default:
			words = append(words, arg)
		}
	}

	out.Text = strings.Join(words, " ")
	return out, nil
}

// splitCommand returns the command name without its @botname suffix and the arguments
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), fields[1:]
}
