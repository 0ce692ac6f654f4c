package bot

import (
	"regexp"
	"sort"
	"strings"
)

const (
	helpCommand  = "!help"
	helpNotFound = "tutétrompé"
)

var reHelpOne = regexp.MustCompile(`^!help[\s]+([a-zA-Z0-9_-]+).*`)

// helpReply returns the reply for a help command, or false when message is
// not one.
func (i *Instance) helpReply(message string) (string, bool) {
	if message == helpCommand {
		return helpList(i.helps), true
	}
	m := reHelpOne.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	if txt, ok := i.helps[m[1]]; ok {
		return txt, true
	}
	return helpNotFound, true
}

func helpList(helps map[string]string) string {
	names := make([]string, 0, len(helps))
	for name := range helps {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString("`")
		b.WriteString(name)
		b.WriteString("`\n")
	}
	return b.String()
}
