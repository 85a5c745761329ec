// Copyright 2018, the QC-pipeline contributors.

package utils

import "strings"

// SplitArgs separates a command line into leading flag-style
// arguments, which the wrappers pass through verbatim to the wrapped
// tool, and the positional arguments that follow.  The first
// argument not starting with a dash ends the flag section.  A true
// help result means -h or --help appeared among the flags.
func SplitArgs(args []string) (flags, positional []string, help bool) {

	i := 0
	for ; i < len(args); i++ {
		if !strings.HasPrefix(args[i], "-") {
			break
		}
		if args[i] == "-h" || args[i] == "--help" {
			help = true
			continue
		}
		flags = append(flags, args[i])
	}
	positional = args[i:]

	return flags, positional, help
}
