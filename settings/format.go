package settings

import "strings"

// Restricted run options are consumed by the launcher itself and never
// forwarded on the command line.
type Restricted map[string]struct{}

func NewRestricted(keys ...string) Restricted {
	r := make(Restricted, len(keys))
	for _, k := range keys {
		r[k] = struct{}{}
	}
	return r
}

func (r Restricted) Contains(key string) bool {
	_, ok := r[key]
	return ok
}

// FormatRunArgs renders run options as launch command tokens.
//
//	-k v      one character key
//	--key=v   longer key
//	-k/--key  value absent or falsy
func FormatRunArgs(args *Args, restricted Restricted) []string {
	tokens := []string{}
	args.Each(func(opt string, value Value) {
		if restricted.Contains(opt) {
			return
		}
		short := len(opt) == 1
		prefix := "--"
		if short {
			prefix = "-"
		}
		switch {
		case !value.Truthy():
			tokens = append(tokens, prefix+opt)
		case short:
			tokens = append(tokens, prefix+opt, value.String())
		default:
			tokens = append(tokens, prefix+opt+"="+value.String())
		}
	})
	return tokens
}

// FormatBatchArgs renders bsub options. LSF only takes single dash options
// and the value is separated by a space inside one token.
func FormatBatchArgs(args *Args) []string {
	tokens := []string{}
	args.Each(func(opt string, value Value) {
		if !value.Truthy() {
			tokens = append(tokens, "-"+opt)
			return
		}
		tokens = append(tokens, strings.Join([]string{"-" + opt, value.String()}, " "))
	})
	return tokens
}

// FormatLongBatchArgs renders sbatch options with the run option rules and
// no restricted keys.
func FormatLongBatchArgs(args *Args) []string {
	return FormatRunArgs(args, nil)
}
