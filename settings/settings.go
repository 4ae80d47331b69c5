package settings

import (
	"sort"
	"strings"
)

// Key of the working directory override. Always restricted: the launcher
// applies it as the process directory.
const ChdirArg = "chdir"

// Run is implemented by the run settings of every launcher.
type Run interface {
	RunCommand() string
	Executable() string
	ExeArgs() []string
	FormatRunArgs() []string
	Env() map[string]string
	WorkingDir() string
}

// Batch is implemented by the batch settings of every launcher.
type Batch interface {
	BatchCommand() string
	FormatBatchArgs() []string
	// Script renders a submission script running each command in turn.
	Script(commands [][]string) string
}

// RunSettings holds what is common to every run command. It is also used as
// is for local runs where the run command is empty.
type RunSettings struct {
	exe        string
	exeArgs    []string
	runCommand string
	restricted Restricted

	RunArgs *Args
	EnvVars map[string]string
}

func NewRunSettings(exe string, exeArgs []string, runCommand string, restricted ...string) *RunSettings {
	return &RunSettings{
		exe:        exe,
		exeArgs:    append([]string(nil), exeArgs...),
		runCommand: runCommand,
		restricted: NewRestricted(append([]string{ChdirArg}, restricted...)...),
		RunArgs:    NewArgs(),
		EnvVars:    map[string]string{},
	}
}

// SplitExeArgs splits a single argument string on whitespace.
func SplitExeArgs(s string) []string {
	return strings.Fields(s)
}

func (s *RunSettings) RunCommand() string { return s.runCommand }

func (s *RunSettings) Executable() string { return s.exe }

func (s *RunSettings) ExeArgs() []string { return append([]string(nil), s.exeArgs...) }

func (s *RunSettings) Env() map[string]string { return s.EnvVars }

func (s *RunSettings) Restricted() Restricted { return s.restricted }

// Set stores a raw run option, as given by the user.
func (s *RunSettings) Set(key string, v Value) {
	s.RunArgs.Set(key, v)
}

func (s *RunSettings) SetEnv(key, value string) {
	s.EnvVars[key] = value
}

func (s *RunSettings) SetWorkingDir(dir string) {
	s.RunArgs.Set(ChdirArg, String(dir))
}

func (s *RunSettings) WorkingDir() string {
	if v, ok := s.RunArgs.Get(ChdirArg); ok {
		return v.String()
	}
	return ""
}

func (s *RunSettings) FormatRunArgs() []string {
	return FormatRunArgs(s.RunArgs, s.restricted)
}

// EnvList returns the environment as sorted KEY=VALUE pairs.
func (s *RunSettings) EnvList() []string {
	return EnvList(s.EnvVars)
}

// EnvList returns env as sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	ret := make([]string, 0, len(env))
	for k, v := range env {
		ret = append(ret, k+"="+v)
	}
	sort.Strings(ret)
	return ret
}

// Command assembles the full argument vector:
// run command, formatted run options, executable, executable arguments.
func Command(r Run) []string {
	cmd := []string{}
	if rc := r.RunCommand(); rc != "" {
		cmd = append(cmd, rc)
		cmd = append(cmd, r.FormatRunArgs()...)
	}
	cmd = append(cmd, r.Executable())
	return append(cmd, r.ExeArgs()...)
}

// BatchSettings holds the batch command and its option mapping.
type BatchSettings struct {
	batchCommand string

	BatchArgs *Args
}

func NewBatchSettings(batchCommand string) *BatchSettings {
	return &BatchSettings{
		batchCommand: batchCommand,
		BatchArgs:    NewArgs(),
	}
}

func (b *BatchSettings) BatchCommand() string { return b.batchCommand }

// Set stores a raw batch option override.
func (b *BatchSettings) Set(key string, v Value) {
	b.BatchArgs.Set(key, v)
}

// ShellJoin quotes each word that needs it for a POSIX shell.
func ShellJoin(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = shellQuote(w)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '.' || r == '/' || r == '=' || r == ':' || r == ',' || r == '@' || r == '+' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
