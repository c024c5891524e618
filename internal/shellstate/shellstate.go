// Package shellstate implements the Stateful Shell Emulator (spec §4.1):
// it gives the illusion of a persistent interactive shell over a
// sequence of independent container exec calls, by synthesizing a
// composite script that restores recorded state before the user's
// command and extracts updated state after it.
package shellstate

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

const (
	markerState = "___AGENTRT_STATE_MARKER___"
	markerEnv   = "___AGENTRT_ENV_MARKER___"
	markerAlias = "___AGENTRT_ALIAS_MARKER___"
	markerEnd   = "___AGENTRT_END_MARKER___"

	// DefaultWorkDir is the initial working directory of a fresh shell
	// (spec §3: "Initial working directory is /mnt").
	DefaultWorkDir = "/mnt"

	// DefaultHistoryCap bounds the shell history ring buffer (SPEC_FULL
	// supplement #1, grounded on stateful_shell.py keeping the last 20;
	// widened here to 50 since nothing else depends on the exact cap).
	DefaultHistoryCap = 50
)

// State is the persistent, per-container shell state tracked across
// stateless exec calls (spec §3 "Stateful Shell state").
type State struct {
	WorkDir    string
	Env        map[string]string
	Aliases    map[string]string
	Functions  map[string]string
	History    []string
	HistoryCap int
}

// New creates a fresh shell state at the default working directory.
func New() *State {
	return &State{
		WorkDir:    DefaultWorkDir,
		Env:        map[string]string{},
		Aliases:    map[string]string{},
		Functions:  map[string]string{},
		HistoryCap: DefaultHistoryCap,
	}
}

// Reset restores the state to its initial values, used when a Container
// Agent self-heals after losing its container (spec §4.2: "shell state
// is lost and reset to initial").
func (s *State) Reset() {
	s.WorkDir = DefaultWorkDir
	s.Env = map[string]string{}
	s.Aliases = map[string]string{}
	s.Functions = map[string]string{}
	s.History = nil
}

// Result is the outcome of one emulated command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Build synthesizes the composite script for one command invocation
// (spec §4.1 "Algorithm"): inside one subshell grouping, restore state,
// run the user command, then emit markers and state dumps and exit with
// the command's status. The dumps therefore see the command's cd/export/
// alias effects, and an `exit` in the user command ends the subshell
// before any marker is printed, so Parse leaves state unchanged.
//
// The whitespace-only case returns ("", false): the caller must treat
// this as exit_code 0, empty output, no state mutation, without ever
// invoking the container (spec §8 boundary behavior).
func (s *State) Build(command string) (script string, ok bool) {
	if strings.TrimSpace(command) == "" {
		return "", false
	}

	var setup []string
	if s.WorkDir != DefaultWorkDir {
		setup = append(setup, fmt.Sprintf("cd %s", quote(s.WorkDir)))
	}
	for _, key := range sortedKeys(s.Env) {
		setup = append(setup, fmt.Sprintf("export %s=%s", key, quote(s.Env[key])))
	}
	for _, name := range sortedKeys(s.Aliases) {
		setup = append(setup, fmt.Sprintf("alias %s=%s", name, quote(s.Aliases[name])))
	}
	for _, name := range sortedKeys(s.Functions) {
		setup = append(setup, s.Functions[name])
	}

	userCmd := s.preParse(command)

	var body string
	if len(setup) > 0 {
		body = strings.Join(append(setup, userCmd), " && ")
	} else {
		body = userCmd
	}

	extraction := strings.Join([]string{
		"EXIT_CODE=$?",
		fmt.Sprintf("echo %s", markerState),
		"pwd",
		fmt.Sprintf("echo %s", markerEnv),
		"env | grep -E '^[A-Za-z_][A-Za-z0-9_]*=' || true",
		fmt.Sprintf("echo %s", markerAlias),
		"alias 2>/dev/null || true",
		fmt.Sprintf("echo %s", markerEnd),
		"exit $EXIT_CODE",
	}, "; ")

	return fmt.Sprintf("(%s\n%s)", body, extraction), true
}

// Encode base64-encodes script for transmission, avoiding shell-quoting
// pitfalls with multiline/heredoc input (spec §4.1 "Escaping"). The
// returned argv decodes and pipes the blob into a single shell
// invocation; it is what the Container Agent hands to the container
// exec interface.
func Encode(script string) []string {
	encoded := base64.StdEncoding.EncodeToString([]byte(script))
	return []string{"/bin/sh", "-c", fmt.Sprintf("echo %s | base64 -d | /bin/sh", encoded)}
}

// preParse captures declarative intent the post-parse of command output
// cannot recover (spec §4.1): unset/unalias/function definitions are
// applied immediately, and a bare `cd` is rewritten to `cd ~`. It is
// conservative — it records history and adjusts tracked maps but never
// rewrites the semantics of what actually runs.
func (s *State) preParse(command string) string {
	trimmed := strings.TrimSpace(command)
	s.recordHistory(trimmed)

	switch {
	case trimmed == "cd":
		return "cd ~"
	case strings.HasPrefix(trimmed, "unset "):
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, "unset "))
		delete(s.Env, name)
		return trimmed
	case strings.HasPrefix(trimmed, "unalias "):
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, "unalias "))
		delete(s.Aliases, name)
		return trimmed
	case strings.HasPrefix(trimmed, "function ") || strings.Contains(trimmed, "() {"):
		if name := functionName(trimmed); name != "" {
			s.Functions[name] = trimmed
		}
		return trimmed
	default:
		return trimmed
	}
}

func functionName(command string) string {
	if strings.HasPrefix(command, "function ") {
		rest := strings.TrimSpace(strings.TrimPrefix(command, "function "))
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return ""
		}
		return strings.TrimSuffix(fields[0], "(")
	}
	idx := strings.Index(command, "(")
	if idx <= 0 {
		return ""
	}
	return strings.TrimSpace(command[:idx])
}

func (s *State) recordHistory(command string) {
	s.History = append(s.History, command)
	cap := s.HistoryCap
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	if len(s.History) > cap {
		s.History = s.History[len(s.History)-cap:]
	}
}

// Parse splits raw combined output on the state markers, updates cwd/
// env/alias state from the trailing dump, and returns the portion of
// stdout preceding the first marker plus a best-effort exit code.
//
// Failure semantics (spec §4.1): a malformed marker sequence (shell
// killed mid-output, marker elided by exec, etc.) leaves shell state
// unchanged and returns the output preceding the first marker (the whole
// output when no marker appeared) with the exec's exit code.
func (s *State) Parse(rawStdout string, execExitCode int) Result {
	if !strings.Contains(rawStdout, markerState) {
		return Result{ExitCode: execExitCode, Stdout: rawStdout}
	}

	parts := strings.SplitN(rawStdout, markerState, 2)
	userOutput := parts[0]
	if len(parts) < 2 {
		return Result{ExitCode: execExitCode, Stdout: userOutput}
	}
	tail := parts[1]

	if !strings.Contains(tail, markerEnv) {
		return Result{ExitCode: execExitCode, Stdout: userOutput}
	}
	pwdPart, rest, _ := cut(tail, markerEnv)

	if !strings.Contains(rest, markerAlias) {
		return Result{ExitCode: execExitCode, Stdout: userOutput}
	}
	envPart, rest2, _ := cut(rest, markerAlias)

	if !strings.Contains(rest2, markerEnd) {
		return Result{ExitCode: execExitCode, Stdout: userOutput}
	}
	aliasPart, _, _ := cut(rest2, markerEnd)

	newWorkDir := strings.TrimSpace(pwdPart)
	newEnv := parseEnv(envPart)
	newAliases := parseAliases(aliasPart)

	if newWorkDir != "" {
		s.WorkDir = newWorkDir
	}
	for k, v := range newEnv {
		s.Env[k] = v
	}
	for k, v := range newAliases {
		s.Aliases[k] = v
	}

	return Result{ExitCode: execExitCode, Stdout: userOutput}
}

// CleanStderr strips lines that are solely shell-prompt noise (blank or
// whitespace-only lines), per spec §4.1.
func CleanStderr(raw string) string {
	lines := strings.Split(raw, "\n")
	var kept []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// reservedEnvKeys are shell-internal variables excluded from the tracked
// environment (spec §4.1: "filtering out shell-internal variables such
// as path, shlvl, and the shell's own bookkeeping").
var reservedEnvKeys = map[string]bool{
	"PATH": true, "SHLVL": true, "PWD": true, "OLDPWD": true, "_": true,
	"PS1": true, "PS2": true,
}

func parseEnv(block string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := line[:idx]
		value := line[idx+1:]
		if reservedEnvKeys[key] || strings.HasPrefix(key, "BASH_") || strings.HasPrefix(key, "___") {
			continue
		}
		out[key] = value
	}
	return out
}

func parseAliases(block string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "alias ") {
			continue
		}
		def := strings.TrimSpace(strings.TrimPrefix(line, "alias "))
		idx := strings.Index(def, "=")
		if idx <= 0 {
			continue
		}
		name := def[:idx]
		value := unquote(def[idx+1:])
		out[name] = value
	}
	return out
}

// cut is strings.Cut with the "found" bool still returned but tolerant
// of the substring not being present (callers already checked).
func cut(s, sep string) (before, after string, found bool) {
	return strings.Cut(s, sep)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
