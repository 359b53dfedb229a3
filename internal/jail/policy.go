package jail

import (
	"fmt"
	"strings"
)

// DefaultAllowed lists the base commands a workspace may run.
var DefaultAllowed = []string{
	"python", "python3", "pip", "pip3",
	"node", "npm", "npx",
	"ls", "cat", "head", "tail", "grep", "find",
	"mkdir", "touch", "cp", "mv", "rm",
	"echo", "pwd", "which", "env",
	"git", "curl", "wget",
	"cd",
	"g++", "gcc", "make", "cmake", "cc", "c++", "clang", "clang++",
}

// DefaultBlocked lists substrings that deny a command outright.
// A blocked match wins over allow-list membership.
var DefaultBlocked = []string{
	"sudo", "su ", "chmod 777", "rm -rf /",
	"/etc/", "/usr/", "/bin/", "/sbin/",
	"~/", "../", "$HOME",
	"eval", "exec",
}

// CommandPolicy decides whether a shell command may run in a jail.
type CommandPolicy struct {
	allowed map[string]bool
	blocked []string
}

// NewCommandPolicy builds a policy from the defaults plus extra entries.
func NewCommandPolicy(extraAllowed, extraBlocked []string) *CommandPolicy {
	p := &CommandPolicy{allowed: make(map[string]bool)}
	for _, c := range DefaultAllowed {
		p.allowed[c] = true
	}
	for _, c := range extraAllowed {
		if c = strings.TrimSpace(c); c != "" {
			p.allowed[c] = true
		}
	}
	p.blocked = append(p.blocked, DefaultBlocked...)
	for _, b := range extraBlocked {
		if b != "" {
			p.blocked = append(p.blocked, b)
		}
	}
	return p
}

// DefaultCommandPolicy returns the stock policy.
func DefaultCommandPolicy() *CommandPolicy {
	return NewCommandPolicy(nil, nil)
}

// Check reports whether command may run and, if not, why.
func (p *CommandPolicy) Check(command string) (bool, string) {
	for _, pattern := range p.blocked {
		if strings.Contains(command, pattern) {
			return false, fmt.Sprintf("Blocked pattern detected: %s", pattern)
		}
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false, "Empty command"
	}
	base := fields[0]

	if p.allowed[base] {
		return true, "OK"
	}
	// Relative scripts and interpreter variants (python3.12, ...)
	if strings.HasPrefix(base, "./") || strings.HasPrefix(base, "python") {
		return true, "OK"
	}
	return false, fmt.Sprintf("Command not in whitelist: %s", base)
}
