// File: internal/analysis/core/definitions.go
package core

import (
	"fmt"
	"sort"
	"strings"
)

// VulnClass names a category of vulnerability a tainted value can trigger.
// Taint is tracked per class: a value can be sanitized for one class and still
// be dangerous for another.
type VulnClass string

const (
	ClassXSS            VulnClass = "XSS"
	ClassOSCommanding   VulnClass = "OS_COMMANDING"
	ClassFileInclude    VulnClass = "FILE_INCLUDE"
	ClassFileDisclosure VulnClass = "FILE_DISCLOSURE"
	ClassSQLInjection   VulnClass = "SQL_INJECTION"
)

// AllClasses lists every known class in a stable order.
var AllClasses = []VulnClass{
	ClassXSS,
	ClassOSCommanding,
	ClassFileInclude,
	ClassFileDisclosure,
	ClassSQLInjection,
}

// ParseVulnClass converts a configuration string into a VulnClass.
func ParseVulnClass(s string) (VulnClass, error) {
	normalized := VulnClass(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range AllClasses {
		if c == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown vulnerability class %q", s)
}

// ClassMetadata carries the reporting attributes of a vulnerability class.
type ClassMetadata struct {
	Name           string
	Severity       string
	CWE            []string
	Description    string
	Recommendation string
}

var classMetadata = map[VulnClass]ClassMetadata{
	ClassXSS: {
		Name:           "Cross-Site Scripting",
		Severity:       "high",
		CWE:            []string{"CWE-79"},
		Description:    "User controlled data reaches an output function without HTML encoding.",
		Recommendation: "Encode output with htmlspecialchars() or htmlentities() before writing it to the response.",
	},
	ClassOSCommanding: {
		Name:           "OS Command Injection",
		Severity:       "critical",
		CWE:            []string{"CWE-78"},
		Description:    "User controlled data reaches a process execution function.",
		Recommendation: "Avoid shell execution with external input, or quote every argument with escapeshellarg().",
	},
	ClassFileInclude: {
		Name:           "File Inclusion",
		Severity:       "critical",
		CWE:            []string{"CWE-98"},
		Description:    "User controlled data selects a file passed to include or require.",
		Recommendation: "Map user input onto an allow-list of files instead of building include paths from it.",
	},
	ClassFileDisclosure: {
		Name:           "File Disclosure",
		Severity:       "high",
		CWE:            []string{"CWE-22"},
		Description:    "User controlled data selects a file that is read and possibly returned to the client.",
		Recommendation: "Normalize the path with basename() or realpath() and check it against an allowed directory.",
	},
	ClassSQLInjection: {
		Name:           "SQL Injection",
		Severity:       "critical",
		CWE:            []string{"CWE-89"},
		Description:    "User controlled data reaches a database query function.",
		Recommendation: "Use prepared statements with bound parameters.",
	},
}

// Metadata returns the reporting attributes of the class. Unknown classes get a generic entry.
func (c VulnClass) Metadata() ClassMetadata {
	if m, ok := classMetadata[c]; ok {
		return m
	}
	return ClassMetadata{Name: string(c), Severity: "medium"}
}

// ClassSet is a set of vulnerability classes.
type ClassSet map[VulnClass]struct{}

// NewClassSet builds a set from the given classes.
func NewClassSet(classes ...VulnClass) ClassSet {
	s := make(ClassSet, len(classes))
	for _, c := range classes {
		s[c] = struct{}{}
	}
	return s
}

// FullClassSet returns a set containing every known class.
func FullClassSet() ClassSet {
	return NewClassSet(AllClasses...)
}

func (s ClassSet) Has(c VulnClass) bool {
	_, ok := s[c]
	return ok
}

func (s ClassSet) Add(c VulnClass) {
	s[c] = struct{}{}
}

// Union adds every class of other to s.
func (s ClassSet) Union(other ClassSet) {
	for c := range other {
		s[c] = struct{}{}
	}
}

// Minus returns a new set with the classes of other removed.
func (s ClassSet) Minus(other ClassSet) ClassSet {
	out := make(ClassSet, len(s))
	for c := range s {
		if !other.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

func (s ClassSet) Clone() ClassSet {
	out := make(ClassSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

func (s ClassSet) Empty() bool { return len(s) == 0 }

// Sorted returns the classes in lexical order.
func (s ClassSet) Sorted() []VulnClass {
	out := make([]VulnClass, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s ClassSet) String() string {
	parts := make([]string, 0, len(s))
	for _, c := range s.Sorted() {
		parts = append(parts, string(c))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
