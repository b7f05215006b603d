// File: internal/analysis/core/tables.go
package core

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/xkilldash9x/phpsca/internal/config"
)

// -- Default Classification Data --

// defaultSuperglobals are the request containers whose indexed reads introduce taint.
var defaultSuperglobals = []string{
	"$_GET",
	"$_POST",
	"$_REQUEST",
	"$_COOKIE",
	"$_COOKIES",
	"$_FILES",
	"$_SERVER",
}

// defaultSinks maps a sink function to the class it is dangerous for. Language
// constructs (echo, print, include...) are listed under the keyword the parser
// reports for them.
var defaultSinks = map[string]VulnClass{
	// Output
	"echo":    ClassXSS,
	"print":   ClassXSS,
	"printf":  ClassXSS,
	"vprintf": ClassXSS,
	"print_r": ClassXSS,
	"die":     ClassXSS,
	"exit":    ClassXSS,

	// Process execution
	"system":     ClassOSCommanding,
	"exec":       ClassOSCommanding,
	"passthru":   ClassOSCommanding,
	"shell_exec": ClassOSCommanding,
	"popen":      ClassOSCommanding,
	"proc_open":  ClassOSCommanding,
	"pcntl_exec": ClassOSCommanding,
	"`":          ClassOSCommanding,

	// Inclusion
	"include":      ClassFileInclude,
	"include_once": ClassFileInclude,
	"require":      ClassFileInclude,
	"require_once": ClassFileInclude,

	// Raw file reads
	"file_get_contents": ClassFileDisclosure,
	"file":              ClassFileDisclosure,
	"readfile":          ClassFileDisclosure,
	"fopen":             ClassFileDisclosure,
	"fread":             ClassFileDisclosure,
	"highlight_file":    ClassFileDisclosure,
	"show_source":       ClassFileDisclosure,
	"finfo_file":        ClassFileDisclosure,

	// Queries
	"mysql_query":  ClassSQLInjection,
	"mysqli_query": ClassSQLInjection,
	"pg_query":     ClassSQLInjection,
	"sqlite_query": ClassSQLInjection,
}

var defaultSanitizers = map[string][]VulnClass{
	"escapeshellarg":            {ClassOSCommanding},
	"escapeshellcmd":            {ClassOSCommanding},
	"htmlspecialchars":          {ClassXSS},
	"htmlentities":              {ClassXSS},
	"strip_tags":                {ClassXSS},
	"urlencode":                 {ClassXSS},
	"rawurlencode":              {ClassXSS},
	"basename":                  {ClassFileInclude, ClassFileDisclosure},
	"realpath":                  {ClassFileInclude, ClassFileDisclosure},
	"addslashes":                {ClassSQLInjection},
	"mysql_real_escape_string":  {ClassSQLInjection},
	"mysqli_real_escape_string": {ClassSQLInjection},
	"mysqli_escape_string":      {ClassSQLInjection},
	"pg_escape_string":          {ClassSQLInjection},
	"intval":                    AllClasses,
	"floatval":                  AllClasses,
	"boolval":                   AllClasses,
	"md5":                       AllClasses,
	"sha1":                      AllClasses,
	"crc32":                     AllClasses,
}

// defaultPropagators return a value derived from their arguments.
var defaultPropagators = []string{
	"trim", "ltrim", "rtrim", "strtolower", "strtoupper", "ucfirst", "lcfirst",
	"substr", "str_replace", "str_ireplace", "str_pad", "str_repeat", "sprintf",
	"vsprintf", "implode", "join", "explode", "urldecode", "rawurldecode",
	"base64_decode", "base64_encode", "json_decode", "json_encode", "stripslashes",
	"nl2br", "strrev", "array_pop", "array_shift", "current", "reset", "end",
	"preg_replace", "serialize", "unserialize",
}

// defaultSourceFunctions return request data directly.
var defaultSourceFunctions = []string{
	"getallheaders",
	"apache_request_headers",
}

// -- Tables --

// Tables is the static classification consulted during analysis. It is built
// once and only read afterwards, so one instance can serve concurrent analyses.
type Tables struct {
	superglobals    map[string]struct{}
	sinks           map[string]VulnClass
	sanitizers      map[string]ClassSet
	propagators     map[string]struct{}
	sourceFunctions map[string]struct{}
}

// DefaultTables returns the built-in classification without overrides.
func DefaultTables() *Tables {
	t, _ := NewTables(config.AnalysisConfig{})
	return t
}

// NewTables builds the classification tables from the defaults plus the
// additions configured under `analysis`.
func NewTables(cfg config.AnalysisConfig) (*Tables, error) {
	t := &Tables{
		superglobals:    make(map[string]struct{}),
		sinks:           make(map[string]VulnClass, len(defaultSinks)),
		sanitizers:      make(map[string]ClassSet, len(defaultSanitizers)),
		propagators:     make(map[string]struct{}),
		sourceFunctions: make(map[string]struct{}),
	}

	for _, sg := range append(append([]string{}, defaultSuperglobals...), cfg.ExtraSuperglobals...) {
		if !strings.HasPrefix(sg, "$") {
			sg = "$" + sg
		}
		t.superglobals[sg] = struct{}{}
	}

	for fn, class := range defaultSinks {
		t.sinks[NormalizeFunctionName(fn)] = class
	}
	for rawClass, fns := range cfg.ExtraSinks {
		class, err := ParseVulnClass(rawClass)
		if err != nil {
			return nil, fmt.Errorf("analysis.extra_sinks: %w", err)
		}
		for _, fn := range fns {
			t.sinks[NormalizeFunctionName(fn)] = class
		}
	}

	for fn, classes := range defaultSanitizers {
		t.sanitizers[NormalizeFunctionName(fn)] = NewClassSet(classes...)
	}
	for fn, rawClasses := range cfg.ExtraSanitizers {
		set := NewClassSet()
		for _, rc := range rawClasses {
			class, err := ParseVulnClass(rc)
			if err != nil {
				return nil, fmt.Errorf("analysis.extra_sanitizers[%s]: %w", fn, err)
			}
			set.Add(class)
		}
		t.sanitizers[NormalizeFunctionName(fn)] = set
	}

	for _, fn := range append(append([]string{}, defaultPropagators...), cfg.ExtraPropagators...) {
		t.propagators[NormalizeFunctionName(fn)] = struct{}{}
	}
	for _, fn := range append(append([]string{}, defaultSourceFunctions...), cfg.ExtraSourceFunctions...) {
		t.sourceFunctions[NormalizeFunctionName(fn)] = struct{}{}
	}

	return t, nil
}

// NormalizeFunctionName strips the global namespace prefix and folds case, since
// PHP function names are case-insensitive.
func NormalizeFunctionName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), `\`)
	return cases.Fold().String(name)
}

// IsSuperglobal reports whether the variable name (with its sigil) is a taint source container.
// Variable names are case-sensitive in PHP.
func (t *Tables) IsSuperglobal(name string) bool {
	_, ok := t.superglobals[name]
	return ok
}

// Superglobals returns the configured source containers in lexical order.
func (t *Tables) Superglobals() []string {
	out := make([]string, 0, len(t.superglobals))
	for sg := range t.superglobals {
		out = append(out, sg)
	}
	sort.Strings(out)
	return out
}

// CheckIfSink returns the vulnerability class of a sink function.
func (t *Tables) CheckIfSink(fn string) (VulnClass, bool) {
	class, ok := t.sinks[NormalizeFunctionName(fn)]
	return class, ok
}

// CheckIfSanitizer returns the classes a sanitizer removes from its result.
func (t *Tables) CheckIfSanitizer(fn string) (ClassSet, bool) {
	classes, ok := t.sanitizers[NormalizeFunctionName(fn)]
	return classes, ok
}

// CheckIfPropagator reports whether the function's result carries its arguments' taint.
func (t *Tables) CheckIfPropagator(fn string) bool {
	_, ok := t.propagators[NormalizeFunctionName(fn)]
	return ok
}

// CheckIfSourceFunction reports whether the function returns user controlled data.
func (t *Tables) CheckIfSourceFunction(fn string) bool {
	_, ok := t.sourceFunctions[NormalizeFunctionName(fn)]
	return ok
}
