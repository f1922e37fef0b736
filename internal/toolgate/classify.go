package toolgate

import "regexp"

// classifierEntry pairs a compiled pattern with the error_kind it maps
// to. Order matters: first match wins (spec §4.4).
type classifierEntry struct {
	kind    ErrorKind
	pattern *regexp.Regexp
}

var classifiers = []classifierEntry{
	{KindTimeout, regexp.MustCompile(`(?i)\b(timed? ?out|deadline exceeded|context deadline)\b`)},
	{KindPermission, regexp.MustCompile(`(?i)\b(permission denied|forbidden|eacces|unauthorized|403)\b`)},
	{KindNotFound, regexp.MustCompile(`(?i)\b(no such file or directory|not found|404|does not exist)\b`)},
	{KindNetwork, regexp.MustCompile(`(?i)\b(connection refused|no route to host|network is unreachable|dns|econnrefused|tls handshake)\b`)},
	{KindResource, regexp.MustCompile(`(?i)\b(out of memory|oom|disk (quota exceeded|full)|enospc|resource exhausted|rate limit(ed)?|too many open files)\b`)},
	{KindDependency, regexp.MustCompile(`(?i)\b(module not found|import error|no module named|missing dependency|cannot find package|unresolved import)\b`)},
	{KindSyntax, regexp.MustCompile(`(?i)\b(syntax error|parse error|unexpected token|invalid argument|unexpected eof)\b`)},
}

// ClassifyFailure runs the ordered regex table over a tool's output
// text, or over err's message when the output is empty. err == nil is always KindNone regardless of
// text (success). A non-nil err that matches nothing falls through to
// KindExecution, the catch-all (spec §3's error_kind set is closed).
func ClassifyFailure(err error, output string) ErrorKind {
	if err == nil {
		return KindNone
	}
	text := output
	if text == "" {
		text = err.Error()
	}
	for _, c := range classifiers {
		if c.pattern.MatchString(text) {
			return c.kind
		}
	}
	return KindExecution
}
