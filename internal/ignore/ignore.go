// Package ignore evaluates paths against user-supplied and built-in glob
// patterns plus a hidden-file rule.
//
// Patterns use shell-glob semantics (*, ?, []) where * and ? also cross
// path separators, and are anchored against the full /-normalized path,
// not just the basename. This means "*/.git/*" matches any path with a
// .git component at any depth.
package ignore

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mgrachev/treesnap/internal/types"
)

// BuiltinPatterns are the system-folder globs applied when the
// filter-system-folders toggle is on.
var BuiltinPatterns = []string{
	"*/.git/*",
	"*/.venv/*",
	"*/__pycache__/*",
	"*/.vs/*",
	"*/.vscode/*",
	"*/.idea/*",
	"*/node_modules/*",
	"*/build/*",
	"*/dist/*",
	"*/.svn/*",
	"*/.DS_Store",
}

// Matcher evaluates ignore rules against paths. Pure and synchronous;
// safe for concurrent use after construction.
type Matcher struct {
	user         []*regexp.Regexp
	builtin      []*regexp.Regexp
	filterSystem bool
}

// New creates a Matcher from user patterns. When filterSystem is true the
// built-in system-folder patterns and the hidden-dotfile rule also apply.
// Blank and unparseable patterns are skipped rather than rejected: the
// matcher is also fed persisted pattern lists that may predate validation.
func New(userPatterns []string, filterSystem bool) *Matcher {
	return &Matcher{
		user:         compile(userPatterns),
		builtin:      compile(BuiltinPatterns),
		filterSystem: filterSystem,
	}
}

// Matches reports whether path should be ignored.
func (m *Matcher) Matches(path string) bool {
	norm := types.NormalizePath(path)

	for _, re := range m.user {
		if re.MatchString(norm) {
			return true
		}
	}

	if !m.filterSystem {
		return false
	}

	for _, re := range m.builtin {
		if re.MatchString(norm) {
			return true
		}
	}

	// Hidden entries: basename starts with a dot. Length check excludes
	// the "." and ".." pseudo-entries.
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && len(base) > 1
}

func compile(patterns []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		if pat == "" || strings.HasPrefix(pat, "#") {
			continue
		}
		re, err := regexp.Compile(translate(pat))
		if err != nil {
			continue
		}
		res = append(res, re)
	}
	return res
}

// translate converts a shell glob to an anchored regular expression.
// Unlike filepath.Match, * and ? match across separators, mirroring how
// the persisted pattern lists were written.
func translate(pattern string) string {
	var sb strings.Builder
	sb.WriteString(`^`)
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '*':
			sb.WriteString(`.*`)
		case '?':
			sb.WriteString(`.`)
		case '[':
			j := i + 1
			if j < len(runes) && (runes[j] == '!' || runes[j] == '^') {
				j++
			}
			if j < len(runes) && runes[j] == ']' {
				j++
			}
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				// Unclosed class: treat the bracket literally.
				sb.WriteString(`\[`)
				continue
			}
			class := string(runes[i+1 : j])
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			sb.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i = j
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString(`$`)
	return sb.String()
}
