package postproc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const defaultLoopLimit = 30

// Rules rewrites text with substitutions from a file, one per line:
//
//	teh => the                     case-insensitive literal
//	re:/\bum,?\s*/ =>              regular expression, replaced everywhere
//	re:/Go lang/i => Go            flags after the closing slash: i
//
// Lines starting with # are comments. Rules are applied in order, and the
// whole list repeats until nothing changes or the loop limit is reached.
type Rules struct {
	path      string
	rules     []rule
	loopLimit int
}

type rule struct {
	re   *regexp.Regexp
	repl string
}

func LoadRules(path string, loopLimit int) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules file: %w", err)
	}
	r, err := ParseRules(string(data), loopLimit)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	r.path = path
	return r, nil
}

func ParseRules(src string, loopLimit int) (*Rules, error) {
	if loopLimit <= 0 {
		loopLimit = defaultLoopLimit
	}
	r := &Rules{loopLimit: loopLimit}
	var errs []error
	for i, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ru, err := parseRule(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}
		r.rules = append(r.rules, ru)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func parseRule(line string) (rule, error) {
	if rest, ok := strings.CutPrefix(line, "re:/"); ok {
		end := closingSlash(rest)
		if end < 0 {
			return rule{}, errors.New("unterminated pattern")
		}
		pattern := rest[:end]
		flags, repl, ok := strings.Cut(rest[end+1:], "=>")
		if !ok {
			return rule{}, errors.New("missing =>")
		}
		prefix := ""
		for _, f := range strings.TrimSpace(flags) {
			switch f {
			case 'i':
				prefix = "(?i)"
			default:
				return rule{}, fmt.Errorf("unsupported flag %q", f)
			}
		}
		re, err := regexp.Compile(prefix + strings.ReplaceAll(pattern, `\/`, "/"))
		if err != nil {
			return rule{}, err
		}
		return rule{re: re, repl: strings.TrimSpace(repl)}, nil
	}

	from, to, ok := strings.Cut(line, "=>")
	if !ok {
		return rule{}, errors.New("missing =>")
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return rule{}, errors.New("empty source")
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(from))
	return rule{re: re, repl: strings.ReplaceAll(strings.TrimSpace(to), "$", "$$")}, nil
}

// closingSlash finds the first unescaped '/'.
func closingSlash(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '/':
			return i
		}
	}
	return -1
}

func (r *Rules) Name() string { return "rules:" + filepath.Base(r.path) }

func (r *Rules) Process(text string) string {
	for range r.loopLimit {
		changed := false
		for _, ru := range r.rules {
			next := ru.re.ReplaceAllString(text, ru.repl)
			if next != text {
				text = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return text
}
