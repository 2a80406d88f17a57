// Package postproc rewrites raw transcriptions before they are typed.
// A Pipeline runs the profile's enabled processors in order; each one
// receives the output of the previous.
package postproc

import (
	"path/filepath"
	"strings"

	"hotscribe/log"
	"hotscribe/transcriber"
)

type Processor interface {
	Name() string
	Process(text string) string
}

// Output is a result after post-processing. Processed starts as Raw.
type Output struct {
	Raw            string
	Processed      string
	Language       string
	IsUtteranceEnd bool
}

type Pipeline struct {
	processors []Processor
}

var builtins = map[string]func() Processor{
	"add_trailing_space": func() Processor { return trailingSpace{} },
	"capitalize":         func() Processor { return capitalize{} },
	"remove_punctuation": func() Processor { return removePunctuation{} },
}

// New builds a pipeline from enabled_scripts. Relative rules files are
// resolved against baseDir. Unknown names and unreadable rules files are
// logged and skipped.
func New(names []string, baseDir string) *Pipeline {
	p := &Pipeline{}
	for _, raw := range names {
		name := strings.TrimSuffix(strings.TrimSpace(raw), ".py")
		if path, ok := strings.CutPrefix(name, "rules:"); ok {
			if !filepath.IsAbs(path) && baseDir != "" {
				path = filepath.Join(baseDir, path)
			}
			r, err := LoadRules(path, 0)
			if err != nil {
				log.Warnf("post-processing: %v", err)
				continue
			}
			p.processors = append(p.processors, r)
			continue
		}
		mk, ok := builtins[name]
		if !ok {
			log.Warnf("post-processing: unknown processor %q", raw)
			continue
		}
		p.processors = append(p.processors, mk())
	}
	return p
}

// Names lists the processors that were loaded, in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

func (p *Pipeline) Process(r transcriber.Result) Output {
	out := Output{
		Raw:            r.RawText,
		Processed:      r.RawText,
		Language:       r.Language,
		IsUtteranceEnd: r.IsUtteranceEnd,
	}
	for _, proc := range p.processors {
		out.Processed = proc.Process(out.Processed)
	}
	return out
}
