// Package chunker splits conversation transcripts into memory-item-sized
// pieces before they are written to the metadata store.
package chunker

import (
	"strings"
)

const (
	DefaultTargetSize = 400
	DefaultMinSize    = 100
	DefaultMaxSize    = 600
)

// Options configures splitting behavior.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default splitting options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
	}
}

// Split breaks transcript text into pieces. Short text (<= maxSize)
// returns a single piece. Splitting prefers paragraph boundaries and
// falls back to line boundaries for oversized paragraphs.
func Split(text string, opts Options) []string {
	if opts.TargetSize == 0 {
		opts = DefaultOptions()
	}

	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	if len(text) <= opts.MaxSize {
		return []string{text}
	}

	return merge(paragraphs(text), opts)
}

// paragraphs splits text on blank lines.
func paragraphs(text string) []string {
	var out []string
	var current []string

	flush := func() {
		t := strings.TrimSpace(strings.Join(current, "\n"))
		if t != "" {
			out = append(out, t)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return out
}

// merge combines small paragraphs and splits oversized ones, targeting
// opts.TargetSize per piece.
func merge(paras []string, opts Options) []string {
	var results []string
	var accum string

	flushAccum := func() {
		t := strings.TrimSpace(accum)
		if t == "" {
			return
		}
		if len(t) > opts.MaxSize {
			results = append(results, hardSplit(t, opts)...)
		} else {
			results = append(results, t)
		}
		accum = ""
	}

	for _, p := range paras {
		if accum == "" {
			accum = p
			continue
		}
		combined := accum + "\n\n" + p
		if len(combined) <= opts.TargetSize {
			accum = combined
		} else {
			flushAccum()
			accum = p
		}
	}
	flushAccum()

	return results
}

// hardSplit breaks text that exceeds maxSize on line boundaries.
func hardSplit(text string, opts Options) []string {
	var results []string
	var current []string
	curLen := 0

	flush := func() {
		t := strings.TrimSpace(strings.Join(current, "\n"))
		if t != "" {
			results = append(results, t)
		}
		current = nil
		curLen = 0
	}

	for _, line := range strings.Split(text, "\n") {
		if curLen+len(line) > opts.TargetSize && len(current) > 0 {
			flush()
		}
		current = append(current, line)
		curLen += len(line) + 1
	}
	flush()

	return results
}
