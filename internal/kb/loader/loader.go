// Package loader parses Markdown study-note documents into kb.Entry records.
//
// The expected document shape:
//
//	## Category Name
//
//	### What is a closure?
//	Answer paragraphs...
//
//	```js
//	captured as the entry's code sample
//	```
//
//	Tags: scope, functions
//
// Parsing is a single pass with no side effects; a malformed section aborts
// the load with a *ParseError naming the offending section.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/studykit/qadex/internal/kb"
	apperrors "github.com/studykit/qadex/pkg/errors"
)

const tagsPrefix = "Tags:"

// ParseError reports a malformed document section. It wraps
// apperrors.ErrMalformedSection so callers can match with errors.Is.
type ParseError struct {
	Document string
	Section  string
	Line     int
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: section %q (line %d): %s", e.Document, e.Section, e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return apperrors.ErrMalformedSection
}

// Load reads and parses the document at path.
func Load(path string) ([]kb.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads a Markdown document from r and returns its entries in document
// order. Entry IDs are derived from the sequence number and are unique within
// the document.
func Parse(r io.Reader, name string) ([]kb.Entry, error) {
	p := &parser{document: name}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		p.lineNo++
		if err := p.consume(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading document %s: %w", name, err)
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.entries, nil
}

// parser accumulates entries line by line. One instance per document.
type parser struct {
	document string
	lineNo   int

	category string
	entries  []kb.Entry

	// state of the entry currently being built
	open        bool
	question    string
	startLine   int
	answerLines []string
	codeLines   []string
	tags        []string

	inFence    bool
	fenceStart int
}

func (p *parser) consume(line string) error {
	if p.inFence {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			p.inFence = false
			return nil
		}
		p.codeLines = append(p.codeLines, line)
		return nil
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "### "), trimmed == "###":
		return p.startEntry(strings.TrimSpace(strings.TrimPrefix(trimmed, "###")))
	case strings.HasPrefix(trimmed, "## "), trimmed == "##":
		if err := p.closeEntry(); err != nil {
			return err
		}
		p.category = strings.TrimSpace(strings.TrimPrefix(trimmed, "##"))
		return nil
	case strings.HasPrefix(trimmed, "```"):
		if !p.open {
			return nil // stray fence outside any entry, e.g. in a preamble
		}
		p.inFence = true
		p.fenceStart = p.lineNo
		return nil
	case strings.HasPrefix(trimmed, tagsPrefix) && p.open:
		for _, tag := range strings.Split(strings.TrimPrefix(trimmed, tagsPrefix), ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				p.tags = append(p.tags, strings.ToLower(tag))
			}
		}
		return nil
	default:
		if p.open && trimmed != "" {
			p.answerLines = append(p.answerLines, trimmed)
		}
		return nil
	}
}

func (p *parser) startEntry(question string) error {
	if err := p.closeEntry(); err != nil {
		return err
	}
	if question == "" {
		return &ParseError{
			Document: p.document,
			Section:  fmt.Sprintf("line %d", p.lineNo),
			Line:     p.lineNo,
			Reason:   "entry heading has no question text",
		}
	}
	if p.category == "" {
		return &ParseError{
			Document: p.document,
			Section:  question,
			Line:     p.lineNo,
			Reason:   "entry appears before any category heading",
		}
	}
	p.open = true
	p.question = question
	p.startLine = p.lineNo
	return nil
}

// closeEntry finalises the in-progress entry, if any.
func (p *parser) closeEntry() error {
	if !p.open {
		return nil
	}
	seq := len(p.entries) + 1
	p.entries = append(p.entries, kb.Entry{
		ID:         fmt.Sprintf("%d", seq),
		Seq:        seq,
		Category:   p.category,
		Question:   p.question,
		Answer:     strings.Join(p.answerLines, "\n"),
		CodeSample: strings.Join(p.codeLines, "\n"),
		Tags:       p.tags,
	})
	p.open = false
	p.question = ""
	p.answerLines = nil
	p.codeLines = nil
	p.tags = nil
	return nil
}

func (p *parser) finish() error {
	if p.inFence {
		return &ParseError{
			Document: p.document,
			Section:  p.question,
			Line:     p.fenceStart,
			Reason:   "unterminated code fence",
		}
	}
	return p.closeEntry()
}
