package transcript

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const (
	// BlockSeparator separates accepted suggestions from the text before them.
	BlockSeparator = "\n\n"
	maxReplayLog   = 1024
)

// JoinText appends addition to existing with a single space, unless existing
// is empty or already ends in whitespace.
func JoinText(existing, addition string) string {
	if existing == "" {
		return addition
	}
	last, _ := utf8.DecodeLastRuneInString(existing)
	if unicode.IsSpace(last) {
		return existing + addition
	}
	return existing + " " + addition
}

func joinBlock(existing, block string) string {
	if existing == "" {
		return block
	}
	return existing + BlockSeparator + block
}

type appendKind uint8

const (
	appendInline appendKind = iota
	appendBlock
)

type appendEntry struct {
	rev  int64
	kind appendKind
	text string
}

func (e appendEntry) apply(content string) string {
	if e.kind == appendBlock {
		return joinBlock(content, e.text)
	}
	return JoinText(content, e.text)
}

// Note is the editable draft of the clinical note. Automatic appends and
// operator edits are serialized; each change bumps the revision.
type Note struct {
	mu      sync.Mutex
	content string
	rev     int64
	log     []appendEntry
}

func NewNote(content string) *Note {
	return &Note{content: content}
}

// Append adds transcribed text with the whitespace-safe join rule.
func (n *Note) Append(text string) (string, int64) {
	return n.appendEntry(appendInline, text)
}

// AppendBlock adds text as its own paragraph.
func (n *Note) AppendBlock(text string) (string, int64) {
	return n.appendEntry(appendBlock, strings.TrimSpace(text))
}

func (n *Note) appendEntry(kind appendKind, text string) (string, int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return n.content, n.rev
	}
	n.rev++
	entry := appendEntry{rev: n.rev, kind: kind, text: text}
	n.content = entry.apply(n.content)
	n.log = append(n.log, entry)
	if len(n.log) > maxReplayLog {
		n.log = n.log[len(n.log)-maxReplayLog:]
	}
	return n.content, n.rev
}

// Edit replaces the content with an operator's version. Appends that landed
// after baseRevision are replayed on top, in order, so the editor's stale
// snapshot never drops them. A baseRevision of 0 replaces unconditionally.
func (n *Note) Edit(content string, baseRevision int64) (string, int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if baseRevision > 0 {
		for _, e := range n.log {
			if e.rev > baseRevision {
				content = e.apply(content)
			}
		}
	}
	n.content = content
	n.rev++
	return n.content, n.rev
}

// Release removes committed text from the front of the note once it has
// been written to the record. Whatever arrived after it, appended or typed,
// is kept. If the committed text is no longer a prefix, because the operator
// rewrote that part meanwhile, the note is left whole and released is false.
func (n *Note) Release(committed string) (content string, rev int64, released bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rest, ok := strings.CutPrefix(n.content, committed)
	if !ok {
		return n.content, n.rev, false
	}
	n.content = strings.TrimLeftFunc(rest, unicode.IsSpace)
	n.rev++
	return n.content, n.rev, true
}

// Reset replaces the content and forgets every pending append.
func (n *Note) Reset(content string) (string, int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.content = content
	n.rev++
	n.log = nil
	return n.content, n.rev
}

func (n *Note) Snapshot() (string, int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.content, n.rev
}
