package chain

import (
	"strings"

	"chainrelay/pkg/domain"
)

// Path is an ordered chain of contact-relation hashes from the reporter to
// a discovered node, inclusive of both ends.
type Path []domain.ContactHash

// Recipient returns the final node of the path.
func (p Path) Recipient() domain.ContactHash {
	return p[len(p)-1]
}

func (p Path) key() string {
	parts := make([]string, len(p))
	for i, h := range p {
		parts[i] = string(h)
	}
	return strings.Join(parts, ">")
}

// Entry is everything known about one recipient for one report: the
// designated primary path and every discovered path.
type Entry struct {
	Recipient domain.ContactHash
	Primary   Path
	All       []Path
}

// Dedup collapses all paths reaching the same recipient into a single
// logical notification. The first path to reach a recipient becomes
// primary; a strictly shorter later path replaces it; an equal-length later
// path is credited but never replaces (first-discovered tie-break).
type Dedup struct {
	entries map[domain.ContactHash]*Entry
	seen    map[domain.ContactHash]map[string]struct{}
	order   []domain.ContactHash
}

func NewDedup() *Dedup {
	return &Dedup{
		entries: make(map[domain.ContactHash]*Entry),
		seen:    make(map[domain.ContactHash]map[string]struct{}),
	}
}

// Add records one discovered path for the recipient it terminates at.
// Identical paths collapse to one credit.
func (d *Dedup) Add(path Path) {
	recipient := path.Recipient()

	entry, ok := d.entries[recipient]
	if !ok {
		entry = &Entry{Recipient: recipient, Primary: path}
		d.entries[recipient] = entry
		d.seen[recipient] = make(map[string]struct{})
		d.order = append(d.order, recipient)
	}

	key := path.key()
	if _, dup := d.seen[recipient][key]; dup {
		return
	}
	d.seen[recipient][key] = struct{}{}
	entry.All = append(entry.All, path)

	if len(path) < len(entry.Primary) {
		entry.Primary = path
	}
}

// Entries returns all recipients in first-discovered order.
func (d *Dedup) Entries() []*Entry {
	out := make([]*Entry, 0, len(d.order))
	for _, recipient := range d.order {
		out = append(out, d.entries[recipient])
	}
	return out
}

// Len returns the number of distinct recipients.
func (d *Dedup) Len() int {
	return len(d.order)
}
