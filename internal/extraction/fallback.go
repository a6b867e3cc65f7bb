package extraction

import (
	"regexp"
	"strings"
)

// The fallback parser handles blobs that predate the JSON contract or model
// responses that ignored it: markdown-ish prose with bold labels, headings,
// and pipe tables. It is a line-oriented machine with one classifier per
// state so the overlapping regex cases stay auditable.

var (
	// Section headers, tried in order.
	reNumberedBoldHeading = regexp.MustCompile(`^\*\*\d+[.)]\s*(.+?):?\*\*:?\s*$`)
	reHashHeading         = regexp.MustCompile(`^#{1,3}\s+(.+?)\s*$`)
	reStandaloneBold      = regexp.MustCompile(`^\*\*([^*]+?)\*\*\s*$`)

	// Key-value lines, tried in order. Only attempted on lines without a
	// pipe character, so table rows are never misread as key-value pairs.
	reBulletBoldKV = regexp.MustCompile(`^[-*+]\s+\*\*([^*]+?):?\*\*:?\s*(.+)$`)
	reBoldKV       = regexp.MustCompile(`^\*\*([^*]+?):?\*\*:?\s*(.+)$`)
	rePlainKV      = regexp.MustCompile(`^([A-Z][A-Za-z0-9 ()/&'.,-]{0,60}?)\s*:\s*(.+)$`)

	// A markdown table separator row: pipes, dashes, colons, whitespace.
	reTableSeparator = regexp.MustCompile(`^\|[\s|:\-]+$`)

	// Introductory filler the model wraps around its answer. Discarded
	// rather than collected into rawText.
	reFiller = regexp.MustCompile(`(?i)^(here'?s|here is|the following|extracted|below)`)

	reLeadingBullet = regexp.MustCompile(`^[-*+]\s+`)
)

type fallbackState int

const (
	stateScan fallbackState = iota
	stateSection
	stateTable
)

type fallbackParser struct {
	doc   *StructuredExtraction
	state fallbackState

	section   Section
	table     Table
	remaining []string

	lines []string
	pos   int
}

// parseFallback runs the heuristic line scan over the whole text. It always
// succeeds; text that matches nothing ends up joined into RawText.
func parseFallback(text string) *StructuredExtraction {
	p := &fallbackParser{
		doc: &StructuredExtraction{
			KeyValuePairs: []KeyValuePair{},
			Sections:      []Section{},
			Tables:        []Table{},
		},
		state: stateScan,
		lines: strings.Split(text, "\n"),
	}
	for p.pos = 0; p.pos < len(p.lines); p.pos++ {
		line := strings.TrimSpace(p.lines[p.pos])
		switch p.state {
		case stateTable:
			p.classifyInTable(line)
		case stateSection:
			p.classifyInSection(line)
		default:
			p.classifyScan(line)
		}
	}
	p.flushSection()
	p.flushTable()
	if len(p.remaining) > 0 {
		p.doc.RawText = strings.Join(p.remaining, "\n")
	}
	return p.doc
}

// classifyInTable consumes table rows until the first non-pipe line, which
// flushes the table and re-enters the normal flow.
func (p *fallbackParser) classifyInTable(line string) {
	if strings.HasPrefix(line, "|") {
		p.table.Rows = append(p.table.Rows, tableCells(line))
		return
	}
	p.flushTable()
	if p.sectionOpen() {
		p.state = stateSection
		p.classifyInSection(line)
	} else {
		p.state = stateScan
		p.classifyScan(line)
	}
}

func (p *fallbackParser) sectionOpen() bool {
	return p.section.Heading != "" || p.section.Content != ""
}

// classifyInSection handles lines while a section is open: a new header
// closes the current section, unmatched lines become section content.
func (p *fallbackParser) classifyInSection(line string) {
	if line == "" {
		return
	}
	if p.tryTableStart(line) {
		return
	}
	if heading, ok := matchSectionHeader(line); ok {
		p.flushSection()
		p.section = Section{Heading: heading}
		return
	}
	if kv, ok := matchKeyValue(line); ok {
		p.doc.KeyValuePairs = append(p.doc.KeyValuePairs, kv)
		return
	}
	content := cleanLine(line)
	if p.section.Content == "" {
		p.section.Content = content
	} else {
		p.section.Content += "\n" + content
	}
}

// classifyScan handles lines before any section has opened.
func (p *fallbackParser) classifyScan(line string) {
	if line == "" {
		return
	}
	if p.tryTableStart(line) {
		return
	}
	if heading, ok := matchSectionHeader(line); ok {
		p.section = Section{Heading: heading}
		p.state = stateSection
		return
	}
	if kv, ok := matchKeyValue(line); ok {
		p.doc.KeyValuePairs = append(p.doc.KeyValuePairs, kv)
		return
	}
	if reFiller.MatchString(line) {
		return
	}
	p.remaining = append(p.remaining, cleanLine(line))
}

// tryTableStart opens a table when the current line is pipe-prefixed and the
// next line is a separator row. The separator line is skipped.
func (p *fallbackParser) tryTableStart(line string) bool {
	if !strings.HasPrefix(line, "|") {
		return false
	}
	if p.pos+1 >= len(p.lines) {
		return false
	}
	next := strings.TrimSpace(p.lines[p.pos+1])
	if !reTableSeparator.MatchString(next) || !strings.Contains(next, "-") {
		return false
	}
	p.table = Table{Headers: tableCells(line), Rows: [][]string{}}
	p.pos++ // skip the separator row
	p.state = stateTable
	return true
}

// flushSection pushes the open section, if any. State transitions are the
// caller's responsibility.
func (p *fallbackParser) flushSection() {
	if !p.sectionOpen() {
		return
	}
	p.doc.Sections = append(p.doc.Sections, p.section)
	p.section = Section{}
}

// flushTable pushes the in-progress table, if any.
func (p *fallbackParser) flushTable() {
	if len(p.table.Headers) == 0 {
		return
	}
	p.doc.Tables = append(p.doc.Tables, p.table)
	p.table = Table{}
}

// matchSectionHeader recognizes numbered-bold, hash-heading, and standalone
// bold header lines, in that order.
func matchSectionHeader(line string) (string, bool) {
	if m := reNumberedBoldHeading.FindStringSubmatch(line); m != nil {
		return cleanLine(m[1]), true
	}
	if m := reHashHeading.FindStringSubmatch(line); m != nil {
		return cleanLine(m[1]), true
	}
	if m := reStandaloneBold.FindStringSubmatch(line); m != nil {
		return cleanLine(strings.TrimSuffix(m[1], ":")), true
	}
	return "", false
}

// matchKeyValue recognizes the three key-value line forms. Lines containing
// a pipe are never key-value: table logic owns them.
func matchKeyValue(line string) (KeyValuePair, bool) {
	if strings.Contains(line, "|") {
		return KeyValuePair{}, false
	}
	for _, re := range []*regexp.Regexp{reBulletBoldKV, reBoldKV, rePlainKV} {
		if m := re.FindStringSubmatch(line); m != nil {
			key := cleanLine(strings.TrimSuffix(m[1], ":"))
			value := cleanLine(m[2])
			if value == "" {
				continue
			}
			return KeyValuePair{Key: key, Value: value}, true
		}
	}
	return KeyValuePair{}, false
}

// tableCells splits a markdown table line into trimmed, non-empty cells.
func tableCells(line string) []string {
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		c := strings.TrimSpace(p)
		if c == "" {
			continue
		}
		cells = append(cells, c)
	}
	return cells
}

// cleanLine strips bold markers and a leading bullet marker.
func cleanLine(s string) string {
	s = reLeadingBullet.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}
