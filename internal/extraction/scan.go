package extraction

import "strings"

// Origin tags where in the raw response a candidate was found
type Origin string

const (
	OriginFencedBlock Origin = "fenced-block"
	OriginBareArray   Origin = "bare-array"
	OriginBareObject  Origin = "bare-object"
)

const fence = "```"

// Candidate is a span of the raw response suspected to hold structured data.
// Start and End are byte offsets into the raw response, End exclusive.
type Candidate struct {
	Text   string `json:"-"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Origin Origin `json:"origin"`
}

// Scan locates candidate spans in text, ordered by descending confidence:
// fenced blocks first, then the first top-level array, or failing that the
// first top-level object. Duplicate spans are dropped.
func Scan(text string) []Candidate {
	var candidates []Candidate
	seen := make(map[[2]int]bool)
	add := func(c Candidate) {
		key := [2]int{c.Start, c.End}
		if seen[key] {
			return
		}
		seen[key] = true
		candidates = append(candidates, c)
	}

	for _, c := range fencedBlocks(text) {
		add(c)
	}

	arr, obj := topLevelSpans(text)
	switch {
	case arr != nil:
		add(*arr)
	case obj != nil:
		add(*obj)
	}

	return candidates
}

// fencedBlocks returns the trimmed body of every paired ``` fence
func fencedBlocks(text string) []Candidate {
	var blocks []Candidate
	pos := 0
	for {
		open := strings.Index(text[pos:], fence)
		if open == -1 {
			return blocks
		}
		bodyStart := skipInfoString(text, pos+open+len(fence))

		closeIdx := strings.Index(text[bodyStart:], fence)
		if closeIdx == -1 {
			return blocks
		}
		bodyEnd := bodyStart + closeIdx

		start, end := trimSpan(text, bodyStart, bodyEnd)
		if start < end {
			blocks = append(blocks, Candidate{
				Text:   text[start:end],
				Start:  start,
				End:    end,
				Origin: OriginFencedBlock,
			})
		}
		pos = bodyEnd + len(fence)
	}
}

// skipInfoString skips a language tag like "json" and the rest of the fence line
func skipInfoString(text string, i int) int {
	for i < len(text) && isInfoChar(text[i]) {
		i++
	}
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\r') {
		i++
	}
	if i < len(text) && text[i] == '\n' {
		i++
	}
	return i
}

func isInfoChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '-' || c == '_' || c == '+'
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// span is a balanced bracket pair, end exclusive
type span struct {
	start, end int
}

// topLevelSpans finds the first balanced array and the first balanced object
// that are not nested inside another balanced span. The text is walked once.
// A mismatched closer discards every pending opener.
func topLevelSpans(text string) (arr, obj *Candidate) {
	var open []int
	// outermost balanced spans so far, ordered by start
	var closed []span
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			// quotes in prose outside any opener are not string literals
			if len(open) > 0 {
				inString = true
			}
		case '{', '[':
			open = append(open, i)
		case '}', ']':
			if len(open) == 0 {
				continue
			}
			start := open[len(open)-1]
			if !closes(text[start], c) {
				open = open[:0]
				continue
			}
			open = open[:len(open)-1]
			for len(closed) > 0 && closed[len(closed)-1].start > start {
				closed = closed[:len(closed)-1]
			}
			closed = append(closed, span{start: start, end: i + 1})
		}
	}

	for _, sp := range closed {
		c := &Candidate{Text: text[sp.start:sp.end], Start: sp.start, End: sp.end}
		switch {
		case text[sp.start] == '[' && arr == nil:
			c.Origin = OriginBareArray
			arr = c
		case text[sp.start] == '{' && obj == nil:
			c.Origin = OriginBareObject
			obj = c
		}
		if arr != nil && obj != nil {
			break
		}
	}
	return arr, obj
}

func closes(opener, closer byte) bool {
	return opener == '[' && closer == ']' || opener == '{' && closer == '}'
}
