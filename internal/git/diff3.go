package git

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// hunk replaces base lines [start, end) with lines.
type hunk struct {
	start int
	end   int
	lines []string
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// lineHunks lists the edits turning base into other, ordered by position in
// base. Hunks of one side are always separated by at least one unchanged line.
func lineHunks(base, other string) []hunk {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, _ := dmp.DiffLinesToRunes(base, other)
	diffs := dmp.DiffMainRunes(a, b, false)
	otherLines := splitLines(other)

	var (
		hunks    []hunk
		current  *hunk
		baseIdx  int
		otherIdx int
	)
	flush := func() {
		if current != nil {
			hunks = append(hunks, *current)
			current = nil
		}
	}
	for _, d := range diffs {
		// every rune stands for one line
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			baseIdx += n
			otherIdx += n
		case diffmatchpatch.DiffDelete:
			if current == nil {
				current = &hunk{start: baseIdx, end: baseIdx}
			}
			baseIdx += n
			current.end = baseIdx
		case diffmatchpatch.DiffInsert:
			if current == nil {
				current = &hunk{start: baseIdx, end: baseIdx}
			}
			current.lines = append(current.lines, otherLines[otherIdx:otherIdx+n]...)
			otherIdx += n
		}
	}
	flush()
	return hunks
}

// mergeLines is a line based three-way merge of ours and theirs against base.
// Edits of both sides that overlap or touch are written between conflict
// markers unless they produce the same lines.
func mergeLines(base, ours, theirs []byte, label string) ([]byte, bool) {
	baseLines := splitLines(string(base))
	ourHunks := lineHunks(string(base), string(ours))
	theirHunks := lineHunks(string(base), string(theirs))

	var b bytes.Buffer
	conflicted := false
	pos, i, j := 0, 0, 0
	for i < len(ourHunks) || j < len(theirHunks) {
		var regionOurs, regionTheirs []hunk
		var start, end int
		if j >= len(theirHunks) || (i < len(ourHunks) && ourHunks[i].start <= theirHunks[j].start) {
			start, end = ourHunks[i].start, ourHunks[i].end
			regionOurs = append(regionOurs, ourHunks[i])
			i++
		} else {
			start, end = theirHunks[j].start, theirHunks[j].end
			regionTheirs = append(regionTheirs, theirHunks[j])
			j++
		}

		for {
			if i < len(ourHunks) && ourHunks[i].start <= end {
				end = max(end, ourHunks[i].end)
				regionOurs = append(regionOurs, ourHunks[i])
				i++
				continue
			}
			if j < len(theirHunks) && theirHunks[j].start <= end {
				end = max(end, theirHunks[j].end)
				regionTheirs = append(regionTheirs, theirHunks[j])
				j++
				continue
			}
			break
		}

		writeLines(&b, baseLines[pos:start])
		ourText := applyHunks(baseLines, start, end, regionOurs)
		theirText := applyHunks(baseLines, start, end, regionTheirs)
		switch {
		case len(regionTheirs) == 0, ourText == theirText:
			b.WriteString(ourText)
		case len(regionOurs) == 0:
			b.WriteString(theirText)
		default:
			conflicted = true
			b.WriteString("<<<<<<< HEAD\n")
			writeSection(&b, []byte(ourText))
			b.WriteString("=======\n")
			writeSection(&b, []byte(theirText))
			b.WriteString(">>>>>>> " + label + "\n")
		}
		pos = end
	}
	writeLines(&b, baseLines[pos:])
	return b.Bytes(), conflicted
}

// applyHunks renders base lines [start, end) with hunks applied.
func applyHunks(baseLines []string, start, end int, hunks []hunk) string {
	var b bytes.Buffer
	pos := start
	for _, h := range hunks {
		writeLines(&b, baseLines[pos:h.start])
		writeLines(&b, h.lines)
		pos = h.end
	}
	writeLines(&b, baseLines[pos:end])
	return b.String()
}

func writeLines(b *bytes.Buffer, lines []string) {
	for _, line := range lines {
		b.WriteString(line)
	}
}

// isBinary uses the same heuristic as git: a NUL byte in the first 8000 bytes.
func isBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), 8000)], 0) >= 0
}
