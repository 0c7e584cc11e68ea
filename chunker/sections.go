// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package chunker

import (
	"strings"
)

// Block type tags reported for sections.
const (
	BlockHeading   = "heading"
	BlockParagraph = "paragraph"
	BlockList      = "list"
	BlockQuote     = "quote"
	BlockCode      = "code"
)

// Section is a chunk of editor text with its structural context.
type Section struct {
	// Heading is the nearest Markdown heading above the chunk.
	Heading string

	// BlockType classifies the block the chunk starts in.
	BlockType string

	Text string
}

// SplitSections chunks Markdown-like editor text, tagging every window with
// the nearest heading that precedes it and the type of block it starts in.
// Windows are the same as those returned by Windows.
func SplitSections(text string, maxSize, overlap int) ([]Section, error) {
	windows, err := Windows(text, maxSize, overlap)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	runes := []rune(text)
	lines := scanLines(text)
	sections := make([]Section, 0, len(windows))
	li := 0
	for _, w := range windows {
		// Advance to the line containing the window start.
		for li+1 < len(lines) && lines[li+1].start <= w.Start {
			li++
		}
		line := lines[li]
		// A window starting in the trailing whitespace of a line belongs to the next one.
		if li+1 < len(lines) && strings.TrimSpace(string(runes[w.Start:line.end])) == "" {
			line = lines[li+1]
		}
		sections = append(sections, Section{
			Heading:   line.heading,
			BlockType: line.blockType,
			Text:      w.Text,
		})
	}
	return sections, nil
}

type lineInfo struct {
	start     int // rune offsets
	end       int
	heading   string
	blockType string
}

// scanLines records, for every line, the heading in force and the block type.
func scanLines(text string) []lineInfo {
	var lines []lineInfo
	heading := ""
	inFence := false
	offset := 0
	for _, raw := range strings.SplitAfter(text, "\n") {
		length := len([]rune(raw))
		trimmed := strings.TrimSpace(raw)
		blockType := BlockParagraph

		switch {
		case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
			inFence = !inFence
			blockType = BlockCode
		case inFence:
			blockType = BlockCode
		case isHeading(trimmed):
			heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			blockType = BlockHeading
		case isListItem(trimmed):
			blockType = BlockList
		case strings.HasPrefix(trimmed, ">"):
			blockType = BlockQuote
		}

		lines = append(lines, lineInfo{
			start:     offset,
			end:       offset + length,
			heading:   heading,
			blockType: blockType,
		})
		offset += length
	}
	return lines
}

func isHeading(line string) bool {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	return level >= 1 && level <= 6 && (len(line) == level || line[level] == ' ')
}

func isListItem(line string) bool {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ") {
		return true
	}
	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	return digits > 0 && digits+1 < len(line) && (line[digits] == '.' || line[digits] == ')') && line[digits+1] == ' '
}
