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
	"unicode"
)

// Window is a chunk of text with its rune offsets in the source.
type Window struct {
	Start int
	End   int
	Text  string
}

// Validate checks a size and overlap pair.
func Validate(maxSize, overlap int) error {
	if maxSize <= 0 {
		return ErrInvalidSize
	}
	if overlap < 0 || overlap >= maxSize {
		return ErrInvalidOverlap
	}
	return nil
}

// Split returns the text of each window of text.
func Split(text string, maxSize, overlap int) ([]string, error) {
	windows, err := Windows(text, maxSize, overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]string, len(windows))
	for i, w := range windows {
		chunks[i] = w.Text
	}
	return chunks, nil
}

// Windows splits text into windows of at most maxSize runes, consecutive
// windows sharing up to overlap runes. Whitespace-only text yields no windows.
func Windows(text string, maxSize, overlap int) ([]Window, error) {
	if err := Validate(maxSize, overlap); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)
	var windows []Window
	start := 0
	for {
		end := start + maxSize
		if end >= n {
			windows = append(windows, Window{Start: start, End: n, Text: string(runes[start:n])})
			return windows, nil
		}
		end = breakPoint(runes, start, end)
		windows = append(windows, Window{Start: start, End: end, Text: string(runes[start:end])})

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
}

// breakPoint picks the end of the window [start, limit). It searches the
// second half of the window for a paragraph break, then a sentence end, then
// whitespace, and returns limit when none is found.
func breakPoint(runes []rune, start, limit int) int {
	floor := start + (limit-start)/2
	if floor <= start {
		floor = start + 1
	}

	for i := limit; i > floor; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if isSentenceEnd(runes, i) {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return limit
}

// isSentenceEnd reports whether a sentence ends just before offset i:
// terminal punctuation followed by whitespace.
func isSentenceEnd(runes []rune, i int) bool {
	if i < 2 || i > len(runes) {
		return false
	}
	switch runes[i-2] {
	case '.', '!', '?', '。':
		return unicode.IsSpace(runes[i-1])
	}
	return false
}
