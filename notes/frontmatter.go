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


package notes

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

var fence = []byte("---")

type frontMatter struct {
	Title       string       `yaml:"title,omitempty"`
	Tags        []string     `yaml:"tags,omitempty"`
	Attachments []Attachment `yaml:"attachments,omitempty"`
}

// splitFrontMatter separates a leading YAML block delimited by "---" lines
// from the body. Content without front matter is returned whole as the body.
func splitFrontMatter(data []byte) (frontMatter, []byte, error) {
	var fm frontMatter
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	first, rest, ok := cutLine(data)
	if !ok || !bytes.Equal(bytes.TrimSpace(first), fence) {
		return fm, data, nil
	}

	var header []byte
	for len(rest) > 0 {
		var line []byte
		line, rest, _ = cutLine(rest)
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), fence) {
			if err := yaml.Unmarshal(header, &fm); err != nil {
				return fm, nil, fmt.Errorf("%w: %w", ErrFrontMatter, err)
			}
			return fm, bytes.TrimLeft(rest, "\r\n"), nil
		}
		header = append(header, line...)
		header = append(header, '\n')
	}
	return fm, nil, fmt.Errorf("%w: missing closing ---", ErrFrontMatter)
}

// cutLine splits data after the first newline. ok is false for data
// without any newline.
func cutLine(data []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return data, nil, false
	}
	return bytes.TrimSuffix(data[:i], []byte("\r")), data[i+1:], true
}

// renderNote writes front matter, when there is any, followed by body.
func renderNote(fm frontMatter, body string) ([]byte, error) {
	var buf bytes.Buffer
	if fm.Title != "" || len(fm.Tags) > 0 || len(fm.Attachments) > 0 {
		header, err := yaml.Marshal(fm)
		if err != nil {
			return nil, err
		}
		buf.Write(fence)
		buf.WriteByte('\n')
		buf.Write(header)
		buf.Write(fence)
		buf.WriteString("\n\n")
	}
	buf.WriteString(body)
	return buf.Bytes(), nil
}
