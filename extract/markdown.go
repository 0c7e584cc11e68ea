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


package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New().Parser()

// extractMarkdown renders Markdown to plain text. Block elements end with a
// paragraph break. The first heading becomes the title.
func extractMarkdown(src []byte) (content, title string) {
	doc := markdownParser.Parse(text.NewReader(src))

	var b, heading strings.Builder
	inTitle := false
	titleDone := false

	write := func(p []byte) {
		b.Write(p)
		if inTitle {
			heading.Write(p)
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Heading:
			if !titleDone {
				inTitle = entering
				titleDone = !entering
			}
		case *ast.Text:
			if entering {
				write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					write([]byte{'\n'})
				}
			}
		case *ast.String:
			if entering {
				write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				write(node.Label(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					write(seg.Value(src))
				}
				b.WriteString("\n\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		if !entering && n.Type() == ast.TypeBlock {
			b.WriteString("\n\n")
		}
		return ast.WalkContinue, nil
	})

	return cleanText(b.String()), strings.TrimSpace(heading.String())
}
