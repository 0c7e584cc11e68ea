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
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Elements whose text is never content.
const noiseSelector = "script, style, noscript, template, nav, header, footer, aside, form, iframe, svg"

// Elements rendered on their own lines.
const blockSelector = "p, div, section, article, main, li, dt, dd, tr, pre, blockquote, " +
	"h1, h2, h3, h4, h5, h6, table, ul, ol, dl, figure, figcaption"

// Candidate main content containers, most specific first.
var mainSelectors = []string{"main", "article", "[role=main]", ".content", "#content"}

// htmlPage is the readable content of an HTML document.
type htmlPage struct {
	Text        string
	Title       string
	Description string
}

func parseHTML(data []byte) (*htmlPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	page := &htmlPage{
		Title:       strings.TrimSpace(doc.Find("head title").First().Text()),
		Description: metaContent(doc, "og:description"),
	}
	if page.Title == "" {
		page.Title = metaContent(doc, "og:title")
	}
	if page.Description == "" {
		page.Description = metaContent(doc, "description")
	}

	doc.Find(noiseSelector).Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
		s.AppendHtml("\n")
	})

	body := doc.Find("body")
	for _, selector := range mainSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			body = selected.First()
			break
		}
	}
	page.Text = cleanText(body.Text())
	return page, nil
}

// metaContent returns the content of a <meta> tag matched by property or name.
func metaContent(doc *goquery.Document, key string) string {
	sel := doc.Find(`meta[property="` + key + `"], meta[name="` + key + `"]`).First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}
