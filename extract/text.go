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
)

// cleanText collapses whitespace runs inside lines and keeps at most one
// blank line between paragraphs.
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\x00", "")

	var b strings.Builder
	pendingBreak := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			pendingBreak = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			if pendingBreak {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		pendingBreak = false
		b.WriteString(line)
	}
	return b.String()
}
