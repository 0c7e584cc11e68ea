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
	"fmt"
	"strings"

	"github.com/poiesic/notevec/core"
	"github.com/xuri/excelize/v2"
)

// extractSpreadsheet renders every sheet as a "## Sheet: name" section with
// one tab-separated line per non-empty row. Unreadable sheets are recorded
// in items.
func extractSpreadsheet(data []byte) (content string, items []core.ItemResult, err error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("%w: xlsx: %w", ErrUnsupported, err)
	}
	defer f.Close()

	var sections []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			items = append(items, core.ItemResult{Path: sheet, Error: err.Error()})
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "## Sheet: %s\n", sheet)
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		sections = append(sections, strings.TrimSpace(b.String()))
	}
	return strings.Join(sections, "\n\n"), items, nil
}
