/*
 * Copyright 2022 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package xlsdebug

import (
	"fmt"
	"io"
	"sort"

	"github.com/ajstarks/svgo"
)

// DrawLiveRanges renders one vertical track per interval, with a line for
// each of its live ranges, adapted from the teacher's draw_liverange (which
// drew one unsplit _LiveRange per physical register); an interval with
// lifetime holes gets several lines on its track. Uses are not marked, and
// split children are not walked: only the ranges each Interval reports for
// itself are drawn.
func DrawLiveRanges(w io.Writer, intervals []Interval, maxPos int) {
	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv != nil {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DebugVreg() < sorted[j].DebugVreg() })

	const trackWidth = 60
	const rowHeight = 6
	const top = 40

	width := len(sorted)*trackWidth + 100
	height := maxPos*rowHeight + top + 40

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:white")

	for i, iv := range sorted {
		x := 80 + i*trackWidth
		canvas.Text(x, 20, fmt.Sprintf("v%d", iv.DebugVreg()), "fill:black;font-size:12px;font-family:monospace;text-anchor:middle")

		for _, r := range iv.DebugRanges() {
			y1 := top + r[0]*rowHeight
			y2 := top + r[1]*rowHeight
			canvas.Line(x, y1, x, y2, "stroke:black;stroke-width:3")
		}
	}

	canvas.End()
}
