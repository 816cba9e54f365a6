/*
 * Copyright 2025 Carver Automation Corporation.
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

package metrics

import "github.com/ehudso7/vrux-observe/pkg/models"

// ringBuffer keeps the most recent points of one series in a fixed-size
// circular buffer. Not safe for concurrent use; the Aggregator holds the
// lock.
type ringBuffer struct {
	points []models.MetricData
	pos    int
	full   bool
}

func newRingBuffer(size int) *ringBuffer {
	if size <= 0 {
		size = 1
	}

	return &ringBuffer{
		points: make([]models.MetricData, size),
	}
}

func (b *ringBuffer) add(point models.MetricData) {
	b.points[b.pos] = point
	b.pos = (b.pos + 1) % len(b.points)

	if b.pos == 0 {
		b.full = true
	}
}

// snapshot returns the buffered points oldest-first.
func (b *ringBuffer) snapshot() []models.MetricData {
	if !b.full {
		out := make([]models.MetricData, b.pos)
		copy(out, b.points[:b.pos])

		return out
	}

	out := make([]models.MetricData, 0, len(b.points))
	out = append(out, b.points[b.pos:]...)
	out = append(out, b.points[:b.pos]...)

	return out
}

func (b *ringBuffer) len() int {
	if b.full {
		return len(b.points)
	}

	return b.pos
}
