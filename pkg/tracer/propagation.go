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

package tracer

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ehudso7/vrux-observe/pkg/models"
)

// Format selects the wire encoding for trace context propagation.
type Format string

const (
	// FormatTraceParent encodes the context in a single W3C-style
	// "traceparent" header, with vendor state in "tracestate".
	FormatTraceParent Format = "traceparent"

	// FormatMultiHeader spreads the context across X-Trace-Id, X-Span-Id,
	// X-Parent-Span-Id and X-Sampled headers.
	FormatMultiHeader Format = "multiheader"
)

const (
	traceParentHeader = "traceparent"
	traceStateHeader  = "tracestate"

	headerTraceID      = "X-Trace-Id"
	headerSpanID       = "X-Span-Id"
	headerParentSpanID = "X-Parent-Span-Id"
	headerSampled      = "X-Sampled"

	traceParentVersion = "00"
	invalidVersion     = "ff"

	traceIDLength = 32
	spanIDLength  = 16
)

// Carrier abstracts the header map trace context is written to and read
// from.
type Carrier interface {
	Get(key string) string
	Set(key, value string)
}

// MapCarrier is a plain string map carrier. Reads fall back to a
// case-insensitive scan so header casing from foreign clients is
// tolerated.
type MapCarrier map[string]string

// Get returns the value for key, matching case-insensitively.
func (c MapCarrier) Get(key string) string {
	if v, ok := c[key]; ok {
		return v
	}

	for k, v := range c {
		if strings.EqualFold(k, key) {
			return v
		}
	}

	return ""
}

// Set stores the value under key.
func (c MapCarrier) Set(key, value string) {
	c[key] = value
}

// HeaderCarrier adapts an http.Header. Header lookup is already
// case-insensitive through canonicalization.
type HeaderCarrier http.Header

// Get returns the first value for key.
func (c HeaderCarrier) Get(key string) string {
	return http.Header(c).Get(key)
}

// Set replaces the value for key.
func (c HeaderCarrier) Set(key, value string) {
	http.Header(c).Set(key, value)
}

// Inject writes the trace context active in ctx to the carrier. With no
// active context this is a no-op.
func Inject(ctx context.Context, carrier Carrier, format Format) {
	tc, ok := TraceContextFromContext(ctx)
	if !ok {
		return
	}

	InjectTraceContext(tc, carrier, format)
}

// InjectTraceContext writes tc to the carrier in the given format.
// Invalid contexts are not written.
func InjectTraceContext(tc models.TraceContext, carrier Carrier, format Format) {
	if carrier == nil || !validTraceID(tc.TraceID) || !validSpanID(tc.SpanID) {
		return
	}

	switch format {
	case FormatTraceParent:
		flags := "00"
		if tc.Sampled {
			flags = "01"
		}

		carrier.Set(traceParentHeader, traceParentVersion+"-"+tc.TraceID+"-"+tc.SpanID+"-"+flags)

		if tc.Vendor != "" {
			carrier.Set(traceStateHeader, tc.Vendor)
		}
	case FormatMultiHeader:
		carrier.Set(headerTraceID, tc.TraceID)
		carrier.Set(headerSpanID, tc.SpanID)

		if tc.ParentSpanID != "" {
			carrier.Set(headerParentSpanID, tc.ParentSpanID)
		}

		sampled := "0"
		if tc.Sampled {
			sampled = "1"
		}

		carrier.Set(headerSampled, sampled)
	}
}

// Extract reads a trace context from the carrier. Missing or malformed
// input yields (zero, false); extraction never fails with an error.
func Extract(carrier Carrier, format Format) (models.TraceContext, bool) {
	if carrier == nil {
		return models.TraceContext{}, false
	}

	switch format {
	case FormatTraceParent:
		return extractTraceParent(carrier)
	case FormatMultiHeader:
		return extractMultiHeader(carrier)
	default:
		return models.TraceContext{}, false
	}
}

// extractTraceParent parses "version-traceid-spanid-flags". Unknown
// future versions are tolerated; version ff is invalid per W3C.
func extractTraceParent(carrier Carrier) (models.TraceContext, bool) {
	value := strings.TrimSpace(carrier.Get(traceParentHeader))
	if value == "" {
		return models.TraceContext{}, false
	}

	parts := strings.Split(strings.ToLower(value), "-")
	if len(parts) < 4 {
		return models.TraceContext{}, false
	}

	version, traceID, spanID, flags := parts[0], parts[1], parts[2], parts[3]

	if len(version) != 2 || !isHex(version) || version == invalidVersion {
		return models.TraceContext{}, false
	}

	if !validTraceID(traceID) || !validSpanID(spanID) {
		return models.TraceContext{}, false
	}

	if len(flags) != 2 || !isHex(flags) {
		return models.TraceContext{}, false
	}

	flagBits, err := strconv.ParseUint(flags, 16, 8)
	if err != nil {
		return models.TraceContext{}, false
	}

	return models.TraceContext{
		TraceID: traceID,
		SpanID:  spanID,
		Sampled: flagBits&0x01 != 0,
		Vendor:  carrier.Get(traceStateHeader),
	}, true
}

func extractMultiHeader(carrier Carrier) (models.TraceContext, bool) {
	traceID := strings.ToLower(strings.TrimSpace(carrier.Get(headerTraceID)))
	spanID := strings.ToLower(strings.TrimSpace(carrier.Get(headerSpanID)))

	if !validTraceID(traceID) || !validSpanID(spanID) {
		return models.TraceContext{}, false
	}

	parentSpanID := strings.ToLower(strings.TrimSpace(carrier.Get(headerParentSpanID)))
	if parentSpanID != "" && !validSpanID(parentSpanID) {
		return models.TraceContext{}, false
	}

	return models.TraceContext{
		TraceID:      traceID,
		SpanID:       spanID,
		ParentSpanID: parentSpanID,
		Sampled:      strings.TrimSpace(carrier.Get(headerSampled)) == "1",
	}, true
}

func validTraceID(id string) bool {
	return len(id) == traceIDLength && isHex(id) && !isAllZero(id)
}

func validSpanID(id string) bool {
	return len(id) == spanIDLength && isHex(id) && !isAllZero(id)
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return len(s) > 0
}

func isAllZero(s string) bool {
	for _, c := range s {
		if c != '0' {
			return false
		}
	}

	return true
}
