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

import "context"

// Wrap returns fn instrumented with a span named name. The span's status
// follows fn's outcome and the original error is returned unchanged.
func (t *Tracer) Wrap(name string, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx, span := t.StartSpan(ctx, name)

		err := fn(ctx)
		if err != nil {
			t.RecordError(span, err)
		}

		t.EndSpan(span)

		return err
	}
}

// WrapResult is Wrap for operations that return a value alongside the
// error. The value passes through untouched.
func WrapResult[T any](t *Tracer, name string, fn func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		ctx, span := t.StartSpan(ctx, name)

		out, err := fn(ctx)
		if err != nil {
			t.RecordError(span, err)
		}

		t.EndSpan(span)

		return out, err
	}
}
