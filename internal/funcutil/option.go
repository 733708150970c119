// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package funcutil

import (
	"fmt"
)

// An Optional holds a value or none. The zero Optional is none.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some creates an optional value with some value in it.
func Some[T any](x T) Optional[T] {
	return Optional[T]{value: x, ok: true}
}

// None creates an optional value with no value in it
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// ValueOr returns the value of the optional if it is some value, otherwise the default value if it is none
func (o Optional[T]) ValueOr(defaultVal T) T {
	if o.ok {
		return o.value
	}
	return defaultVal
}

// Value returns the value or panics if it is none
func (o Optional[T]) Value() T {
	if !o.ok {
		panic("funcutil: Value called on none")
	}
	return o.value
}

// Get returns the value and whether there is one, in the style of a map lookup.
func (o Optional[T]) Get() (T, bool) { return o.value, o.ok }

// IsSome returns true if the optional represents some value
func (o Optional[T]) IsSome() bool { return o.ok }

// IsNone returns true is the optional is none
func (o Optional[T]) IsNone() bool { return !o.ok }

func (o Optional[T]) String() string {
	if !o.ok {
		return "none"
	}
	return fmt.Sprintf("%v", o.value)
}

// MapOption is the map monadic operation on optional values
func MapOption[T any, S any](x Optional[T], f func(T) S) Optional[S] {
	if x.ok {
		return Some(f(x.value))
	}
	return None[S]()
}

// MaybeOr returns the first optional that is some. If both are none, then the returned value is none
func MaybeOr[T any](x Optional[T], s Optional[T]) Optional[T] {
	if x.ok {
		return x
	}
	return s
}
