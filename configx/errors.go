// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package configx

import "fmt"

type ImmutableError struct {
	Key  string
	From interface{}
	To   interface{}
}

func NewImmutableError(key string, from, to interface{}) error {
	return &ImmutableError{
		Key:  key,
		From: from,
		To:   to,
	}
}

func (e *ImmutableError) Error() string {
	return fmt.Sprintf("immutable configuration key %q was changed from %v to %v", e.Key, e.From, e.To)
}
