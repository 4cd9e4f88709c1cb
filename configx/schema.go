// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package configx

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/ory/jsonschema/v3"

	"github.com/clinia/emulator-console/otelx"
	"github.com/clinia/emulator-console/pubsubx"
)

const (
	maxSchemaDepth = 32
	anyKey         = "*"
)

func newCompiler(schema []byte) (string, *jsonschema.Compiler, error) {
	id := gjson.GetBytes(schema, "$id").String()
	if id == "" {
		id = fmt.Sprintf("%s.json", uuid.Must(uuid.NewRandom()).String())
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(id, bytes.NewBuffer(schema)); err != nil {
		return "", nil, errors.WithStack(err)
	}

	// DO NOT REMOVE THIS
	compiler.ExtractAnnotations = true

	if err := pubsubx.AddConfigSchema(compiler); err != nil {
		return "", nil, err
	}
	if err := otelx.AddConfigSchema(compiler); err != nil {
		return "", nil, err
	}

	return id, compiler, nil
}

func compileSchema(ctx context.Context, schema []byte) (*jsonschema.Schema, error) {
	id, compiler, err := newCompiler(schema)
	if err != nil {
		return nil, err
	}

	s, err := compiler.Compile(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return s, nil
}

// schemaPaths walks the schema and returns, per dotted key, the declared
// default and type. Map values declared with additionalProperties are keyed
// with a `*` segment.
type schemaPaths struct {
	defaults map[string]interface{}
	types    map[string]string
}

func newSchemaPaths(s *jsonschema.Schema) *schemaPaths {
	p := &schemaPaths{
		defaults: map[string]interface{}{},
		types:    map[string]string{},
	}
	p.walk(s, "", 0)
	return p
}

func (p *schemaPaths) walk(s *jsonschema.Schema, prefix string, depth int) {
	if s == nil || depth > maxSchemaDepth {
		return
	}
	if s.Ref != nil {
		p.walk(s.Ref, prefix, depth+1)
	}

	if prefix != "" {
		if s.Default != nil {
			p.defaults[prefix] = s.Default
		}
		if len(s.Types) == 1 {
			p.types[prefix] = s.Types[0]
		}
	}

	for name, child := range s.Properties {
		p.walk(child, joinKey(prefix, name), depth+1)
	}
	if ap, ok := s.AdditionalProperties.(*jsonschema.Schema); ok {
		p.walk(ap, joinKey(prefix, anyKey), depth+1)
	}
}

// typeOf returns the schema type declared for a dotted key, if any.
func (p *schemaPaths) typeOf(key string) (string, bool) {
	if t, ok := p.types[key]; ok {
		return t, true
	}

	parts := strings.Split(key, ".")
	for pattern, t := range p.types {
		if matchKey(strings.Split(pattern, "."), parts) {
			return t, true
		}
	}
	return "", false
}

func matchKey(pattern, key []string) bool {
	if len(pattern) != len(key) {
		return false
	}
	for i := range pattern {
		if pattern[i] != anyKey && pattern[i] != key[i] {
			return false
		}
	}
	return true
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
