// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package configx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/ory/jsonschema/v3"

	kjson "github.com/knadh/koanf/parsers/json"

	"github.com/clinia/emulator-console/logrusx"
)

const (
	Delimiter        = "."
	DefaultEnvPrefix = "EMULATOR_CONSOLE_"
)

type tuple struct {
	Key   string
	Value interface{}
}

// ChangeEvent describes a change of a watched configuration file.
type ChangeEvent struct {
	File string
	Op   string
}

func (e ChangeEvent) Source() string {
	return e.File
}

// Provider layers, from lowest to highest precedence: schema defaults, base
// values, config files, environment and forced values.
type Provider struct {
	schema *jsonschema.Schema
	paths  *schemaPaths

	files                    []string
	immutables               []string
	forcedValues             []tuple
	baseValues               []tuple
	envPrefix                string
	skipValidation           bool
	disableEnvLoading        bool
	disableFileWatching      bool
	logger                   *logrusx.Logger
	onChanges                []func(e ChangeEvent, err error)
	onValidationError        func(k *koanf.Koanf, err error)
	excludeFieldsFromTracing []string

	mu sync.RWMutex
	k  *koanf.Koanf
}

// New compiles schema and loads every configuration source once.
func New(ctx context.Context, schema []byte, modifiers ...OptionModifier) (*Provider, error) {
	s, err := compileSchema(ctx, schema)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		schema:            s,
		paths:             newSchemaPaths(s),
		envPrefix:         DefaultEnvPrefix,
		onValidationError: func(k *koanf.Koanf, err error) {},
	}
	for _, m := range modifiers {
		m(p)
	}
	if p.logger == nil {
		p.logger = logrusx.New("emulator-console", "")
	}

	k, err := p.newKoanf()
	if err != nil {
		return nil, err
	}
	p.k = k

	p.logger.WithField("files", p.files).Debugf("configuration loaded")
	return p, nil
}

func (p *Provider) newKoanf() (*koanf.Koanf, error) {
	k := koanf.New(Delimiter)

	if err := k.Load(confmap.Provider(p.paths.defaults, Delimiter), nil); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := k.Load(confmap.Provider(tuplesToMap(p.baseValues), Delimiter), nil); err != nil {
		return nil, errors.WithStack(err)
	}

	for _, f := range p.files {
		parser, err := parserFor(f)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(f), parser); err != nil {
			return nil, errors.Wrapf(err, "unable to load config file %s", f)
		}
	}

	if !p.disableEnvLoading {
		if err := k.Load(env.ProviderWithValue(p.envPrefix, Delimiter, p.envValue), nil); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err := k.Load(confmap.Provider(tuplesToMap(p.forcedValues), Delimiter), nil); err != nil {
		return nil, errors.WithStack(err)
	}

	if !p.skipValidation {
		if err := p.validate(k); err != nil {
			p.onValidationError(k, err)
			return nil, err
		}
	}

	return k, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return kjson.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, errors.Errorf("unknown config file extension %q of %s, expected one of .json, .yaml, .yml, .toml", filepath.Ext(path), path)
	}
}

// envValue maps EMULATOR_CONSOLE_LOG__LEVEL to log.level and coerces the
// value to the type the schema declares for that key.
func (p *Provider) envValue(key, value string) (string, interface{}) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, p.envPrefix)), "__", Delimiter)

	t, ok := p.paths.typeOf(key)
	if !ok {
		return key, value
	}

	switch t {
	case "integer":
		if v, err := cast.ToInt64E(value); err == nil {
			return key, v
		}
	case "number":
		if v, err := cast.ToFloat64E(value); err == nil {
			return key, v
		}
	case "boolean":
		if v, err := cast.ToBoolE(value); err == nil {
			return key, v
		}
	case "array":
		return key, strings.Split(value, ",")
	}
	return key, value
}

func (p *Provider) validate(k *koanf.Koanf) error {
	raw, err := json.Marshal(k.Raw())
	if err != nil {
		return errors.WithStack(err)
	}
	if err := p.schema.Validate(bytes.NewReader(raw)); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (p *Provider) checkImmutables(from, to *koanf.Koanf) error {
	for _, key := range p.immutables {
		if !reflect.DeepEqual(from.Get(key), to.Get(key)) {
			return NewImmutableError(key, from.Get(key), to.Get(key))
		}
	}
	return nil
}

// reload rebuilds the configuration. On any error the previous revision is kept.
func (p *Provider) reload(e ChangeEvent) {
	k, err := p.newKoanf()
	if err == nil {
		p.mu.RLock()
		err = p.checkImmutables(p.k, k)
		p.mu.RUnlock()
	}

	if err == nil {
		p.mu.Lock()
		p.k = k
		p.mu.Unlock()
	}

	for _, fn := range p.onChanges {
		fn(e, err)
	}
}

// Watch reloads the configuration whenever one of the config files changes,
// until ctx is done. It returns right away when there is nothing to watch.
func (p *Provider) Watch(ctx context.Context) error {
	if p.disableFileWatching || len(p.files) == 0 {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close()

	watched := map[string]bool{}
	for _, f := range p.files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return errors.WithStack(err)
		}
		watched[abs] = true
	}

	// Editors often replace files instead of writing them, so the directories are watched.
	for _, dir := range lo.Uniq(lo.Map(lo.Keys(watched), func(f string, _ int) string { return filepath.Dir(f) })) {
		if err := w.Add(dir); err != nil {
			return errors.Wrapf(err, "unable to watch %s", dir)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(e.Name)] {
				continue
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			p.reload(ChangeEvent{File: e.Name, Op: e.Op.String()})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			for _, fn := range p.onChanges {
				fn(ChangeEvent{Op: "error"}, err)
			}
		}
	}
}

func (p *Provider) get(key string) interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.k.Get(key)
}

func (p *Provider) Get(key string) interface{} {
	return p.get(key)
}

func (p *Provider) Exists(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.k.Exists(key)
}

func (p *Provider) String(key string) string {
	return cast.ToString(p.get(key))
}

func (p *Provider) Int(key string) int {
	return cast.ToInt(p.get(key))
}

func (p *Provider) Bool(key string) bool {
	return cast.ToBool(p.get(key))
}

func (p *Provider) Duration(key string) time.Duration {
	return cast.ToDuration(p.get(key))
}

// All returns the flattened configuration, without the keys omitted from tracing.
func (p *Provider) All() map[string]interface{} {
	p.mu.RLock()
	all := p.k.All()
	p.mu.RUnlock()

	return lo.OmitByKeys(all, p.excludeFieldsFromTracing)
}

// Unmarshal decodes the value under key into out, honouring json tags.
func (p *Provider) Unmarshal(key string, out interface{}) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return errors.WithStack(p.k.UnmarshalWithConf(key, out, koanf.UnmarshalConf{Tag: "json"}))
}

func (p *Provider) printHumanReadableValidationErrors(k *koanf.Koanf, w io.Writer, err error) {
	if err == nil {
		return
	}

	_, _ = fmt.Fprintln(w, "")
	conf, innerErr := json.MarshalIndent(k.Raw(), "", "  ")
	_, _ = fmt.Fprintf(w, "Config:\n%s\n\n", conf)
	if innerErr != nil {
		_, _ = fmt.Fprintf(w, "Unable to render the config: %s\n", innerErr)
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		_, _ = fmt.Fprintf(w, "Configuration is invalid: %s\n", err)
		return
	}

	_, _ = fmt.Fprintln(w, "Configuration is invalid:")
	printValidationError(w, ve, 1)
}

func printValidationError(w io.Writer, ve *jsonschema.ValidationError, depth int) {
	if len(ve.Causes) == 0 {
		_, _ = fmt.Fprintf(w, "%s- %s: %s\n", strings.Repeat("  ", depth), pointerToKey(ve.InstancePtr), ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		printValidationError(w, cause, depth)
	}
}

func pointerToKey(ptr string) string {
	key := strings.ReplaceAll(strings.TrimPrefix(ptr, "#"), "/", Delimiter)
	key = strings.TrimPrefix(key, Delimiter)
	if key == "" {
		return "(root)"
	}
	return key
}

func tuplesToMap(tuples []tuple) map[string]interface{} {
	m := make(map[string]interface{}, len(tuples))
	for _, t := range tuples {
		m[t.Key] = t.Value
	}
	return m
}
