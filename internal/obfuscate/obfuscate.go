// Package obfuscate replaces sensitive field values of records before they
// are serialized.
//
// Rules are keyed by "table.field", which matches that table only, or by a
// bare "field", which matches any table carrying the field. A rule only fires
// when the record currently holds a non-empty value for the field. When both
// forms match, the bare rule runs first and the qualified rule sees its result.
package obfuscate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dbsmedya/goextract/internal/types"
)

// ValueFunc computes a replacement from the old value.
type ValueFunc func(old interface{}) (interface{}, error)

// RecordFunc computes a replacement from the old value and the whole record.
type RecordFunc func(old interface{}, rec *types.Record) (interface{}, error)

// Strategy is how one field is replaced. Record takes precedence over Value.
// The zero Strategy shuffles the characters of the old value.
type Strategy struct {
	Value  ValueFunc
	Record RecordFunc
}

// Rules maps "table.field" or "field" to a strategy.
type Rules map[string]Strategy

// Shuffler permutes n elements through swap. *rand.Rand implements it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// Obfuscator applies a fixed rule set.
type Obfuscator struct {
	rules    Rules
	shuffler Shuffler
}

// Option configures an Obfuscator.
type Option func(*Obfuscator)

// WithShuffler sets the random source used by the default strategy.
func WithShuffler(s Shuffler) Option {
	return func(o *Obfuscator) { o.shuffler = s }
}

// New creates an obfuscator for rules.
func New(rules Rules, opts ...Option) *Obfuscator {
	o := &Obfuscator{rules: rules, shuffler: globalShuffler{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Empty reports whether there are no rules.
func (o *Obfuscator) Empty() bool {
	return o == nil || len(o.rules) == 0
}

// Apply replaces matching fields of records in place. Every other holder of
// the same *types.Record observes the new values.
func (o *Obfuscator) Apply(records []*types.Record) error {
	if o.Empty() {
		return nil
	}
	for _, rec := range records {
		if err := o.applyOne(rec); err != nil {
			return err
		}
	}
	return nil
}

// ApplyCopy returns obfuscated clones of records and leaves records untouched.
func (o *Obfuscator) ApplyCopy(records []*types.Record) ([]*types.Record, error) {
	out := make([]*types.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	if err := o.Apply(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Obfuscator) applyOne(rec *types.Record) error {
	for _, field := range rec.Columns() {
		for _, key := range []string{field, rec.Table + "." + field} {
			strategy, ok := o.rules[key]
			if !ok {
				continue
			}
			old, _ := rec.Get(field)
			if isEmpty(old) {
				continue
			}
			replaced, err := o.run(strategy, old, rec)
			if err != nil {
				return fmt.Errorf("obfuscate %s.%s (%s): %w", rec.Table, field, rec.Key(), err)
			}
			rec.Set(field, replaced)
		}
	}
	return nil
}

func (o *Obfuscator) run(s Strategy, old interface{}, rec *types.Record) (interface{}, error) {
	switch {
	case s.Record != nil:
		return s.Record(old, rec)
	case s.Value != nil:
		return s.Value(old)
	}
	runes := []rune(text(old))
	o.shuffler.Shuffle(len(runes), func(i, j int) { runes[i], runes[j] = runes[j], runes[i] })
	return string(runes), nil
}

// Apply replaces matching fields of records in place using the global random source.
func Apply(records []*types.Record, rules Rules) error {
	return New(rules).Apply(records)
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []byte:
		return len(val) == 0
	}
	return false
}

func text(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	}
	return fmt.Sprint(v)
}

// Built-in strategy names accepted in configuration.
const (
	StrategyShuffle = "shuffle"
	StrategyMask    = "mask"
	StrategyHash    = "hash"
	StrategyEmail   = "email"
	StrategyNull    = "null"
)

var named = map[string]Strategy{
	"":              {},
	StrategyShuffle: {},
	StrategyMask: {Value: func(old interface{}) (interface{}, error) {
		return strings.Repeat("*", utf8.RuneCountInString(text(old))), nil
	}},
	StrategyHash: {Value: func(old interface{}) (interface{}, error) {
		sum := sha256.Sum256([]byte(text(old)))
		return hex.EncodeToString(sum[:]), nil
	}},
	StrategyEmail: {Record: func(_ interface{}, rec *types.Record) (interface{}, error) {
		return fmt.Sprintf("%s-%s@example.com", rec.Table, rec.Key()), nil
	}},
	StrategyNull: {Value: func(interface{}) (interface{}, error) { return nil, nil }},
}

// Named returns a built-in strategy.
func Named(name string) (Strategy, error) {
	s, ok := named[name]
	if !ok {
		return Strategy{}, fmt.Errorf("unknown obfuscation strategy %q (valid: %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names lists the built-in strategy names, sorted.
func Names() []string {
	var names []string
	for name := range named {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// FromConfig builds rules from field key -> strategy name pairs.
func FromConfig(cfg map[string]string) (Rules, error) {
	rules := make(Rules, len(cfg))
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		s, err := Named(cfg[key])
		if err != nil {
			return nil, fmt.Errorf("obfuscation.%s: %w", key, err)
		}
		rules[key] = s
	}
	return rules, nil
}
