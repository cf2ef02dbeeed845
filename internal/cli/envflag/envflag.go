// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package envflag defines flags whose defaults come from environment
// variables.
package envflag

import (
	"flag"
	"fmt"
	"strconv"
	"time"
)

// Type is a constraint that permits only types supported by envflag package.
type Type interface {
	int | int64 | bool | string | time.Duration
}

// Value defines a flag with the given name and usage on fs. Its default is
// taken from the envName environment variable if it is set and valid, and from
// value otherwise. An explicitly passed flag always wins.
func Value[T Type](name, envName string, value T, usage string, fs *flag.FlagSet, getenv func(string) string) *T {
	p := new(T)
	Var(p, name, envName, value, usage, fs, getenv)
	return p
}

// Var is like [Value], but stores the flag value in p.
func Var[T Type](p *T, name, envName string, value T, usage string, fs *flag.FlagSet, getenv func(string) string) {
	v := &flagValue[T]{p: p}
	*v.p = value
	if s := getenv(envName); s != "" {
		if err := v.Set(s); err != nil {
			*v.p = value
		}
	}
	fs.Var(v, name, usage+" Can be overridden by "+envName+" environment variable.")
}

type flagValue[T Type] struct{ p *T }

func (f *flagValue[T]) String() string {
	if f == nil || f.p == nil {
		return ""
	}
	return fmt.Sprint(*f.p)
}

func (f *flagValue[T]) Set(s string) error {
	var (
		v   any
		err error
	)
	switch any(*f.p).(type) {
	case int:
		v, err = strconv.Atoi(s)
	case int64:
		v, err = strconv.ParseInt(s, 10, 64)
	case bool:
		v, err = strconv.ParseBool(s)
	case time.Duration:
		v, err = time.ParseDuration(s)
	case string:
		v = s
	}
	if err != nil {
		return err
	}
	*f.p = v.(T)
	return nil
}

// IsBoolFlag lets boolean flags be passed without a value.
func (f *flagValue[T]) IsBoolFlag() bool {
	if f == nil || f.p == nil {
		return false
	}
	_, ok := any(*f.p).(bool)
	return ok
}
