// Package env provides a centralized, self-registering registry for the
// environment variables this project reads. Calling any Register*
// function records the variable's metadata (name, default, description,
// type, component) in a process-wide registry and returns a typed
// accessor — adapted from kagent's pkg/env, which in turn credits
// Istio's pkg/env for the pattern.
package env

import (
	"cmp"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"
)

// VarType identifies the data type of an environment variable.
type VarType int

const (
	TypeString VarType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeDuration
)

func (v VarType) String() string {
	switch v {
	case TypeString:
		return "String"
	case TypeBool:
		return "Boolean"
	case TypeInt:
		return "Integer"
	case TypeFloat:
		return "Float"
	case TypeDuration:
		return "Duration"
	default:
		return "Unknown"
	}
}

// Component identifies which subsystem consumes the variable.
type Component string

const (
	ComponentKernel    Component = "kernel"
	ComponentBudget    Component = "budget"
	ComponentSafety    Component = "safety"
	ComponentConflict  Component = "conflict"
	ComponentVector    Component = "vector_index"
	ComponentCloudSync Component = "cloud_sync"
	ComponentServer    Component = "server"
)

// Var holds the metadata for a single registered environment variable.
type Var struct {
	Name         string    `json:"name"`
	DefaultValue string    `json:"default"`
	Description  string    `json:"description"`
	Type         VarType   `json:"type"`
	Component    Component `json:"component"`
}

var (
	allVars = make(map[string]Var)
	mu      sync.Mutex
)

func register(v Var) {
	mu.Lock()
	defer mu.Unlock()
	allVars[v.Name] = v
}

// VarDescriptions returns all registered variables sorted by name.
func VarDescriptions() []Var {
	mu.Lock()
	defer mu.Unlock()

	out := make([]Var, 0, len(allVars))
	for _, v := range allVars {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b Var) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// StringVar is a registered environment variable holding a string value.
type StringVar struct{ v Var }

func RegisterStringVar(name, defaultValue, description string, component Component) StringVar {
	v := Var{Name: name, DefaultValue: defaultValue, Description: description, Type: TypeString, Component: component}
	register(v)
	return StringVar{v: v}
}

func (s StringVar) Get() string {
	if val, ok := os.LookupEnv(s.v.Name); ok {
		return val
	}
	return s.v.DefaultValue
}

func (s StringVar) Name() string { return s.v.Name }

// BoolVar is a registered environment variable holding a boolean value.
type BoolVar struct {
	v            Var
	defaultValue bool
}

func RegisterBoolVar(name string, defaultValue bool, description string, component Component) BoolVar {
	v := Var{Name: name, DefaultValue: strconv.FormatBool(defaultValue), Description: description, Type: TypeBool, Component: component}
	register(v)
	return BoolVar{v: v, defaultValue: defaultValue}
}

func (b BoolVar) Get() bool {
	if val, ok := os.LookupEnv(b.v.Name); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return b.defaultValue
}

// IntVar is a registered environment variable holding an integer value.
type IntVar struct {
	v            Var
	defaultValue int
}

func RegisterIntVar(name string, defaultValue int, description string, component Component) IntVar {
	v := Var{Name: name, DefaultValue: strconv.Itoa(defaultValue), Description: description, Type: TypeInt, Component: component}
	register(v)
	return IntVar{v: v, defaultValue: defaultValue}
}

func (i IntVar) Get() int {
	if val, ok := os.LookupEnv(i.v.Name); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return i.defaultValue
}

// FloatVar is a registered environment variable holding a float value.
type FloatVar struct {
	v            Var
	defaultValue float64
}

func RegisterFloatVar(name string, defaultValue float64, description string, component Component) FloatVar {
	v := Var{Name: name, DefaultValue: strconv.FormatFloat(defaultValue, 'f', -1, 64), Description: description, Type: TypeFloat, Component: component}
	register(v)
	return FloatVar{v: v, defaultValue: defaultValue}
}

func (f FloatVar) Get() float64 {
	if val, ok := os.LookupEnv(f.v.Name); ok {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return f.defaultValue
}

// DurationVar is a registered environment variable holding a duration.
type DurationVar struct {
	v            Var
	defaultValue time.Duration
}

func RegisterDurationVar(name string, defaultValue time.Duration, description string, component Component) DurationVar {
	v := Var{Name: name, DefaultValue: defaultValue.String(), Description: description, Type: TypeDuration, Component: component}
	register(v)
	return DurationVar{v: v, defaultValue: defaultValue}
}

func (d DurationVar) Get() time.Duration {
	if val, ok := os.LookupEnv(d.v.Name); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return d.defaultValue
}
