package lang

import (
	"maps"
	"slices"
	"strconv"
)

// ScopeID addresses a scope in an [Env].
type ScopeID int

// RootScope is the scope every [Env] starts with. Global declarations
// always target it.
const RootScope ScopeID = 0

// unset marks a declared variable that has not been assigned.
type unset struct{}

// Unset is the value of a declared variable before its first assignment.
//
//nolint:gochecknoglobals
var Unset any = unset{}

// Slot is a mutable variable binding.
type Slot struct {
	Value any
}

// IsSet reports whether the slot holds a value other than [Unset] and nil.
func (s *Slot) IsSet() bool {
	if s == nil {
		return false
	}

	_, isUnset := s.Value.(unset)

	return !isUnset && s.Value != nil
}

// Closure is a function, mixin or content block together with the scope
// it was declared in. Free variables in the body resolve against that
// scope, not the caller's.
//
// Body holds the backend-specific representation of the body: []*Node for
// the evaluator and the instruction list for generated programs. Body is
// nil while a function name is declared but its definition has not been
// reached yet.
type Closure struct {
	Name   string
	Params []Param
	Body   any
	Scope  ScopeID

	// Content is the content block visible inside a content block body.
	Content *Closure
}

// scope is one record in the arena. parent is the index of the enclosing
// scope, or -1 for the root.
type scope struct {
	parent ScopeID
	vars   map[string]*Slot
	fns    map[string]*Closure
	mixins map[string]*Closure
}

// Env is a chain of lexical scopes stored in an arena and addressed by
// [ScopeID]. Closures reference their declaring scope by index, so no scope
// owns another.
//
// Scopes are pushed when a block that can introduce bindings is entered and
// popped when it completes. An Env belongs to a single compile and is not
// safe for concurrent use.
type Env struct {
	scopes []scope
	ident  uint64
}

// NewEnv returns an environment with an empty root scope.
func NewEnv() *Env {
	return &Env{scopes: []scope{{parent: -1}}}
}

// Push creates a scope nested in parent and returns it.
func (e *Env) Push(parent ScopeID) ScopeID {
	e.scopes = append(e.scopes, scope{parent: parent})

	return ScopeID(len(e.scopes) - 1)
}

// Pop discards id and every scope created after it. The root scope is
// never discarded.
func (e *Env) Pop(id ScopeID) {
	if id <= RootScope || int(id) >= len(e.scopes) {
		return
	}

	clear(e.scopes[id:])
	e.scopes = e.scopes[:id]
}

// Depth returns the number of live scopes.
func (e *Env) Depth() int { return len(e.scopes) }

// Parent returns the scope enclosing id, or -1 for the root.
func (e *Env) Parent(id ScopeID) ScopeID { return e.scopes[id].parent }

// DeclareVar creates a local binding for name in id, holding [Unset], and
// returns it. An existing local binding is returned unchanged.
func (e *Env) DeclareVar(id ScopeID, name string) *Slot {
	name = normName(name)
	s := &e.scopes[id]

	if slot, ok := s.vars[name]; ok {
		return slot
	}

	if s.vars == nil {
		s.vars = make(map[string]*Slot)
	}

	slot := &Slot{Value: Unset}
	s.vars[name] = slot

	return slot
}

// DeclareGlobalVar creates or returns the binding for name in the root
// scope regardless of the current nesting.
func (e *Env) DeclareGlobalVar(name string) *Slot {
	return e.DeclareVar(RootScope, name)
}

// LookupVar returns the nearest binding of name visible from id, searching
// innermost to root, or nil.
func (e *Env) LookupVar(id ScopeID, name string) *Slot {
	name = normName(name)

	for ; id >= 0; id = e.scopes[id].parent {
		if slot, ok := e.scopes[id].vars[name]; ok {
			return slot
		}
	}

	return nil
}

// Assign writes value to the binding name.
//
// A global assignment targets the root scope. Otherwise the nearest
// visible binding is written, or a new local binding is created in id when
// none exists.
func (e *Env) Assign(id ScopeID, name string, value any, global bool) *Slot {
	var slot *Slot

	switch {
	case global:
		slot = e.DeclareGlobalVar(name)
	default:
		if slot = e.LookupVar(id, name); slot == nil {
			slot = e.DeclareVar(id, name)
		}
	}

	slot.Value = value

	return slot
}

// NeedsAssign reports whether a guarded assignment of name from id would
// take effect: no binding is found, or the binding found is unset.
func (e *Env) NeedsAssign(id ScopeID, name string, global bool) bool {
	if global {
		return !e.lookupLocal(RootScope, name).IsSet()
	}

	return !e.LookupVar(id, name).IsSet()
}

// AssignGuarded performs a guarded assignment. value is only called when
// the assignment takes effect. It reports whether the binding was written.
func (e *Env) AssignGuarded(
	id ScopeID,
	name string,
	global bool,
	value func() (any, error),
) (bool, error) {
	if !e.NeedsAssign(id, name, global) {
		return false, nil
	}

	v, err := value()
	if err != nil {
		return false, err
	}

	e.Assign(id, name, v, global)

	return true, nil
}

func (e *Env) lookupLocal(id ScopeID, name string) *Slot {
	return e.scopes[id].vars[normName(name)]
}

// DeclareFn registers name as a function in id and returns its closure
// record. The body may be filled in later, which lets functions declared
// in the same block refer to each other.
func (e *Env) DeclareFn(id ScopeID, name string) *Closure {
	return declare(&e.scopes[id].fns, id, name)
}

// DeclareMixin registers name as a mixin in id and returns its closure
// record.
func (e *Env) DeclareMixin(id ScopeID, name string) *Closure {
	return declare(&e.scopes[id].mixins, id, name)
}

func declare(m *map[string]*Closure, id ScopeID, name string) *Closure {
	name = normName(name)

	if c, ok := (*m)[name]; ok {
		return c
	}

	if *m == nil {
		*m = make(map[string]*Closure)
	}

	c := &Closure{Name: name, Scope: id}
	(*m)[name] = c

	return c
}

// LookupFn returns the nearest function visible from id, or nil.
func (e *Env) LookupFn(id ScopeID, name string) *Closure {
	name = normName(name)

	for ; id >= 0; id = e.scopes[id].parent {
		if c, ok := e.scopes[id].fns[name]; ok {
			return c
		}
	}

	return nil
}

// LookupMixin returns the nearest mixin visible from id, or nil.
func (e *Env) LookupMixin(id ScopeID, name string) *Closure {
	name = normName(name)

	for ; id >= 0; id = e.scopes[id].parent {
		if c, ok := e.scopes[id].mixins[name]; ok {
			return c
		}
	}

	return nil
}

// UniqueIdent returns an identifier that is unique across the whole
// compile, not just one scope.
func (e *Env) UniqueIdent(prefix string) string {
	e.ident++

	return prefix + "-" + strconv.FormatUint(e.ident, 10)
}

// Names returns the sorted names of variables, functions and mixins
// visible from id. Variable names carry their "$" prefix.
func (e *Env) Names(id ScopeID) (vars, fns, mixins []string) {
	seen := [3]map[string]struct{}{{}, {}, {}}

	for ; id >= 0; id = e.scopes[id].parent {
		s := e.scopes[id]

		for name, slot := range s.vars {
			if slot.IsSet() {
				seen[0]["$"+name] = struct{}{}
			}
		}

		for name := range s.fns {
			seen[1][name] = struct{}{}
		}

		for name := range s.mixins {
			seen[2][name] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(seen[0])),
		slices.Sorted(maps.Keys(seen[1])),
		slices.Sorted(maps.Keys(seen[2]))
}
