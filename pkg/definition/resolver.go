// Package definition stores user definitions and resolves names the way the
// evaluator needs: the requester's own definitions first, then definitions
// shared with a project the requester belongs to, then global ones.
package definition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vjranagit/telemetry/pkg/ast"
)

var (
	// ErrNotFound is returned when no visible definition matches
	ErrNotFound = errors.New("definition not found")
	// ErrNameTaken is returned when an owner already uses a name for another kind
	ErrNameTaken = errors.New("definition name already used by owner")
)

// ShareScope controls who may resolve a definition
type ShareScope string

const (
	ScopePrivate ShareScope = "private"
	ScopeProject ShareScope = "project"
	ScopeGlobal  ShareScope = "global"
)

// ParseShareScope accepts private, project or global
func ParseShareScope(s string) (ShareScope, error) {
	switch scope := ShareScope(s); scope {
	case ScopePrivate, ScopeProject, ScopeGlobal:
		return scope, nil
	default:
		return "", fmt.Errorf("unknown share scope %q", s)
	}
}

// Registration is a definition with its owner and visibility
type Registration struct {
	Owner string
	Scope ShareScope
	// Members may resolve a project-scoped definition
	Members    []string
	Definition ast.Definition
}

type entry struct {
	owner      string
	scope      ShareScope
	members    map[string]bool
	definition ast.Definition
}

func (e *entry) visibleTo(requester string) bool {
	switch e.scope {
	case ScopeGlobal:
		return true
	case ScopeProject:
		return e.owner == requester || e.members[requester]
	default:
		return e.owner == requester
	}
}

// MemoryResolver keeps definitions in memory. It is safe for concurrent use.
type MemoryResolver struct {
	mu      sync.RWMutex
	byOwner map[string]map[string]*entry
}

// NewMemoryResolver returns an empty resolver
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{byOwner: make(map[string]map[string]*entry)}
}

// Register adds or replaces a definition. A name belongs to one kind per owner.
func (r *MemoryResolver) Register(reg Registration) error {
	if reg.Owner == "" {
		return fmt.Errorf("registration has no owner")
	}
	if reg.Definition == nil {
		return fmt.Errorf("registration for %s has no definition", reg.Owner)
	}
	if reg.Definition.Kind() == ast.KindDraw {
		return fmt.Errorf("draw commands are evaluated, not stored")
	}
	if reg.Scope == "" {
		reg.Scope = ScopePrivate
	}
	if _, err := ParseShareScope(string(reg.Scope)); err != nil {
		return err
	}

	e := &entry{
		owner:      reg.Owner,
		scope:      reg.Scope,
		members:    make(map[string]bool, len(reg.Members)),
		definition: reg.Definition,
	}
	for _, m := range reg.Members {
		e.members[m] = true
	}

	name := reg.Definition.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.byOwner[reg.Owner]
	if owned == nil {
		owned = make(map[string]*entry)
		r.byOwner[reg.Owner] = owned
	}
	if existing, ok := owned[name]; ok && existing.definition.Kind() != reg.Definition.Kind() {
		return fmt.Errorf("%w: %s is a %s of %s", ErrNameTaken, name, existing.definition.Kind(), reg.Owner)
	}
	owned[name] = e
	return nil
}

// Unregister removes an owner's definition and reports whether it existed
func (r *MemoryResolver) Unregister(owner, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byOwner[owner][name]; !ok {
		return false
	}
	delete(r.byOwner[owner], name)
	return true
}

// Resolve finds the definition named name of the given kind visible to requester.
// ast.KindAny matches every kind.
func (r *MemoryResolver) Resolve(ctx context.Context, name string, kind ast.DefinitionKind, requester string) (ast.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := func(e *entry) bool {
		return e != nil && (kind == ast.KindAny || e.definition.Kind() == kind)
	}

	if e := r.byOwner[requester][name]; matches(e) {
		return e.definition, nil
	}

	owners := r.sortedOwners()
	for _, scope := range []ShareScope{ScopeProject, ScopeGlobal} {
		for _, owner := range owners {
			e := r.byOwner[owner][name]
			if matches(e) && e.scope == scope && e.visibleTo(requester) {
				return e.definition, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %s %q for %s", ErrNotFound, kindLabel(kind), name, requester)
}

// Visible lists the definitions requester can resolve, sorted by name then owner
func (r *MemoryResolver) Visible(requester string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Registration
	for _, owner := range r.sortedOwners() {
		for _, e := range r.byOwner[owner] {
			if !e.visibleTo(requester) {
				continue
			}
			members := make([]string, 0, len(e.members))
			for m := range e.members {
				members = append(members, m)
			}
			sort.Strings(members)
			out = append(out, Registration{Owner: e.owner, Scope: e.scope, Members: members, Definition: e.definition})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Definition.Name() < out[j].Definition.Name()
	})
	return out
}

func (r *MemoryResolver) sortedOwners() []string {
	owners := make([]string, 0, len(r.byOwner))
	for owner := range r.byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

func kindLabel(kind ast.DefinitionKind) string {
	if kind == ast.KindAny {
		return "definition"
	}
	return string(kind)
}
