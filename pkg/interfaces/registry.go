package interfaces

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Spec)
)

// Register adds a Spec under its Name. Definition packages call it from
// init(); registering the same name twice panics.
func Register(s *Spec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[s.Name]; dup {
		panic(fmt.Sprintf("interfaces: %s registered twice", s.Name))
	}
	registry[s.Name] = s
}

// Lookup finds a Spec by registry name or by binary name.
func Lookup(name string) (*Spec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if s, ok := registry[name]; ok {
		return s, true
	}
	for _, s := range registry {
		if s.Command == name {
			return s, true
		}
	}
	return nil, false
}

// Names returns all registered names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
