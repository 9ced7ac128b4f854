package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Contract)
	registryMu sync.RWMutex
)

// Register adds a contract to the registry.
// Panics if a contract for the same table is already registered.
func Register(c Contract) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if c.Table == "" {
		panic("contract registered without a table name")
	}
	if _, exists := registry[c.Table]; exists {
		panic(fmt.Sprintf("contract already registered: %s", c.Table))
	}

	registry[c.Table] = c
}

// Get returns the contract for table.
// Returns false if not found.
func Get(table string) (Contract, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	c, ok := registry[table]
	return c, ok
}

// Lookup returns the contract for table, or an error of kind
// KindContractNotFound naming the table.
func Lookup(table string) (Contract, error) {
	c, ok := Get(table)
	if !ok {
		return Contract{}, &Error{
			Kind:  KindContractNotFound,
			Op:    "lookup contract",
			Table: table,
			Err:   fmt.Errorf("no contract defined for table %q", table),
		}
	}
	return c, nil
}

// All returns all registered contracts sorted by table.
func All() []Contract {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Contract, 0, len(registry))
	for _, c := range registry {
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Table < result[j].Table
	})

	return result
}

// ContractCount returns the number of registered contracts.
func ContractCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered contracts.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Contract)
}
