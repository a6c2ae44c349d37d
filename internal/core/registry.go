package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry   = make(map[string]RecordHandler)
	fallback   *RecordHandler
	registryMu sync.RWMutex
)

// Register adds a record handler. A handler with an empty Type becomes the
// fallback for level-0 types that have no handler of their own.
// Panics if the type is already registered.
func Register(h RecordHandler) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if h.Insert == nil || h.Delete == nil {
		panic(fmt.Sprintf("record handler %q needs Insert and Delete", h.Type))
	}

	if h.Type == "" {
		if fallback != nil {
			panic("fallback record handler already registered")
		}
		fallback = &h
		return
	}

	if _, exists := registry[h.Type]; exists {
		panic(fmt.Sprintf("record type already registered: %s", h.Type))
	}
	registry[h.Type] = h
}

// HandlerFor returns the handler that stores records of the given type.
// Custom types beginning with "_" only match an explicit registration;
// they frequently lack unique identifiers so the fallback never takes them.
func HandlerFor(recordType string) (RecordHandler, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if h, ok := registry[recordType]; ok {
		return h, true
	}
	if strings.HasPrefix(recordType, "_") || fallback == nil {
		return RecordHandler{}, false
	}
	return *fallback, true
}

// All returns every registered handler sorted by type, with the fallback
// last.
func All() []RecordHandler {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]RecordHandler, 0, len(registry)+1)
	for _, h := range registry {
		result = append(result, h)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	if fallback != nil {
		result = append(result, *fallback)
	}
	return result
}

// HandlerCount returns the number of registered handlers, fallback included.
func HandlerCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	n := len(registry)
	if fallback != nil {
		n++
	}
	return n
}

// Info returns the listing form of a handler.
func (h RecordHandler) Info() RecordTypeInfo {
	info := RecordTypeInfo{Type: h.Type, Label: h.Label, Table: h.Table}
	if info.Type == "" {
		info.Type = "*"
	}
	for _, idx := range []struct {
		set  IndexSet
		name string
	}{
		{IndexPlaces, "places"},
		{IndexDates, "dates"},
		{IndexLinks, "links"},
		{IndexNames, "names"},
	} {
		if h.Indexes.Has(idx.set) {
			info.Indexes = append(info.Indexes, idx.name)
		}
	}
	return info
}
