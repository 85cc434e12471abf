// Package geo optionally enriches a gateway's remote address with a country
// code looked up from an IP2Location database. It is purely a diagnostics
// aid: nothing in the protocol dispatch path consults it.
package geo

import (
	"fmt"
	"net/netip"
	"os"
	"sync"

	"github.com/pg9182/ip2x"
)

// DB wraps a file-backed IP2Location database which can be hot-swapped (e.g.
// on SIGHUP) without interrupting in-flight lookups.
type DB struct {
	mu   sync.RWMutex
	file *os.File
	db   *ip2x.DB
}

// Load replaces the currently loaded database with the one at name. If name
// is empty, the existing database (if any) is reopened from its current
// path — used to pick up an updated file in place.
func (m *DB) Load(name string) error {
	m.mu.RLock()
	if name == "" {
		if m.file == nil {
			m.mu.RUnlock()
			return fmt.Errorf("geo: no database currently loaded")
		}
		name = m.file.Name()
	}
	m.mu.RUnlock()

	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("geo: open %q: %w", name, err)
	}

	db, err := ip2x.New(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("geo: load %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file != nil {
		m.file.Close()
	}
	m.file, m.db = f, db
	return nil
}

// Close closes the underlying database file, if any.
func (m *DB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	return m.file.Close()
}

// Country looks up the two-letter ISO country code for addr, or "" if no
// database is loaded or the address has no record.
func (m *DB) Country(addr netip.Addr) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.db == nil {
		return ""
	}
	rec, err := m.db.Lookup(addr)
	if err != nil {
		return ""
	}
	cc, _ := rec.GetString(ip2x.CountryCode)
	return cc
}
