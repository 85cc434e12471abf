// Package gateway loads and holds the read-only authorized-gateway table: the
// server's sole source of truth for which gateway UIDs may connect and which
// key to use for each.
package gateway

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sensorseal/ssgs/pkg/ssgscp"
)

// entry is the on-disk JSON shape of one authorized_gateways element.
type entry struct {
	UID string `json:"uid" validate:"required"`
	Key string `json:"key" validate:"required"`
}

// file is the on-disk JSON shape of the config file (spec.md §4.5).
type file struct {
	AuthorizedGateways []entry `json:"authorized_gateways"`
}

var validate = validator.New()

// Table is the read-only UID -> key mapping built once at startup. The zero
// value is an empty table.
type Table struct {
	byUID map[ssgscp.GatewayUID]ssgscp.Key
}

// LoadTable reads and validates the authorized-gateway JSON file at path. Any
// schema violation (bad hex, wrong decoded length) is a fatal error, per
// spec.md §4.5 — there is no partial/best-effort table.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gateway: read config %q: %w", path, err)
	}

	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("gateway: parse config %q: %w", path, err)
	}

	t := &Table{byUID: make(map[ssgscp.GatewayUID]ssgscp.Key, len(f.AuthorizedGateways))}
	for i, e := range f.AuthorizedGateways {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("gateway: config entry %d: %w", i, err)
		}

		uidBytes, err := decodeHexStrict(e.UID, 4)
		if err != nil {
			return nil, fmt.Errorf("gateway: config entry %d: uid: %w", i, err)
		}
		keyBytes, err := decodeHexStrict(e.Key, 32)
		if err != nil {
			return nil, fmt.Errorf("gateway: config entry %d: key: %w", i, err)
		}

		var uid ssgscp.GatewayUID
		var key ssgscp.Key
		copy(uid[:], uidBytes)
		copy(key[:], keyBytes)

		if _, dup := t.byUID[uid]; dup {
			return nil, fmt.Errorf("gateway: config entry %d: duplicate uid %s", i, uid)
		}
		t.byUID[uid] = key
	}

	return t, nil
}

// decodeHexStrict strips whitespace from s, decodes it as hex, and requires
// the result be exactly wantLen bytes.
func decodeHexStrict(s string, wantLen int) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", wantLen, len(b))
	}
	return b, nil
}

// Lookup returns the key for uid and whether it is authorized.
func (t *Table) Lookup(uid ssgscp.GatewayUID) (ssgscp.Key, bool) {
	if t == nil {
		return ssgscp.Key{}, false
	}
	k, ok := t.byUID[uid]
	return k, ok
}

// Len returns the number of authorized gateways.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byUID)
}
