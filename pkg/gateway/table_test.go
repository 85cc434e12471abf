package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sensorseal/ssgs/pkg/ssgscp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadTableValid(t *testing.T) {
	key := ""
	for i := 0; i < 32; i++ {
		key += "11"
	}
	p := writeConfig(t, `{"authorized_gateways":[{"uid":"aabbccdd","key":"`+key+`"}]}`)

	tbl, err := LoadTable(p)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
	if _, ok := tbl.Lookup(ssgscp.GatewayUID{0xaa, 0xbb, 0xcc, 0xdd}); !ok {
		t.Fatal("Lookup: expected uid to be authorized")
	}
}

func TestLoadTableWhitespaceInHex(t *testing.T) {
	key := ""
	for i := 0; i < 32; i++ {
		key += "11"
	}
	p := writeConfig(t, `{"authorized_gateways":[{"uid":"aa bb cc dd","key":"`+insertSpaces(key)+`"}]}`)

	tbl, err := LoadTable(p)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
}

func insertSpaces(s string) string {
	out := make([]byte, 0, len(s)*2)
	for i, c := range s {
		if i > 0 && i%8 == 0 {
			out = append(out, ' ')
		}
		out = append(out, byte(c))
	}
	return string(out)
}

func TestLoadTableBadUIDLength(t *testing.T) {
	key := ""
	for i := 0; i < 32; i++ {
		key += "11"
	}
	p := writeConfig(t, `{"authorized_gateways":[{"uid":"aabb","key":"`+key+`"}]}`)
	if _, err := LoadTable(p); err == nil {
		t.Fatal("expected error for short uid")
	}
}

func TestLoadTableBadKeyLength(t *testing.T) {
	p := writeConfig(t, `{"authorized_gateways":[{"uid":"aabbccdd","key":"1122"}]}`)
	if _, err := LoadTable(p); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestLoadTableDuplicateUID(t *testing.T) {
	key := ""
	for i := 0; i < 32; i++ {
		key += "11"
	}
	body := `{"authorized_gateways":[
		{"uid":"aabbccdd","key":"` + key + `"},
		{"uid":"aabbccdd","key":"` + key + `"}
	]}`
	p := writeConfig(t, body)
	if _, err := LoadTable(p); err == nil {
		t.Fatal("expected error for duplicate uid")
	}
}

func TestLoadTableMissingFile(t *testing.T) {
	if _, err := LoadTable(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
