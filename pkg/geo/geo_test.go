package geo

import (
	"net/netip"
	"testing"
)

func TestCountryWithoutDatabase(t *testing.T) {
	var db DB
	if cc := db.Country(netip.MustParseAddr("1.2.3.4")); cc != "" {
		t.Errorf("Country() with no database loaded = %q, want empty", cc)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var db DB
	if err := db.Load("/nonexistent/ip2location.bin"); err == nil {
		t.Fatal("expected error loading nonexistent database")
	}
}
