package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseBBox(t *testing.T) {
	cases := []struct {
		in      string
		srid    string
		wantErr bool
	}{
		{"1,2,3,4", "EPSG:4326", false},
		{"1,2,3,4,epsg:2154", "EPSG:2154", false},
		{"1,2,3", "", true},
		{"1,x,3,4", "", true},
	}
	for _, tc := range cases {
		b, err := parseBBox(tc.in, "EPSG:4326")
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: err=%v wantErr=%v", tc.in, err, tc.wantErr)
		}
		if err == nil && (b.SRID != tc.srid || b.X2 != 3 || b.Y2 != 4) {
			t.Fatalf("%q: got %+v", tc.in, b)
		}
	}
}

func TestParseFilters(t *testing.T) {
	got, err := parseFilters([]string{"owner=Dupont", "zone=A=B"})
	if err != nil {
		t.Fatalf("parseFilters: %v", err)
	}
	if len(got) != 2 || got[0].Property != "owner" || got[1].Value != "A=B" {
		t.Fatalf("got %+v", got)
	}
	if _, err := parseFilters([]string{"=x"}); err == nil {
		t.Fatalf("expected error for empty property")
	}
}

func TestFormatsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"formats"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := strings.Fields(out.String()); len(got) != 4 || got[0] != "kml" {
		t.Fatalf("formats=%v", got)
	}
}

func TestRunFlags_ProjectionDefault(t *testing.T) {
	f := runCmd.Flags().Lookup("projection")
	if f == nil || f.DefValue != "" || !strings.Contains(f.Usage, "bbox CRS") {
		t.Fatalf("projection flag=%+v", f)
	}
}
