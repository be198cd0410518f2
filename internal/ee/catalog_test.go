package ee

import "testing"

func TestSearchBuiltinCatalogRanksIDMatchesFirst(t *testing.T) {
	hits := SearchBuiltinCatalog("sentinel-2", 10)
	if len(hits) == 0 {
		t.Fatal("expected sentinel hits")
	}
	if got := hits[0].ID; got != "COPERNICUS/S2_SR_HARMONIZED" && got != "COPERNICUS/S2_HARMONIZED" {
		t.Fatalf("top hit = %s, want a Sentinel-2 collection", got)
	}
}

func TestSearchBuiltinCatalogByTag(t *testing.T) {
	hits := SearchBuiltinCatalog("flood radar", 10)
	if len(hits) == 0 {
		t.Fatal("expected hits for flood radar")
	}
	if hits[0].ID != "COPERNICUS/S1_GRD" {
		t.Fatalf("top hit = %s, want COPERNICUS/S1_GRD", hits[0].ID)
	}
}

func TestSearchBuiltinCatalogLimit(t *testing.T) {
	all := SearchBuiltinCatalog("optical", 0)
	if len(all) < 2 {
		t.Fatalf("expected several optical datasets, got %d", len(all))
	}
	one := SearchBuiltinCatalog("optical", 1)
	if len(one) != 1 {
		t.Fatalf("limit 1 returned %d", len(one))
	}
}

func TestSearchBuiltinCatalogEmptyQuery(t *testing.T) {
	if hits := SearchBuiltinCatalog("   ", 10); hits != nil {
		t.Fatalf("blank query returned %d hits", len(hits))
	}
}

func TestLookupBuiltin(t *testing.T) {
	if _, ok := LookupBuiltin("USGS/SRTMGL1_003"); !ok {
		t.Fatal("SRTM missing from builtin catalog")
	}
	if _, ok := LookupBuiltin("NOPE/NOT_A_DATASET"); ok {
		t.Fatal("unknown ID reported as builtin")
	}
}
