package scrape

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/guidescope/guidescope/extract"
)

func TestDecodePanelRows(t *testing.T) {
	rows, err := decodePanelRows(`[{"label":"Reviews","value":"42"},{"label":"Photos","value":"7"}]`)
	if err != nil {
		t.Fatalf("decodePanelRows: %v", err)
	}
	want := []extract.Row{{Label: "Reviews", Value: "42"}, {Label: "Photos", Value: "7"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

// A dialog that rendered without hydrated rows must read as not found, so
// the scroll nudge and re-wait still fire.
func TestDecodePanelRowsEmptyMeansNotFound(t *testing.T) {
	rows, err := decodePanelRows(`[]`)
	if err != nil {
		t.Fatalf("decodePanelRows: %v", err)
	}
	if rows != nil {
		t.Errorf("rows = %v, want nil for an empty panel", rows)
	}
}

func TestDecodePanelRowsBadJSON(t *testing.T) {
	if _, err := decodePanelRows(`not json`); err == nil {
		t.Error("expected error for malformed payload")
	}
}
