package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadQueryJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.json")
	doc := `{
  "datasetId": "EO:ESA:DAT:SENTINEL-3:SR_2_WAT___",
  "boundingBoxValues": [{"name": "bbox", "bbox": [1.0, 2.0, 3.0, 4.0]}],
  "dateRangeSelectValues": [{"name": "position", "start": "2021-01-01T00:00:00.000Z", "end": "2021-01-02T00:00:00.000Z"}]
}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	q, err := LoadQuery(path)
	if err != nil {
		t.Fatalf("LoadQuery failed: %v", err)
	}

	var got, want map[string]interface{}
	if err := json.Unmarshal(q, &got); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(doc), &want); err != nil {
		t.Fatal(err)
	}
	gotBytes, _ := json.Marshal(got)
	wantBytes, _ := json.Marshal(want)
	if string(gotBytes) != string(wantBytes) {
		t.Errorf("query altered:\n got %s\nwant %s", gotBytes, wantBytes)
	}
	if id := QueryDatasetID(q); id != "EO:ESA:DAT:SENTINEL-3:SR_2_WAT___" {
		t.Errorf("QueryDatasetID = %q", id)
	}
}

func TestLoadQueryYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	doc := `datasetId: "EO:X"
stringChoiceValues:
  - name: productType
    value: SR_2_WAT___
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	q, err := LoadQuery(path)
	if err != nil {
		t.Fatalf("LoadQuery failed: %v", err)
	}

	var got struct {
		DatasetID          string `json:"datasetId"`
		StringChoiceValues []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"stringChoiceValues"`
	}
	if err := json.Unmarshal(q, &got); err != nil {
		t.Fatalf("converted query is not JSON: %v (%s)", err, q)
	}
	if got.DatasetID != "EO:X" || len(got.StringChoiceValues) != 1 || got.StringChoiceValues[0].Value != "SR_2_WAT___" {
		t.Errorf("unexpected conversion: %+v", got)
	}
}

func TestParseQueryRejectsNonObjects(t *testing.T) {
	for _, in := range []string{"", "[1,2]", "\"str\"", "{bad json"} {
		if _, err := ParseQueryJSON([]byte(in)); err == nil {
			t.Errorf("ParseQueryJSON(%q) should fail", in)
		}
	}
	if _, err := ParseQueryYAML([]byte("- a\n- b\n")); err == nil {
		t.Error("ParseQueryYAML should reject sequences")
	}
}
