package export

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestFrontMatterRoundTrips(t *testing.T) {
	in := map[string]interface{}{
		"title":   "Release: notes #42",
		"empty":   "",
		"quoted":  "it's fine",
		"padded":  " edge ",
		"count":   3,
		"ratio":   0.25,
		"flag":    true,
		"nothing": nil,
		"tags":    []interface{}{"alpha", "beta: two"},
		"no_tags": []interface{}{},
		"nested":  map[string]interface{}{"inner": "value", "deep": map[string]interface{}{}},
		"plain":   "just words",
	}

	rendered := frontMatter(in)

	var out map[string]interface{}
	if err := yaml.Unmarshal([]byte(rendered), &out); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, rendered)
	}
	if out["title"] != "Release: notes #42" {
		t.Errorf("title = %v", out["title"])
	}
	if out["empty"] != "" {
		t.Errorf("empty = %v", out["empty"])
	}
	if out["quoted"] != "it's fine" {
		t.Errorf("quoted = %v", out["quoted"])
	}
	if out["padded"] != " edge " {
		t.Errorf("padded = %v", out["padded"])
	}
	if out["count"] != 3 {
		t.Errorf("count = %v", out["count"])
	}
	if out["flag"] != true {
		t.Errorf("flag = %v", out["flag"])
	}
	if out["nothing"] != nil {
		t.Errorf("nothing = %v", out["nothing"])
	}
	tags, ok := out["tags"].([]interface{})
	if !ok || len(tags) != 2 || tags[1] != "beta: two" {
		t.Errorf("tags = %v", out["tags"])
	}
	nested, ok := out["nested"].(map[string]interface{})
	if !ok || nested["inner"] != "value" {
		t.Errorf("nested = %v", out["nested"])
	}
}

func TestFrontMatterIsDeterministic(t *testing.T) {
	in := map[string]interface{}{"b": 1, "a": 2, "c": map[string]interface{}{"y": 1, "x": 2}}
	first := frontMatter(in)
	for i := 0; i < 10; i++ {
		if got := frontMatter(in); got != first {
			t.Fatalf("rendering varies between calls:\n%s\nvs\n%s", first, got)
		}
	}
	want := "a: 2\nb: 1\nc:\n  x: 2\n  y: 1\n"
	if first != want {
		t.Fatalf("got\n%q\nwant\n%q", first, want)
	}
}
