package bridge

import (
	"errors"
	"testing"
)

type person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type tagged struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

func TestSchemaFor(t *testing.T) {
	t.Parallel()

	s, err := schemaFor[person]()
	if err != nil {
		t.Fatalf("schemaFor: %v", err)
	}
	if s.format.Name != "bridge_person" {
		t.Errorf("Name: want %q, got %q", "bridge_person", s.format.Name)
	}
	if !s.format.Strict {
		t.Error("Strict: want true when every property is required")
	}
	props, ok := s.format.Schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", s.format.Schema)
	}
	if _, ok := props["name"]; !ok {
		t.Errorf("properties missing %q: %v", "name", props)
	}

	opt, err := schemaFor[tagged]()
	if err != nil {
		t.Fatalf("schemaFor: %v", err)
	}
	if opt.format.Strict {
		t.Error("Strict: want false when a property is optional")
	}
}

func TestParseStructured(t *testing.T) {
	t.Parallel()

	s, err := schemaFor[person]()
	if err != nil {
		t.Fatalf("schemaFor: %v", err)
	}

	tests := []struct {
		name     string
		text     string
		validate bool
		want     person
		wantErr  bool
	}{
		{name: "plain", text: `{"name":"Ada","age":36}`, validate: true, want: person{"Ada", 36}},
		{name: "fenced", text: "```json\n{\"name\":\"Ada\",\"age\":36}\n```", validate: true, want: person{"Ada", 36}},
		{name: "bare fence", text: "```\n{\"name\":\"Ada\",\"age\":36}\n```", validate: true, want: person{"Ada", 36}},
		{name: "trailing comma repaired", text: `{"name": "Ada", "age": 36,}`, validate: true, want: person{"Ada", 36}},
		{name: "missing field fails schema", text: `{"name":"Ada"}`, validate: true, wantErr: true},
		{name: "missing field without schema", text: `{"name":"Ada"}`, want: person{Name: "Ada"}},
		{name: "wrong type", text: `{"name":"Ada","age":"old"}`, validate: true, wantErr: true},
		{name: "empty", text: "   ", wantErr: true},
		{name: "array for object", text: `[1,2,3]`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var got person
			var err error
			if tc.validate {
				got, err = parseStructured[person](tc.text, s.resolved)
			} else {
				got, err = parseStructured[person](tc.text, nil)
			}
			if tc.wantErr {
				if !errors.Is(err, ErrStructuredParse) {
					t.Fatalf("want ErrStructuredParse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("want %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{in: `{"a":1}`, want: `{"a":1}`},
		{in: "  {\"a\":1}\n", want: `{"a":1}`},
		{in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: "```\n[1]\n```  ", want: `[1]`},
	}
	for _, tc := range tests {
		if got := stripFences(tc.in); got != tc.want {
			t.Errorf("stripFences(%q): want %q, got %q", tc.in, tc.want, got)
		}
	}
}
