package model

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"
)

var camelCase = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)

func TestJSONTagsAreCamelCase(t *testing.T) {
	for _, v := range []any{User{}, Snippet{}, View{}, Comment{}, Activity{}} {
		typ := reflect.TypeOf(v)
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if !camelCase.MatchString(name) {
				t.Errorf("%s.%s has json name %q, want camelCase", typ.Name(), f.Name, name)
			}
		}
	}
}

func TestSnippetJSON(t *testing.T) {
	origin := "cq0origin"
	s := Snippet{
		ID:         "cq0snippet",
		HTMLCode:   "<p>hi</p>",
		ViewsCount: 3,
		ForkedFrom: &origin,
		IsPublic:   true,
		CreatedAt:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for key, want := range map[string]any{
		"htmlCode":   "<p>hi</p>",
		"viewsCount": float64(3),
		"forkedFrom": "cq0origin",
		"isPublic":   true,
		"createdAt":  "2026-03-10T00:00:00Z",
	} {
		if fields[key] != want {
			t.Errorf("%s = %v, want %v", key, fields[key], want)
		}
	}
}
