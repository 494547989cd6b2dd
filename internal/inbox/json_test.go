// pg_fedi is a federated ActivityPub server core.
// Copyright (C) 2026 The pg_fedi Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package inbox

import (
	"reflect"
	"testing"
)

func TestIdOf(t *testing.T) {
	if got := idOf("https://remote.example/objects/1"); got != "https://remote.example/objects/1" {
		t.Errorf("idOf(string) = %q", got)
	}
	if got := idOf(map[string]interface{}{"id": "https://remote.example/objects/2", "type": "Note"}); got != "https://remote.example/objects/2" {
		t.Errorf("idOf(object) = %q", got)
	}
	if got := idOf(nil); got != "" {
		t.Errorf("idOf(nil) = %q, want empty", got)
	}
	if got := idOf(map[string]interface{}{"type": "Note"}); got != "" {
		t.Errorf("idOf(object without id) = %q, want empty", got)
	}
}

func TestTypeOf(t *testing.T) {
	if got := typeOf(map[string]interface{}{"type": "Note"}); got != "Note" {
		t.Errorf("typeOf(object) = %q", got)
	}
	if got := typeOf("https://remote.example/objects/1"); got != "" {
		t.Errorf("typeOf(string) = %q, want empty", got)
	}
}

func TestAddressees(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want []string
	}{
		{"bare string", "https://a.example/users/bob", []string{"https://a.example/users/bob"}},
		{"empty string", "", nil},
		{"array", []interface{}{"https://a.example/users/bob", "https://a.example/users/carol"}, []string{"https://a.example/users/bob", "https://a.example/users/carol"}},
		{"array with non-strings skipped", []interface{}{"https://a.example/users/bob", 5}, []string{"https://a.example/users/bob"}},
		{"absent", nil, nil},
	}
	for _, c := range cases {
		if got := addressees(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s: addressees(%v) = %v, want %v", c.name, c.in, got, c.want)
		}
	}
}

func TestContentMapLanguage(t *testing.T) {
	doc := map[string]interface{}{
		"contentMap": map[string]interface{}{"en": "hello"},
	}
	if got := contentMapLanguage(doc); got != "en" {
		t.Errorf("contentMapLanguage = %q, want %q", got, "en")
	}
	if got := contentMapLanguage(map[string]interface{}{}); got != "" {
		t.Errorf("contentMapLanguage (absent) = %q, want empty", got)
	}
}
