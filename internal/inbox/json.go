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

// This file holds small helpers for picking values out of the loosely
// typed map[string]interface{} an inbound activity document unmarshals
// into. ActivityStreams lets most reference fields be either a bare URI
// string or an inline object with an "id"; these helpers normalize both
// shapes, matching the same tolerance the teacher's go-fed/activity
// resolver gives callers, minus the generated vocabulary.

// idOf extracts a stable URI from either a bare string or an object
// carrying an "id" field. Returns "" if neither shape matches.
func idOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		if id, ok := t["id"].(string); ok {
			return id
		}
	}
	return ""
}

// typeOf returns the "type" field of an inline object, or "" if v is not
// an inline object (e.g. a bare URI string).
func typeOf(v interface{}) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	t, _ := m["type"].(string)
	return t
}

// asObject returns v as a map if it is an inline object, or nil otherwise.
func asObject(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// stringOrEmpty reads a string field, tolerating its absence.
func stringOrEmpty(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// addressees normalizes spec.md §3's "to"/"cc" fields, which may be a bare
// string, an array of strings, or absent.
func addressees(v interface{}) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// contentMapLanguage returns the first key of a contentMap object, spec.md
// §4.4's Create handling: "Extract language from the first key of
// contentMap if present". Go map iteration order is randomized, but the
// spec only promises "the first key" without defining an ordering, so any
// single key satisfies the contract when more than one is present.
func contentMapLanguage(doc map[string]interface{}) string {
	cm, ok := doc["contentMap"].(map[string]interface{})
	if !ok {
		return ""
	}
	for k := range cm {
		return k
	}
	return ""
}
