package apmodel

import "testing"

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"plain paragraph", "<p>Hello from remote!</p>", "Hello from remote!"},
		{"nested tags", "<p>hi <b>there</b></p>", "hi there"},
		{"no tags", "just text", "just text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.html); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.html, got, tt.want)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	got, err := Domain("https://remote.example/users/bob")
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if got != "remote.example" {
		t.Errorf("Domain = %q, want remote.example", got)
	}

	if _, err := Domain("not a url"); err == nil {
		t.Error("Domain(\"not a url\") expected error, got nil")
	}
}

func TestDeriveUsername(t *testing.T) {
	if got := DeriveUsername("https://remote.example/users/bob"); got != "bob" {
		t.Errorf("DeriveUsername = %q, want bob", got)
	}
}

func TestRecognizedObjectKind(t *testing.T) {
	if k, ok := RecognizedObjectKind("Note"); !ok || k != ObjectNote {
		t.Errorf("RecognizedObjectKind(Note) = %v, %v", k, ok)
	}
	if _, ok := RecognizedObjectKind("Tombstone"); ok {
		t.Error("RecognizedObjectKind(Tombstone) should not be recognized")
	}
}
