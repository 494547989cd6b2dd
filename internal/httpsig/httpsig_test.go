package httpsig

import (
	"testing"

	"github.com/codybrom/pg-fedi/internal/crypto"
)

func TestDigestVectors(t *testing.T) {
	if got := crypto.Digest([]byte("")); got != "SHA-256=47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=" {
		t.Errorf("digest(\"\") = %q", got)
	}
	if got := crypto.Digest([]byte("hello world")); got != "SHA-256=uU0nuZNNPgilLlLX2n2r+sSE7+N6U4DukIj3rOLvzek=" {
		t.Errorf("digest(\"hello world\") = %q", got)
	}
}

func TestBuildAndVerifyRoundTrip(t *testing.T) {
	pub, priv, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	body := []byte(`{"type":"Create"}`)
	date := "Sun, 09 Feb 2025 12:00:00 GMT"
	keyID := "https://test.example/users/alice#main-key"
	rawURL := "https://remote.example/users/bob/inbox"

	headerValue, err := BuildHeader(keyID, priv, "POST", rawURL, date, body)
	if err != nil {
		t.Fatalf("BuildHeader: %v", err)
	}

	parsed, err := ParseHeader(headerValue)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if parsed.KeyID != keyID {
		t.Errorf("KeyID = %q, want %q", parsed.KeyID, keyID)
	}

	digest := crypto.Digest(body)
	ok := VerifyIncoming(parsed, "POST", "/users/bob/inbox", "remote.example", date, &digest, pub)
	if !ok {
		t.Fatal("VerifyIncoming: expected true for matching signature")
	}

	// Flipping a byte of the signed body must invalidate the digest/signature.
	badDigest := crypto.Digest([]byte(`{"type":"Delete"}`))
	if VerifyIncoming(parsed, "POST", "/users/bob/inbox", "remote.example", date, &badDigest, pub) {
		t.Error("VerifyIncoming: expected false after body digest changed")
	}

	// Flipping the Date must invalidate the signature.
	if VerifyIncoming(parsed, "POST", "/users/bob/inbox", "remote.example", "Mon, 10 Feb 2025 12:00:00 GMT", &digest, pub) {
		t.Error("VerifyIncoming: expected false after Date changed")
	}
}

func TestParseHeaderMissingField(t *testing.T) {
	if _, err := ParseHeader(`algorithm="rsa-sha256",signature="abc"`); err == nil {
		t.Error("expected error for missing keyId")
	}
	if _, err := ParseHeader(`keyId="a",signature="abc`); err == nil {
		t.Error("expected error for unterminated quoted value")
	}
}

func TestParseHeaderWhitespaceTolerant(t *testing.T) {
	h, err := ParseHeader(`keyId="k" , algorithm="rsa-sha256" , headers="date" , signature="s"`)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.KeyID != "k" || h.Signature != "s" || len(h.Headers) != 1 || h.Headers[0] != "date" {
		t.Errorf("unexpected parse: %+v", h)
	}
}

func TestVerifyIncomingMissingDigestValue(t *testing.T) {
	pub, priv, _ := crypto.GenerateKeypair()
	body := []byte("x")
	date := "Sun, 09 Feb 2025 12:00:00 GMT"
	headerValue, _ := BuildHeader("kid", priv, "POST", "https://remote.example/inbox", date, body)
	parsed, _ := ParseHeader(headerValue)
	if VerifyIncoming(parsed, "POST", "/inbox", "remote.example", date, nil, pub) {
		t.Error("expected false when digest is listed but not supplied")
	}
}
