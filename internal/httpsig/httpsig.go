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

// Package httpsig implements the SignatureCodec of spec.md §4.3: building
// and parsing draft-cavage "Signature:" headers as plain functions over
// plain values, independent of any http.Request/Signer object graph.
package httpsig

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/codybrom/pg-fedi/internal/crypto"
)

// Header is a parsed "Signature:" header value.
type Header struct {
	KeyID     string
	Algorithm string
	Headers   []string
	Signature string
}

const defaultAlgorithm = "rsa-sha256"

// BuildHeader builds the draft-cavage Signature header value for a POST of
// body to url, signed with the given key_id/private_pem pair, matching
// spec.md §4.3's canonical signing-string construction.
func BuildHeader(keyID, privatePEM, method, rawURL, date string, body []byte) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("httpsig: parse url: %w", err)
	}
	digest := crypto.Digest(body)

	signingString := canonicalString(method, u.Path, u.Host, date, digest)
	sig, err := crypto.Sign(privatePEM, []byte(signingString))
	if err != nil {
		return "", fmt.Errorf("httpsig: sign: %w", err)
	}

	return fmt.Sprintf(
		`keyId="%s",algorithm="%s",headers="(request-target) host date digest",signature="%s"`,
		keyID, defaultAlgorithm, sig,
	), nil
}

func canonicalString(method, path, host, date, digest string) string {
	return strings.Join([]string{
		fmt.Sprintf("(request-target): %s %s", strings.ToLower(method), path),
		fmt.Sprintf("host: %s", host),
		fmt.Sprintf("date: %s", date),
		fmt.Sprintf("digest: %s", digest),
	}, "\n")
}

// ParseHeader parses a draft-cavage Signature header value into its
// key="value" fields. Unknown keys are ignored; an unterminated quoted
// value or a missing required field is reported as an error.
func ParseHeader(value string) (Header, error) {
	fields := map[string]string{}
	rest := value
	for len(strings.TrimSpace(rest)) > 0 {
		rest = strings.TrimLeft(rest, " \t")
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			return Header{}, fmt.Errorf("httpsig: malformed field in header: %q", rest)
		}
		key := strings.TrimSpace(rest[:eq])
		rest = rest[eq+1:]
		if len(rest) == 0 || rest[0] != '"' {
			return Header{}, fmt.Errorf("httpsig: value for %q not quoted", key)
		}
		rest = rest[1:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return Header{}, fmt.Errorf("httpsig: unterminated quoted value for %q", key)
		}
		fields[key] = rest[:end]
		rest = rest[end+1:]
		rest = strings.TrimLeft(rest, " \t")
		if len(rest) > 0 {
			if rest[0] != ',' {
				return Header{}, fmt.Errorf("httpsig: expected ',' after %q", key)
			}
			rest = rest[1:]
		}
	}

	keyID, ok := fields["keyId"]
	if !ok || keyID == "" {
		return Header{}, fmt.Errorf("httpsig: missing required field keyId")
	}
	sig, ok := fields["signature"]
	if !ok || sig == "" {
		return Header{}, fmt.Errorf("httpsig: missing required field signature")
	}
	algorithm := fields["algorithm"]
	if algorithm == "" {
		algorithm = defaultAlgorithm
	}
	var headers []string
	if h, ok := fields["headers"]; ok && h != "" {
		headers = strings.Fields(h)
	} else {
		headers = []string{"date"}
	}

	return Header{
		KeyID:     keyID,
		Algorithm: algorithm,
		Headers:   headers,
		Signature: sig,
	}, nil
}

// VerifyIncoming reconstructs the signing string from header.Headers (in
// the order listed) using the supplied request components, then delegates
// the cryptographic check to crypto.Verify. If "digest" is listed but no
// digest value is supplied, verification fails. Unlisted header names
// (e.g. content-type) are skipped.
func VerifyIncoming(header Header, method, path, host, date string, digest *string, publicPEM string) bool {
	var lines []string
	for _, name := range header.Headers {
		switch strings.ToLower(name) {
		case "(request-target)":
			lines = append(lines, fmt.Sprintf("(request-target): %s %s", strings.ToLower(method), path))
		case "host":
			lines = append(lines, fmt.Sprintf("host: %s", host))
		case "date":
			lines = append(lines, fmt.Sprintf("date: %s", date))
		case "digest":
			if digest == nil {
				return false
			}
			lines = append(lines, fmt.Sprintf("digest: %s", *digest))
		default:
			// content-type and other unlisted names are skipped.
			continue
		}
	}
	signingString := strings.Join(lines, "\n")
	return crypto.Verify(publicPEM, []byte(signingString), header.Signature)
}
