package manifest

import (
	"strings"
	"testing"

	"github.com/wildland-go/wildland/manifest/schema"
	"github.com/wildland-go/wildland/sig"
)

func TestParseSplitsHeaderAndBody(t *testing.T) {
	raw := []byte("signature: abc\n---\nowner: 0xaa11aa\nobject: user\n")
	header, body, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(header) != "signature: abc\n" {
		t.Errorf("header = %q", header)
	}
	if string(body) != "owner: 0xaa11aa\nobject: user\n" {
		t.Errorf("body = %q", body)
	}
}

func TestParseMissingDelimiter(t *testing.T) {
	if _, _, err := Parse([]byte("owner: 0xaa11aa\n")); err == nil {
		t.Fatal("expected error for missing '---' delimiter")
	}
}

func TestFromUnsigned(t *testing.T) {
	body := []byte("object: user\nowner: 0xaa11aa\nversion: \"1\"\npubkeys: []\n")
	m, err := FromUnsigned(body)
	if err != nil {
		t.Fatalf("FromUnsigned: %v", err)
	}
	if m.Owner != sig.Owner("0xaa11aa") {
		t.Errorf("Owner = %q", m.Owner)
	}
	if m.Object != "user" {
		t.Errorf("Object = %q", m.Object)
	}
}

func userBody() []byte {
	return []byte("object: user\nowner: 0xaa11aa\nversion: \"1\"\npubkeys:\n  - fakepubkey\n")
}

func TestToBytesThenVerifyAndLoadRoundTrip(t *testing.T) {
	ctx := sig.NewContext(true)
	registry := schema.NewRegistry()

	m, err := FromUnsigned(userBody())
	if err != nil {
		t.Fatalf("FromUnsigned: %v", err)
	}

	raw, err := ToBytes(m, ctx, true)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !strings.Contains(string(raw), "---\n") {
		t.Fatalf("serialized manifest missing delimiter: %q", raw)
	}

	loaded, err := VerifyAndLoad(raw, ctx, registry, "")
	if err != nil {
		t.Fatalf("VerifyAndLoad: %v", err)
	}
	if !loaded.Signed {
		t.Error("expected Signed = true after VerifyAndLoad")
	}
	if loaded.Owner != sig.Owner("0xaa11aa") {
		t.Errorf("Owner = %q, want 0xaa11aa", loaded.Owner)
	}
	if loaded.Object != "user" {
		t.Errorf("Object = %q, want user", loaded.Object)
	}
}

func TestVerifyAndLoadRejectsWrongExpectedOwner(t *testing.T) {
	ctx := sig.NewContext(true)
	registry := schema.NewRegistry()

	m, err := FromUnsigned(userBody())
	if err != nil {
		t.Fatalf("FromUnsigned: %v", err)
	}
	raw, err := ToBytes(m, ctx, true)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	if _, err := VerifyAndLoad(raw, ctx, registry, "0xbb22bb"); err == nil {
		t.Fatal("expected VerifyAndLoad to reject a manifest signed by a different owner")
	}
}

func TestVerifyAndLoadRejectsMissingSignature(t *testing.T) {
	ctx := sig.NewContext(true)
	registry := schema.NewRegistry()

	raw := []byte("signature: \"\"\n---\n" + string(userBody()))
	if _, err := VerifyAndLoad(raw, ctx, registry, ""); err == nil {
		t.Fatal("expected VerifyAndLoad to reject an empty signature")
	}
}

func TestVerifyAndLoadRejectsSchemaViolation(t *testing.T) {
	ctx := sig.NewContext(true)
	registry := schema.NewRegistry()

	body := []byte("object: user\nowner: 0xaa11aa\nversion: \"1\"\n") // missing required pubkeys
	m, err := FromUnsigned(body)
	if err != nil {
		t.Fatalf("FromUnsigned: %v", err)
	}
	raw, err := ToBytes(m, ctx, true)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	if _, err := VerifyAndLoad(raw, ctx, registry, ""); err == nil {
		t.Fatal("expected VerifyAndLoad to reject a body missing required schema fields")
	}
}

func TestLoadTrustedAcceptsUnsignedBody(t *testing.T) {
	registry := schema.NewRegistry()
	raw := []byte("signature: \"\"\n---\n" + string(userBody()))

	m, err := LoadTrusted(raw, registry, sig.Owner("0xaa11aa"))
	if err != nil {
		t.Fatalf("LoadTrusted: %v", err)
	}
	if m.Owner != sig.Owner("0xaa11aa") {
		t.Errorf("Owner = %q, want 0xaa11aa", m.Owner)
	}
}

func TestLoadTrustedRejectsOwnerMismatch(t *testing.T) {
	registry := schema.NewRegistry()
	raw := []byte("signature: \"\"\n---\n" + string(userBody()))

	if _, err := LoadTrusted(raw, registry, sig.Owner("0xbb22bb")); err == nil {
		t.Fatal("expected LoadTrusted to reject a trusted-owner mismatch")
	}
}
