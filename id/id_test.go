package id_test

import (
	"strings"
	"testing"

	"github.com/tokengate/tokengate/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"ReceiptID", id.NewReceiptID, "rcpt_"},
		{"LinkID", id.NewLinkID, "lnk_"},
		{"EventID", id.NewEventID, "gevt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixReceipt)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixReceipt {
		t.Errorf("expected prefix %q, got %q", id.PrefixReceipt, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"ReceiptID", id.NewReceiptID, id.ParseReceiptID},
		{"LinkID", id.NewLinkID, id.ParseLinkID},
		{"EventID", id.NewEventID, id.ParseEventID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := tt.newFn()
			parsed, err := tt.parseFn(orig.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != orig.String() {
				t.Errorf("round trip mismatch: %q != %q", parsed.String(), orig.String())
			}
		})
	}
}

func TestParseWithPrefixRejectsWrongType(t *testing.T) {
	linkID := id.NewLinkID()
	if _, err := id.ParseReceiptID(linkID.String()); err == nil {
		t.Error("expected error parsing link id as receipt id")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "not-an-id", "rcpt_!!!"} {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("expected error parsing %q", s)
		}
	}
}

func TestTextMarshalRoundTrip(t *testing.T) {
	orig := id.NewReceiptID()
	data, err := orig.MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	var parsed id.ID
	if err := parsed.UnmarshalText(data); err != nil {
		t.Fatal(err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip mismatch: %q != %q", parsed.String(), orig.String())
	}
}
