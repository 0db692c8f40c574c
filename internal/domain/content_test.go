package domain

import (
	"testing"
	"time"
)

func TestParseContentType(t *testing.T) {
	for _, ct := range ContentTypes() {
		got, err := ParseContentType(string(ct))
		if err != nil {
			t.Fatalf("ParseContentType(%q) error: %v", ct, err)
		}
		if got != ct {
			t.Fatalf("ParseContentType(%q) = %q", ct, got)
		}
	}

	if _, err := ParseContentType("podcasts"); err == nil {
		t.Fatal("expected error for unknown content type")
	}
}

func TestContentTypesIsCopy(t *testing.T) {
	types := ContentTypes()
	if len(types) != 8 {
		t.Fatalf("expected 8 content types, got %d", len(types))
	}
	types[0] = "mutated"
	if ContentTypes()[0] != ContentHero {
		t.Fatal("ContentTypes should return a copy")
	}
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		in      ContentType
		wantErr bool
	}{
		{ContentBlog, false},
		{"podcasts", false},
		{"", true},
		{"Blog Posts", true},
		{"a*b", true},
	}
	for _, tt := range tests {
		err := ValidateContentType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ValidateContentType(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestTTLClassDefaults(t *testing.T) {
	tests := []struct {
		class TTLClass
		want  time.Duration
		name  string
	}{
		{TTLShort, 5 * time.Minute, "short"},
		{TTLMedium, time.Hour, "medium"},
		{TTLLong, 24 * time.Hour, "long"},
		{TTLWeek, 7 * 24 * time.Hour, "week"},
	}
	for _, tt := range tests {
		if got := tt.class.DefaultDuration(); got != tt.want {
			t.Fatalf("%s.DefaultDuration() = %v, want %v", tt.name, got, tt.want)
		}
		if tt.class.String() != tt.name {
			t.Fatalf("String() = %q, want %q", tt.class.String(), tt.name)
		}
		parsed, err := ParseTTLClass(tt.name)
		if err != nil || parsed != tt.class {
			t.Fatalf("ParseTTLClass(%q) = %v, %v", tt.name, parsed, err)
		}
	}
	if _, err := ParseTTLClass("forever"); err == nil {
		t.Fatal("expected error for unknown ttl class")
	}
}
