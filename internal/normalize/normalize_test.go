package normalize

import (
	"reflect"
	"regexp"
	"testing"

	"github.com/reqgate/reqgate/internal/model"
	"github.com/reqgate/reqgate/internal/reqif"
)

var uuidShape = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-5[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestDeriveUIDPassthrough(t *testing.T) {
	cases := []string{"REQ-001", "req_42", "ABC123", "a", "_-_"}
	for _, src := range cases {
		if got := DeriveUID(src); got != src {
			t.Errorf("DeriveUID(%q) = %q, want passthrough", src, got)
		}
	}
}

func TestDeriveUIDNonPlain(t *testing.T) {
	cases := []string{"", "REQ 001", "REQ.001", "réq-1", "a/b", " "}
	for _, src := range cases {
		got := DeriveUID(src)
		if got == src {
			t.Errorf("DeriveUID(%q) passed through, want derived UUID", src)
		}
		if !uuidShape.MatchString(got) {
			t.Errorf("DeriveUID(%q) = %q, not a v5 UUID", src, got)
		}
	}
}

func TestDeriveUIDDeterministic(t *testing.T) {
	a := DeriveUID("REQ 001")
	b := DeriveUID("REQ 001")
	if a != b {
		t.Fatalf("same source produced different uids: %q vs %q", a, b)
	}
	if DeriveUID("REQ 001") == DeriveUID("REQ 002") {
		t.Fatal("different sources produced the same uid")
	}
}

func TestBaselineHash(t *testing.T) {
	h := BaselineHash("default", "1.0.0")
	if len(h) != 16 {
		t.Fatalf("hash length = %d, want 16", len(h))
	}
	if h != BaselineHash("default", "1.0.0") {
		t.Fatal("hash is not deterministic")
	}
	if h == BaselineHash("default", "1.0.1") {
		t.Fatal("different versions produced the same hash")
	}
}

func TestPackageForSubtype(t *testing.T) {
	cases := map[string]string{
		"CYBER":          "compliance.cyber",
		"ACCESS_CONTROL": "compliance.access.control",
		"GENERAL":        "compliance.general",
	}
	for in, want := range cases {
		if got := PackageForSubtype(in); got != want {
			t.Errorf("PackageForSubtype(%q) = %q, want %q", in, got, want)
		}
	}
}

func doc(objs ...reqif.SpecObject) *reqif.Document {
	return &reqif.Document{
		SpecObjects: objs,
		SpecTypes: []reqif.SpecType{
			{Identifier: "TYPE-CYBER", LongName: "Cyber Security"},
		},
		AttributeDefinitions: []reqif.AttributeDefinition{
			{Identifier: "DEF-KEY", LongName: "key", DataType: "string"},
			{Identifier: "DEF-TEXT", LongName: "text", DataType: "string"},
			{Identifier: "DEF-STATUS", LongName: "status", DataType: "string"},
			{Identifier: "DEF-SUBTYPES", LongName: "subtypes", DataType: "string"},
			{Identifier: "DEF-TYPE", LongName: "type", DataType: "string"},
			{Identifier: "DEF-SEVERITY", LongName: "severity", DataType: "string"},
		},
	}
}

func TestNormalizeBasicRecord(t *testing.T) {
	d := doc(reqif.SpecObject{
		Identifier:  "REQ-001",
		SpecTypeRef: "TYPE-CYBER",
		Attributes: []reqif.AttributeValue{
			{DefinitionRef: "DEF-KEY", Value: "SEC-1"},
			{DefinitionRef: "DEF-TEXT", Value: "The system shall encrypt data at rest."},
			{DefinitionRef: "DEF-STATUS", Value: "active"},
		},
	})

	records, err := Normalize(d, "default", "1.0.0")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.UID != "REQ-001" {
		t.Errorf("uid = %q, want REQ-001", rec.UID)
	}
	if rec.Key != "SEC-1" {
		t.Errorf("key = %q, want SEC-1", rec.Key)
	}
	if rec.Status != model.StatusActive {
		t.Errorf("status = %q, want active", rec.Status)
	}
	if !reflect.DeepEqual(rec.Subtypes, []string{"CYBER_SECURITY"}) {
		t.Errorf("subtypes = %v, want [CYBER_SECURITY]", rec.Subtypes)
	}
	if rec.PolicyBaseline.Hash != BaselineHash("default", "1.0.0") {
		t.Errorf("baseline hash = %q", rec.PolicyBaseline.Hash)
	}
	if len(rec.Rubrics) != 1 || rec.Rubrics[0].Package != "compliance.cyber.security" {
		t.Errorf("rubrics = %+v", rec.Rubrics)
	}
	if rec.Attrs != nil {
		t.Errorf("attrs = %v, want omitted when empty", rec.Attrs)
	}
}

func TestNormalizeSubtypePrecedence(t *testing.T) {
	cases := []struct {
		name  string
		attrs []reqif.AttributeValue
		want  []string
	}{
		{
			name: "explicit subtypes attribute wins",
			attrs: []reqif.AttributeValue{
				{DefinitionRef: "DEF-SUBTYPES", Value: "cyber, access control"},
				{DefinitionRef: "DEF-TYPE", Value: "safety"},
			},
			want: []string{"CYBER", "ACCESS_CONTROL"},
		},
		{
			name: "type attribute next",
			attrs: []reqif.AttributeValue{
				{DefinitionRef: "DEF-TYPE", Value: "safety"},
			},
			want: []string{"SAFETY"},
		},
		{
			name:  "spec type long name next",
			attrs: nil,
			want:  []string{"CYBER_SECURITY"},
		},
		{
			name: "empty subtypes falls through",
			attrs: []reqif.AttributeValue{
				{DefinitionRef: "DEF-SUBTYPES", Value: " , "},
			},
			want: []string{"CYBER_SECURITY"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := doc(reqif.SpecObject{
				Identifier:  "REQ-001",
				SpecTypeRef: "TYPE-CYBER",
				Attributes:  tc.attrs,
			})
			records, err := Normalize(d, "default", "1.0.0")
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if !reflect.DeepEqual(records[0].Subtypes, tc.want) {
				t.Errorf("subtypes = %v, want %v", records[0].Subtypes, tc.want)
			}
		})
	}
}

func TestNormalizeUnknownTypeRefGetsGeneral(t *testing.T) {
	d := doc(reqif.SpecObject{
		Identifier:  "REQ-001",
		SpecTypeRef: "TYPE-MISSING",
	})
	records, err := Normalize(d, "default", "1.0.0")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !reflect.DeepEqual(records[0].Subtypes, []string{"GENERAL"}) {
		t.Errorf("subtypes = %v, want [GENERAL]", records[0].Subtypes)
	}
	if records[0].Rubrics[0].Package != "compliance.general" {
		t.Errorf("rubric package = %q", records[0].Rubrics[0].Package)
	}
}

func TestNormalizeStatusFallback(t *testing.T) {
	d := doc(reqif.SpecObject{
		Identifier:  "REQ-001",
		SpecTypeRef: "TYPE-CYBER",
		Attributes: []reqif.AttributeValue{
			{DefinitionRef: "DEF-STATUS", Value: "bogus"},
		},
	})
	records, err := Normalize(d, "default", "1.0.0")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if records[0].Status != model.StatusActive {
		t.Errorf("status = %q, want fallback to active", records[0].Status)
	}
}

func TestNormalizeAttrsWhitelist(t *testing.T) {
	d := doc(reqif.SpecObject{
		Identifier:  "REQ-001",
		SpecTypeRef: "TYPE-CYBER",
		Attributes: []reqif.AttributeValue{
			{DefinitionRef: "DEF-SEVERITY", Value: "high"},
			{DefinitionRef: "DEF-TEXT", Value: "some text"},
		},
	})
	records, err := Normalize(d, "default", "1.0.0")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := map[string]string{"severity": "high"}
	if !reflect.DeepEqual(records[0].Attrs, want) {
		t.Errorf("attrs = %v, want %v", records[0].Attrs, want)
	}
}

func TestNormalizeKeyFallsBackToIdentifier(t *testing.T) {
	d := doc(reqif.SpecObject{
		Identifier:  "REQ-001",
		SpecTypeRef: "TYPE-CYBER",
	})
	records, err := Normalize(d, "default", "1.0.0")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if records[0].Key != "REQ-001" {
		t.Errorf("key = %q, want identifier fallback", records[0].Key)
	}
}

func TestNormalizeEmptyAttributesDoNotFallBack(t *testing.T) {
	d := doc(reqif.SpecObject{
		Identifier:  "REQ-001",
		SpecTypeRef: "TYPE-CYBER",
		Attributes: []reqif.AttributeValue{
			{DefinitionRef: "DEF-KEY", Value: ""},
			{DefinitionRef: "DEF-TEXT", Value: ""},
		},
	})
	records, err := Normalize(d, "default", "1.0.0")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if records[0].Key != "" {
		t.Errorf("key = %q, want empty value kept for a present attribute", records[0].Key)
	}
	if records[0].Text != "" {
		t.Errorf("text = %q, want empty value kept for a present attribute", records[0].Text)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	d := doc(reqif.SpecObject{
		Identifier:  "REQ 001",
		SpecTypeRef: "TYPE-CYBER",
		Attributes: []reqif.AttributeValue{
			{DefinitionRef: "DEF-TEXT", Value: "text"},
		},
	})
	first, err := Normalize(d, "default", "1.0.0")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	second, err := Normalize(d, "default", "1.0.0")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("normalization is not deterministic across runs")
	}
}

func TestNormalizeInputErrors(t *testing.T) {
	if _, err := Normalize(nil, "default", "1.0.0"); err == nil {
		t.Error("nil document: want error")
	}
	if _, err := Normalize(doc(), "", "1.0.0"); err == nil {
		t.Error("empty baseline id: want error")
	}
	if _, err := Normalize(doc(), "default", ""); err == nil {
		t.Error("empty baseline version: want error")
	}
}
