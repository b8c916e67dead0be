package articles

import (
	"reflect"
	"testing"
)

func TestRecognize(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "dotted with artifact word", input: "Part 897.010.1478 DELIVER", want: []string{"897.010.1478"}},
		{name: "dotted glued artifact", input: "897.010.1478PCS ordered", want: []string{"897.010.1478"}},
		{name: "dashed", input: "please confirm 4500-120-01 asap", want: []string{"4500-120-01"}},
		{name: "prefixed tag", input: "artikel nr. 340.221.06, 25 stuks", want: []string{"340.221.06"}},
		{name: "two codes once each", input: "897.010.1478 en nogmaals 897.010.1478 plus 898.020.0011", want: []string{"897.010.1478", "898.020.0011"}},
		{name: "blacklisted", input: "NL002", want: nil},
		{name: "version number ignored", input: "see revision 1.2 of the doc", want: nil},
		{name: "empty", input: "", want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Recognize(tc.input)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestRecognizeSubject(t *testing.T) {
	got := RecognizeSubject("PO 4501508414 - art. 897.010.1478 rev B")
	found := false
	for _, code := range got {
		if code == "897.010.1478" {
			found = true
		}
	}
	if !found {
		t.Fatalf("subject recognizer missed dotted code, got %v", got)
	}

	if codes := RecognizeSubject("Bestelling 120-4500"); len(codes) != 1 || codes[0] != "120-4500" {
		t.Fatalf("short dashed subject code, got %v", codes)
	}

	if codes := RecognizeSubject("ISO9001 certificaat"); len(codes) != 0 {
		t.Fatalf("blacklisted subject token accepted: %v", codes)
	}
}
