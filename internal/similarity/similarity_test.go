package similarity

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRatio(t *testing.T) {
	if !almostEqual(Ratio("abc", "abc"), 1) {
		t.Error("equal strings should score 1")
	}
	if !almostEqual(Ratio("", ""), 0) {
		t.Error("two empty strings carry no evidence")
	}
	// "abcd" vs "abce": 1 edit over length 4
	if got := Ratio("abcd", "abce"); !almostEqual(got, 0.75) {
		t.Errorf("Ratio(abcd, abce) = %v, want 0.75", got)
	}
	if got := Ratio("abc", ""); !almostEqual(got, 0) {
		t.Errorf("Ratio(abc, \"\") = %v, want 0", got)
	}
}

func TestStrings(t *testing.T) {
	if got := Strings("Jan de Vries", "Jan de Vries"); !almostEqual(got, 1) {
		t.Errorf("identical strings = %v, want 1", got)
	}
	if got := Strings("", "x"); !almostEqual(got, 0) {
		t.Errorf("Strings(\"\", x) = %v, want 0", got)
	}
	// Case and diacritics are normalized away before scoring.
	if got := Strings("CAFÉ ZÜRICH", "cafe zurich"); !almostEqual(got, 1) {
		t.Errorf("normalized-equal strings = %v, want 1", got)
	}
	// Similar strings land between 0 and 1.
	got := Strings("Jansen Bakkerij", "Janssen Bakkerij")
	if got <= 0.7 || got >= 1 {
		t.Errorf("Strings(Jansen, Janssen) = %v, want high but below 1", got)
	}
	// Unrelated strings score low.
	if got := Strings("Jansen", "Pietersen"); got >= 0.6 {
		t.Errorf("Strings for unrelated names = %v, want < 0.6", got)
	}
}

func TestNames(t *testing.T) {
	if got := Names("Jan de Vries", "Vries de Jan"); !almostEqual(got, 1) {
		t.Errorf("token order should not matter, got %v", got)
	}
	// Two of three tokens match.
	if got := Names("Jan de Vries", "Piet de Vries"); !almostEqual(got, 2.0/3.0) {
		t.Errorf("Names = %v, want 2/3", got)
	}
	// Denominator is the larger token count.
	if got := Names("Jan Vries", "Jan van der Vries"); !almostEqual(got, 0.5) {
		t.Errorf("Names = %v, want 0.5", got)
	}
	// Each target token is consumed at most once.
	if got := Names("Jan Jan", "Jan Smit"); !almostEqual(got, 0.5) {
		t.Errorf("Names with repeated token = %v, want 0.5", got)
	}
	// Empty side falls back to whole-string similarity.
	if got := Names("", "Jan"); !almostEqual(got, 0) {
		t.Errorf("Names(\"\", Jan) = %v, want 0", got)
	}
}

func TestCompanies(t *testing.T) {
	if got := Companies("Bakkerij Jansen B.V.", "Bakkerij Jansen BV"); !almostEqual(got, 1) {
		t.Errorf("legal suffix variants should be folded, got %v", got)
	}
	if got := Companies("Acme Incorporated", "Acme Inc."); !almostEqual(got, 1) {
		t.Errorf("Inc variants should be folded, got %v", got)
	}
	if got := Companies("Acme Ltd", "Other Corp"); got > 0.6 {
		t.Errorf("unrelated companies = %v, want low", got)
	}
}

func TestNumbers(t *testing.T) {
	if got := Numbers("NL123456789B01", "1234 5678 901"); !almostEqual(got, 1) {
		t.Errorf("digit-equal identifiers = %v, want 1", got)
	}
	if got := Numbers("12345678", "345"); !almostEqual(got, 0.8) {
		t.Errorf("substring identifier = %v, want 0.8", got)
	}
	if got := Numbers("11111111", "99999999"); !almostEqual(got, 0) {
		t.Errorf("dissimilar identifiers should be suppressed to 0, got %v", got)
	}
	if got := Numbers("abc", "123"); !almostEqual(got, 0) {
		t.Errorf("digitless side = %v, want 0", got)
	}
}

func TestEmails(t *testing.T) {
	if got := Emails("a.b+x@gmail.com", "ab@gmail.com"); !almostEqual(got, 1) {
		t.Errorf("gmail aliases should match exactly, got %v", got)
	}
	if got := Emails("jan@x.nl", "jen@x.nl"); got <= 0.8 || got >= 1 {
		t.Errorf("near-identical emails = %v, want high partial score", got)
	}
	if got := Emails("", "jan@x.nl"); !almostEqual(got, 0) {
		t.Errorf("empty email = %v, want 0", got)
	}
}

func TestPhoneNumbers(t *testing.T) {
	if got := PhoneNumbers("+31612345678", "06-12345678"); !almostEqual(got, 1) {
		t.Errorf("equivalent phone forms = %v, want 1", got)
	}
	if got := PhoneNumbers("612345678", "12345678"); !almostEqual(got, 0.8) {
		t.Errorf("substring phone (extension vs full) = %v, want 0.8", got)
	}
	if got := PhoneNumbers("611111111", "699999999"); !almostEqual(got, 0) {
		t.Errorf("dissimilar phones should be suppressed to 0, got %v", got)
	}
}

func TestComposite(t *testing.T) {
	if got := Composite(nil); !almostEqual(got, 0) {
		t.Errorf("Composite(nil) = %v, want 0", got)
	}
	if got := Composite([]Comparison{{Score: 0, Weight: 1}}); !almostEqual(got, 0) {
		t.Errorf("zero-score entries must be excluded, got %v", got)
	}
	// A zero-score entry must not drag the average down.
	with := Composite([]Comparison{{Score: 0.9, Weight: 0.4}, {Score: 0, Weight: 0.3}})
	without := Composite([]Comparison{{Score: 0.9, Weight: 0.4}})
	if !almostEqual(with, without) {
		t.Errorf("zero-score entry changed the composite: %v != %v", with, without)
	}
	// Weighted average over positive entries.
	got := Composite([]Comparison{{Score: 1, Weight: 0.4}, {Score: 0.5, Weight: 0.2}})
	want := (1*0.4 + 0.5*0.2) / 0.6
	if !almostEqual(got, want) {
		t.Errorf("Composite = %v, want %v", got, want)
	}
}
