// Package similarity provides the pairwise scoring functions used by the
// duplicate scanner. All scores are in [0, 1].
package similarity

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/dbsmedya/dedupe/internal/normalize"
)

// Weights of the two components blended by Strings.
const (
	diceWeight        = 0.6
	levenshteinWeight = 0.4
)

// suppressionFloor is the score below which email, phone, and identifier
// comparisons are suppressed to 0: weak fuzzy matches on exact-ish fields are
// noise, not evidence.
const suppressionFloor = 0.7

// substringScore is assigned when one identifier or phone number is contained
// in the other (extension vs. full number, partial SKU).
const substringScore = 0.8

// Ratio returns a Levenshtein-based similarity ratio: 1 minus the edit
// distance divided by the longer length. Equal strings score 1; two empty
// strings score 0 (no evidence).
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// diceCoefficient returns the Sørensen–Dice coefficient over character
// bigrams. Strings shorter than two runes only match exactly.
func diceCoefficient(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		if a == b && a != "" {
			return 1
		}
		return 0
	}

	bigrams := make(map[string]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[string(ra[i:i+2])]++
	}

	shared := 0
	for i := 0; i < len(rb)-1; i++ {
		bg := string(rb[i : i+2])
		if bigrams[bg] > 0 {
			bigrams[bg]--
			shared++
		}
	}

	return 2 * float64(shared) / float64(len(ra)-1+len(rb)-1)
}

// Strings scores two free-form strings: a weighted blend of a bigram Dice
// coefficient and a Levenshtein ratio over normalized text. Identical
// normalized strings short-circuit to 1.
func Strings(a, b string) float64 {
	na, nb := normalize.Text(a), normalize.Text(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return diceWeight*diceCoefficient(na, nb) + levenshteinWeight*Ratio(na, nb)
}

// tokenAcceptThreshold is the per-token similarity required for two name
// tokens to be considered the same word.
const tokenAcceptThreshold = 0.85

// Names scores two person names by greedy token matching: each token of the
// shorter name consumes at most one token of the other, and the score is the
// matched-token count over the larger token count. Falls back to whole-string
// similarity when either name has no tokens.
func Names(a, b string) float64 {
	ta, tb := normalize.Tokens(a), normalize.Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return Strings(a, b)
	}

	consumed := make([]bool, len(tb))
	matched := 0
	for _, tok := range ta {
		for j, other := range tb {
			if consumed[j] {
				continue
			}
			if Strings(tok, other) >= tokenAcceptThreshold {
				consumed[j] = true
				matched++
				break
			}
		}
	}

	max := len(ta)
	if len(tb) > max {
		max = len(tb)
	}
	return float64(matched) / float64(max)
}

// legalSuffixAliases folds company legal-form variants to one canonical token
// before fuzzy comparison.
var legalSuffixAliases = map[string]string{
	"b.v.":         "bv",
	"b.v":          "bv",
	"bv.":          "bv",
	"n.v.":         "nv",
	"n.v":          "nv",
	"nv.":          "nv",
	"v.o.f.":       "vof",
	"inc.":         "inc",
	"incorporated": "inc",
	"ltd.":         "ltd",
	"limited":      "ltd",
	"llc.":         "llc",
	"gmbh.":        "gmbh",
	"co.":          "co",
	"corp.":        "corp",
	"corporation":  "corp",
}

// Companies scores two company names, folding legal-suffix variants
// (BV/B.V., NV, Inc., Ltd., ...) before delegating to Strings.
func Companies(a, b string) float64 {
	return Strings(foldLegalSuffixes(a), foldLegalSuffixes(b))
}

func foldLegalSuffixes(name string) string {
	tokens := strings.Fields(strings.ToLower(name))
	for i, tok := range tokens {
		if canonical, ok := legalSuffixAliases[tok]; ok {
			tokens[i] = canonical
		}
	}
	return strings.Join(tokens, " ")
}

// Numbers scores two numeric identifiers (VAT, KVK, SKU): digits-only exact
// match scores 1, substring containment scores 0.8, anything fuzzier than a
// 0.7 Levenshtein ratio is suppressed to 0.
func Numbers(a, b string) float64 {
	da, db := normalize.Digits(a), normalize.Digits(b)
	if da == "" || db == "" {
		return 0
	}
	if da == db {
		return 1
	}
	if strings.Contains(da, db) || strings.Contains(db, da) {
		return substringScore
	}
	if r := Ratio(da, db); r >= suppressionFloor {
		return r
	}
	return 0
}

// Emails scores two email addresses: provider-aware normalized exact match
// scores 1, otherwise a Levenshtein ratio.
func Emails(a, b string) float64 {
	na, nb := normalize.Email(a), normalize.Email(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return Ratio(na, nb)
}

// PhoneNumbers scores two phone numbers over normalized digits: exact match
// scores 1, one number contained in the other (extension vs. full) scores
// 0.8, and anything below a 0.7 ratio is suppressed to 0.
func PhoneNumbers(a, b string) float64 {
	na, nb := normalize.Phone(a), normalize.Phone(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return substringScore
	}
	if r := Ratio(na, nb); r >= suppressionFloor {
		return r
	}
	return 0
}
