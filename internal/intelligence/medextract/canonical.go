package medextract

import "strings"

// canonicalRule maps raw test names to a canonical key.  A rule fires only
// when every one of its tokens appears in the lowercased raw name, and the
// rules are consulted in order, so narrower names (glucose+fasting, hbsag)
// sit above the broader ones they would otherwise collide with.
type canonicalRule struct {
	tokens    []string
	canonical string
	// wholeWord restricts every token to whole-word occurrences.  Short
	// abbreviations like "hb" need it so they do not fire inside longer
	// names such as "HbA1c"; longer tokens stay on substring matching
	// because lab sheets inflect them ("fasting", "leucocytes").
	wholeWord bool
}

var canonicalRules = []canonicalRule{
	{[]string{"glucose", "fast"}, "Glucose (Fasting)", false},
	{[]string{"fbs"}, "Glucose (Fasting)", false},
	{[]string{"hbsag"}, "HBsAg", false},
	{[]string{"hbs ag"}, "HBsAg", false},
	{[]string{"australia antigen"}, "HBsAg", false},
	{[]string{"vdrl"}, "VDRL", false},
	{[]string{"rpr"}, "VDRL", false},
	{[]string{"tri-dot"}, "HCV", false},
	{[]string{"tri dot"}, "HCV", false},
	{[]string{"hcv"}, "HCV", false},
	{[]string{"hemoglobin"}, "Hemoglobin", false},
	{[]string{"haemoglobin"}, "Hemoglobin", false},
	{[]string{"heamoglobin"}, "Hemoglobin", false}, // common lab-sheet misspelling
	{[]string{"hgb"}, "Hemoglobin", false},
	{tokens: []string{"hb"}, canonical: "Hemoglobin", wholeWord: true}, // must stay below the hbsag rules
	{[]string{"platelet"}, "Platelet Count", false},
	{[]string{"plt"}, "Platelet Count", false},
	{[]string{"wbc"}, "WBC Count", false},
	{[]string{"leucocyte"}, "WBC Count", false},
	{[]string{"leukocyte"}, "WBC Count", false},
	{[]string{"tlc"}, "WBC Count", false},
	{[]string{"rbc"}, "RBC Count", false},
	{[]string{"erythrocyte"}, "RBC Count", false},
	{[]string{"red blood"}, "RBC Count", false},
	{[]string{"esr"}, "ESR", false},
	{[]string{"sed rate"}, "ESR", false},
	{[]string{"sedimentation"}, "ESR", false},
	{[]string{"glucose"}, "Glucose", false},
	{[]string{"sugar"}, "Glucose", false},
	{[]string{"rbs"}, "Glucose", false},
	{[]string{"creatinine"}, "Creatinine", false},
	{[]string{"blood picture"}, "Blood Picture", false},
	{[]string{"peripheral smear"}, "Blood Picture", false},
}

// MapTestName resolves a raw lab test name to its canonical form.  Names
// matching no rule pass through verbatim so unrecognized analytes still
// appear in output under the name the lab printed.
func MapTestName(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	for _, rule := range canonicalRules {
		matched := true
		for _, tok := range rule.tokens {
			if rule.wholeWord {
				if !containsWord(lowered, tok) {
					matched = false
					break
				}
			} else if !strings.Contains(lowered, tok) {
				matched = false
				break
			}
		}
		if matched {
			return rule.canonical
		}
	}
	return strings.TrimSpace(raw)
}

// containsWord reports whether w occurs in s with no letter or digit
// touching either end of the occurrence.
func containsWord(s, w string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], w)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(w)
		before := i == 0 || !isAlnum(s[i-1])
		after := end == len(s) || !isAlnum(s[end])
		if before && after {
			return true
		}
		from = i + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
