package extract

import "strings"

var keyReplacer = strings.NewReplacer(
	"#", "",
	" ", "_", "-", "_", "/", "_", "(", "_", ")", "_", "'", "_",
	":", "_", ".", "_", ",", "_", "&", "_", "?", "_",
	"\t", "_", "\n", "_", "\r", "_",
)

// NormalizeKey turns a feature label such as "Min. Age / Max Age" into a
// column name (min_age_max_age). Applying it to its own output is a no-op.
func NormalizeKey(label string) string {
	key := keyReplacer.Replace(strings.ToLower(strings.TrimSpace(label)))
	var b strings.Builder
	b.Grow(len(key))
	prevUnderscore := false
	for _, r := range key {
		if r == '_' {
			if prevUnderscore {
				continue
			}
			prevUnderscore = true
		} else {
			prevUnderscore = false
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "_")
}

// collapseSpace trims s and folds every whitespace run into one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
