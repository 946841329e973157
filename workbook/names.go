package workbook

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const maxSheetNameLength = 31

const forbiddenSheetNameChars = `:\/?*[]`

// ValidateSheetName enforces spec.md §4.3's create_sheet rules: non-blank,
// at most 31 characters, none of : \ / ? * [ ], and no leading or trailing
// apostrophe.
func ValidateSheetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &InvalidSheetNameError{Name: name, Reason: "must not be blank"}
	}
	if len([]rune(name)) > maxSheetNameLength {
		return &InvalidSheetNameError{Name: name, Reason: "must be 31 characters or fewer"}
	}
	if strings.ContainsAny(name, forbiddenSheetNameChars) {
		return &InvalidSheetNameError{Name: name, Reason: "must not contain : \\ / ? * [ ]"}
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return &InvalidSheetNameError{Name: name, Reason: "must not start or end with an apostrophe"}
	}
	return nil
}

// normalizedSheetKey returns the case-insensitive, Unicode-NFKC-normalized
// key used to detect sheet name collisions.
func normalizedSheetKey(name string) string {
	return strings.ToLower(norm.NFKC.String(name))
}
