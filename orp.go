package main

import "unicode/utf8"

// orpIndex returns the rune index of the optimal recognition point, the
// letter the eye should fixate on.
func orpIndex(word string) int {
	length := utf8.RuneCountInString(word)
	if length <= 1 {
		return 0
	} else if length <= 5 {
		return 1
	}
	return length / 3
}

// splitORP splits word around its recognition point.
func splitORP(word string) (before, focus, after string) {
	runes := []rune(word)
	if len(runes) == 0 {
		return "", "", ""
	}
	orp := orpIndex(word)
	return string(runes[:orp]), string(runes[orp]), string(runes[orp+1:])
}
