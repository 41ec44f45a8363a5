package decode

import "regexp"

var uidPattern = regexp.MustCompile(`_uid=(\d+)`)

// ExtractUID returns the digits of the first "_uid=<digits>" in decoded text.
func ExtractUID(out []byte) (string, bool) {
	m := uidPattern.FindSubmatch(out)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}
