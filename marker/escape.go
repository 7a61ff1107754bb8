package marker

import "strings"

var unescaper = strings.NewReplacer(
	"'%0D'", "\r",
	"%0D", "\r",
	"'%0A'", "\n",
	"%0A", "\n",
	"'%25'", "%",
	"%25", "%",
)

var escaper = strings.NewReplacer(
	"%", "%25",
	"\n", "%0A",
	"\r", "%0D",
)

// Unescape decodes a multi-line value. The quoted forms are what batch
// scripts produce.
func Unescape(v string) string {
	return unescaper.Replace(v)
}

// Escape encodes a value so it fits on one line. Unescape(Escape(v)) == v.
func Escape(v string) string {
	return escaper.Replace(v)
}
