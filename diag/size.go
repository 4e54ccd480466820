package diag

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// sizePrinter renders grouped-digit decimal numbers, the same "make large
// counts legible" role the teaching kernel's sizedump()/netdump() debug
// helpers play with hand-rolled comma insertion — done here with the
// ecosystem formatter instead. No other package in this core calls
// FormatBytes or FormatPages.
var sizePrinter = message.NewPrinter(language.English)

// FormatBytes renders n with grouped digits, e.g. "1,048,576".
func FormatBytes(n uint64) string {
	return sizePrinter.Sprintf("%v", number.Decimal(n))
}

// FormatPages renders a page count the same way.
func FormatPages(n uint32) string {
	return sizePrinter.Sprintf("%v", number.Decimal(n))
}
