package input

// punctKeysyms maps punctuation characters to the X11 keysym names the
// synthetic-input tool expects. Letters and digits pass through verbatim and
// are not listed.
var punctKeysyms = map[rune]string{
	' ':  "space",
	';':  "semicolon",
	'?':  "question",
	'!':  "exclam",
	':':  "colon",
	'"':  "quotedbl",
	'\'': "apostrophe",
	'>':  "greater",
	'<':  "less",
	'|':  "bar",
	'\\': "backslash",
	'/':  "slash",
	'[':  "bracketleft",
	']':  "bracketright",
	'{':  "braceleft",
	'}':  "braceright",
	'(':  "parenleft",
	')':  "parenright",
	'+':  "plus",
	'-':  "minus",
	'=':  "equal",
	'_':  "underscore",
	',':  "comma",
	'.':  "period",
	'^':  "asciicircum",
	'~':  "asciitilde",
	'@':  "at",
	'#':  "numbersign",
	'$':  "dollar",
	'%':  "percent",
	'&':  "ampersand",
	'*':  "asterisk",
}

// namedKeysyms maps decoded control keys to keysym names.
var namedKeysyms = map[KeyCode]string{
	KeyEnter:     "Return",
	KeyEsc:       "Escape",
	KeyBackspace: "BackSpace",
	KeyTab:       "Tab",
	KeyDelete:    "Delete",
	KeyHome:      "Home",
	KeyEnd:       "End",
	KeyPageUp:    "Page_Up",
	KeyPageDown:  "Page_Down",
	KeyUp:        "Up",
	KeyDown:      "Down",
	KeyLeft:      "Left",
	KeyRight:     "Right",
}
