package selection

import (
	"errors"
	"strconv"
	"strings"
)

// ActionDownload tags the buttons rendered under search results.
const ActionDownload = "dl"

const tokenSep = "|"

var (
	ErrInvalidSelection = errors.New("invalid selection")
	ErrUnknownAction    = errors.New("unknown callback action")
)

// Token is the payload of a result button: "<action>|<index>".
type Token struct {
	Action string
	Index  int
}

func DownloadToken(index int) Token {
	return Token{Action: ActionDownload, Index: index}
}

func (t Token) String() string {
	return t.Action + tokenSep + strconv.Itoa(t.Index)
}

// ParseToken decodes callback data. Data for another action yields
// ErrUnknownAction; a malformed download token yields ErrInvalidSelection.
func ParseToken(data string) (Token, error) {
	action, rest, found := strings.Cut(data, tokenSep)
	if action != ActionDownload {
		return Token{}, ErrUnknownAction
	}
	if !found {
		return Token{}, ErrInvalidSelection
	}
	index, err := strconv.Atoi(rest)
	if err != nil {
		return Token{}, ErrInvalidSelection
	}
	tok := Token{Action: action, Index: index}
	// Only the exact form we render is accepted ("dl|+1" and "dl|01" are not).
	if tok.String() != data {
		return Token{}, ErrInvalidSelection
	}
	return tok, nil
}
