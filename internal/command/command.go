package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrEmpty           = errors.New("empty command")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

const namePrefix = "name "

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// Command is the result of parsing one utterance: exactly one of Name or
// Order is set.
type Command struct {
	Name  *NameDirective
	Order *Order
}

type NameDirective struct {
	Name string
}

type Order struct {
	Quantity int
	Phrase   string
}

// Parse interprets a normalized utterance. A leading "name " sets the
// customer; otherwise an optional leading quantity (digits or one..ten) is
// split from the item phrase.
func Parse(text string) (Command, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return Command{}, ErrEmpty
	}
	if strings.HasPrefix(s, namePrefix) {
		if name := strings.TrimSpace(s[len(namePrefix):]); name != "" {
			return Command{Name: &NameDirective{Name: name}}, nil
		}
	}

	head, rest, ok := splitHead(s)
	if ok {
		if isDigits(head) {
			q, err := strconv.Atoi(head)
			if err != nil || q <= 0 {
				return Command{}, fmt.Errorf("%w: %q", ErrInvalidQuantity, head)
			}
			return Command{Order: &Order{Quantity: q, Phrase: rest}}, nil
		}
		if q, found := numberWords[head]; found {
			return Command{Order: &Order{Quantity: q, Phrase: rest}}, nil
		}
	}
	return Command{Order: &Order{Quantity: 1, Phrase: s}}, nil
}

// splitHead splits at the first whitespace run; rest must be non-empty.
func splitHead(s string) (string, string, bool) {
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx <= 0 {
		return "", "", false
	}
	rest := strings.TrimSpace(s[idx:])
	if rest == "" {
		return "", "", false
	}
	return s[:idx], rest, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
