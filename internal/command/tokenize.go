package command

import "strings"

// Tokenize splits a line on whitespace. Single quotes group text literally;
// double quotes group text and honour backslash escapes; a backslash outside
// quotes escapes the next rune. An empty quoted string yields an empty token.
func Tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		inToken bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				current.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inToken = true
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, &ParseError{Token: string(quote), Reason: "unterminated quote"}
	}
	if escaped {
		return nil, &ParseError{Token: `\`, Reason: "dangling escape at end of line"}
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}
