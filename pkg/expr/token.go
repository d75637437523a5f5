package expr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenTrue
	tokenFalse
	tokenNull
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenLBrace
	tokenRBrace
	tokenDot
	tokenComma
	tokenColon
	tokenNot
	tokenAnd
	tokenOr
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenPercent
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of expression"
	case tokenIdent:
		return "identifier"
	case tokenNumber:
		return "number"
	case tokenString:
		return "string"
	case tokenTrue:
		return "true"
	case tokenFalse:
		return "false"
	case tokenNull:
		return "null"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	case tokenLBracket:
		return "'['"
	case tokenRBracket:
		return "']'"
	case tokenLBrace:
		return "'{'"
	case tokenRBrace:
		return "'}'"
	case tokenDot:
		return "'.'"
	case tokenComma:
		return "','"
	case tokenColon:
		return "':'"
	case tokenNot:
		return "'!'"
	case tokenAnd:
		return "'&&'"
	case tokenOr:
		return "'||'"
	case tokenEq:
		return "'=='"
	case tokenNeq:
		return "'!='"
	case tokenLt:
		return "'<'"
	case tokenLte:
		return "'<='"
	case tokenGt:
		return "'>'"
	case tokenGte:
		return "'>='"
	case tokenPlus:
		return "'+'"
	case tokenMinus:
		return "'-'"
	case tokenStar:
		return "'*'"
	case tokenSlash:
		return "'/'"
	case tokenPercent:
		return "'%'"
	default:
		return "unknown token"
	}
}

// token is one lexical unit. pos is the 1-based byte offset of its first
// character in the source.
type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]tokenKind{
	"true":  tokenTrue,
	"false": tokenFalse,
	"null":  tokenNull,
}

// lex splits src into tokens, ending with a tokenEOF entry. Line comments
// starting with // run to end of line.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '(':
			toks = append(toks, token{tokenLParen, "(", i + 1})
			i++
		case c == ')':
			toks = append(toks, token{tokenRParen, ")", i + 1})
			i++
		case c == '[':
			toks = append(toks, token{tokenLBracket, "[", i + 1})
			i++
		case c == ']':
			toks = append(toks, token{tokenRBracket, "]", i + 1})
			i++
		case c == '{':
			toks = append(toks, token{tokenLBrace, "{", i + 1})
			i++
		case c == '}':
			toks = append(toks, token{tokenRBrace, "}", i + 1})
			i++
		case c == '.':
			toks = append(toks, token{tokenDot, ".", i + 1})
			i++
		case c == ',':
			toks = append(toks, token{tokenComma, ",", i + 1})
			i++
		case c == ':':
			toks = append(toks, token{tokenColon, ":", i + 1})
			i++
		case c == '+':
			toks = append(toks, token{tokenPlus, "+", i + 1})
			i++
		case c == '-':
			toks = append(toks, token{tokenMinus, "-", i + 1})
			i++
		case c == '*':
			toks = append(toks, token{tokenStar, "*", i + 1})
			i++
		case c == '/':
			toks = append(toks, token{tokenSlash, "/", i + 1})
			i++
		case c == '%':
			toks = append(toks, token{tokenPercent, "%", i + 1})
			i++
		case c == '&':
			if i+1 >= len(src) || src[i+1] != '&' {
				return nil, parseErrf(i+1, "expected '&&'")
			}
			toks = append(toks, token{tokenAnd, "&&", i + 1})
			i += 2
		case c == '|':
			if i+1 >= len(src) || src[i+1] != '|' {
				return nil, parseErrf(i+1, "expected '||'")
			}
			toks = append(toks, token{tokenOr, "||", i + 1})
			i += 2
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{tokenNeq, "!=", i + 1})
				i += 2
			} else {
				toks = append(toks, token{tokenNot, "!", i + 1})
				i++
			}
		case c == '=':
			if i+1 >= len(src) || src[i+1] != '=' {
				return nil, parseErrf(i+1, "expected '==', assignment is not supported")
			}
			toks = append(toks, token{tokenEq, "==", i + 1})
			i += 2
		case c == '<':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{tokenLte, "<=", i + 1})
				i += 2
			} else {
				toks = append(toks, token{tokenLt, "<", i + 1})
				i++
			}
		case c == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{tokenGte, ">=", i + 1})
				i += 2
			} else {
				toks = append(toks, token{tokenGt, ">", i + 1})
				i++
			}
		case c == '"' || c == '\'':
			lit, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokenString, lit, i + 1})
			i = next
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			if i < len(src) && src[i] == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9' {
				i++
				for i < len(src) && src[i] >= '0' && src[i] <= '9' {
					i++
				}
			}
			toks = append(toks, token{tokenNumber, src[start:i], start + 1})
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			word := src[start:i]
			if kw, ok := keywords[word]; ok {
				toks = append(toks, token{kw, word, start + 1})
			} else {
				toks = append(toks, token{tokenIdent, word, start + 1})
			}
		default:
			r, _ := utf8.DecodeRuneInString(src[i:])
			return nil, parseErrf(i+1, "unexpected character %q", r)
		}
	}
	toks = append(toks, token{tokenEOF, "", len(src) + 1})
	return toks, nil
}

// lexString consumes a quoted literal starting at src[start] and returns the
// unescaped text and the offset just past the closing quote.
func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var sb strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch c {
		case quote:
			return sb.String(), i + 1, nil
		case '\\':
			if i+1 >= len(src) {
				return "", 0, parseErrf(start+1, "unterminated string")
			}
			esc := src[i+1]
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			default:
				return "", 0, parseErrf(i+1, "unknown escape sequence \\%c", esc)
			}
			i += 2
		case '\n':
			return "", 0, parseErrf(start+1, "unterminated string")
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", 0, parseErrf(start+1, "unterminated string")
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
