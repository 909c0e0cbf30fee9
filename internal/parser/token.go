package parser

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Literals
	TokenIdentifier TokenType = iota
	TokenNumber               // integer or float literal
	TokenString               // 'single-quoted string'

	// Keywords
	TokenSELECT
	TokenFROM
	TokenWHERE
	TokenINSERT
	TokenINTO
	TokenVALUES
	TokenCREATE
	TokenTABLE
	TokenMATERIALIZED
	TokenVIEW
	TokenINDEX
	TokenON
	TokenREFRESH
	TokenWITH
	TokenNO
	TokenDATA
	TokenAS
	TokenAND
	TokenOR
	TokenNOT
	TokenDROP
	TokenSHOW
	TokenTABLES
	TokenIF
	TokenEXISTS
	TokenTRUE
	TokenFALSE

	// Operators and punctuation
	TokenLParen    // (
	TokenRParen    // )
	TokenComma     // ,
	TokenStar      // *
	TokenEQ        // =
	TokenNEQ       // != or <>
	TokenLT        // <
	TokenGT        // >
	TokenLTE       // <=
	TokenGTE       // >=
	TokenPlus      // +
	TokenMinus     // -
	TokenSlash     // /
	TokenSemicolon // ;

	TokenEOF
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Col     int
}

var keywords = map[string]TokenType{
	"SELECT":       TokenSELECT,
	"FROM":         TokenFROM,
	"WHERE":        TokenWHERE,
	"INSERT":       TokenINSERT,
	"INTO":         TokenINTO,
	"VALUES":       TokenVALUES,
	"CREATE":       TokenCREATE,
	"TABLE":        TokenTABLE,
	"MATERIALIZED": TokenMATERIALIZED,
	"VIEW":         TokenVIEW,
	"INDEX":        TokenINDEX,
	"ON":           TokenON,
	"REFRESH":      TokenREFRESH,
	"WITH":         TokenWITH,
	"NO":           TokenNO,
	"DATA":         TokenDATA,
	"AS":           TokenAS,
	"AND":          TokenAND,
	"OR":           TokenOR,
	"NOT":          TokenNOT,
	"DROP":         TokenDROP,
	"SHOW":         TokenSHOW,
	"TABLES":       TokenTABLES,
	"IF":           TokenIF,
	"EXISTS":       TokenEXISTS,
	"TRUE":         TokenTRUE,
	"FALSE":        TokenFALSE,
}

// LookupKeyword returns the keyword token type for an identifier, or TokenIdentifier.
func LookupKeyword(ident string) TokenType {
	// Case-insensitive lookup
	upper := toUpper(ident)
	if tt, ok := keywords[upper]; ok {
		return tt
	}
	return TokenIdentifier
}

func toUpper(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		} else {
			b[i] = c
		}
	}
	return string(b)
}
