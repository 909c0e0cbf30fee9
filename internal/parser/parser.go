package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser is a recursive descent SQL parser.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a parser from a slice of tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens, pos: 0}
}

// ParseSQL is a convenience function: lex + parse a SQL string.
func ParseSQL(sql string) (Statement, error) {
	lexer := NewLexer(sql)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, err
	}
	parser := NewParser(tokens)
	return parser.Parse()
}

// Parse parses the token stream into a statement.
func (p *Parser) Parse() (Statement, error) {
	var stmt Statement
	var err error

	switch p.peek().Type {
	case TokenCREATE:
		stmt, err = p.parseCreate()
	case TokenINSERT:
		stmt, err = p.parseInsert()
	case TokenSELECT:
		stmt, err = p.parseSelect()
	case TokenREFRESH:
		stmt, err = p.parseRefresh()
	case TokenDROP:
		stmt, err = p.parseDrop()
	case TokenSHOW:
		stmt, err = p.parseShow()
	default:
		return nil, p.errorf("unexpected token %q, expected a statement", p.peek().Literal)
	}
	if err != nil {
		return nil, err
	}

	p.match(TokenSemicolon)
	if p.peek().Type != TokenEOF {
		return nil, p.errorf("unexpected trailing token %q", p.peek().Literal)
	}
	return stmt, nil
}

// --- Token helpers ---

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(pos int) Token {
	if pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[pos]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.errorf("unexpected token %q", tok.Literal)
	}
	return tok, nil
}

func (p *Parser) expectKeyword(tt TokenType) error {
	_, err := p.expect(tt)
	return err
}

func (p *Parser) match(tt TokenType) bool {
	if p.peek().Type == tt {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	tok := p.peek()
	prefix := fmt.Sprintf("line %d col %d: ", tok.Line, tok.Col)
	return fmt.Errorf(prefix+format, args...)
}

// --- CREATE ---

func (p *Parser) parseCreate() (Statement, error) {
	switch p.peekAt(p.pos + 1).Type {
	case TokenMATERIALIZED:
		return p.parseCreateMaterializedView()
	case TokenINDEX:
		return p.parseCreateIndex()
	default:
		return p.parseCreateTable()
	}
}

func (p *Parser) parseCreateTable() (*CreateTableStmt, error) {
	if err := p.expectKeyword(TokenCREATE); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(TokenTABLE); err != nil {
		return nil, err
	}

	stmt := &CreateTableStmt{}

	if p.peek().Type == TokenIF {
		p.advance()
		if err := p.expectKeyword(TokenNOT); err != nil {
			return nil, err
		}
		if err := p.expectKeyword(TokenEXISTS); err != nil {
			return nil, err
		}
		stmt.IfNotExists = true
	}

	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	stmt.TableName = nameTok.Literal

	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	for {
		colName, err := p.expect(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		colType, err := p.expect(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, ColumnDefNode{
			Name:     colName.Literal,
			TypeName: colType.Literal,
		})
		if !p.match(TokenComma) {
			break
		}
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseCreateMaterializedView() (*CreateMaterializedViewStmt, error) {
	if err := p.expectKeyword(TokenCREATE); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(TokenMATERIALIZED); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(TokenVIEW); err != nil {
		return nil, err
	}

	stmt := &CreateMaterializedViewStmt{}

	if p.peek().Type == TokenIF {
		p.advance()
		if err := p.expectKeyword(TokenNOT); err != nil {
			return nil, err
		}
		if err := p.expectKeyword(TokenEXISTS); err != nil {
			return nil, err
		}
		stmt.IfNotExists = true
	}

	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	stmt.ViewName = nameTok.Literal

	if err := p.expectKeyword(TokenAS); err != nil {
		return nil, err
	}

	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	stmt.Select = sel

	noData, err := p.parseWithNoData()
	if err != nil {
		return nil, err
	}
	stmt.WithNoData = noData
	return stmt, nil
}

func (p *Parser) parseCreateIndex() (*CreateIndexStmt, error) {
	if err := p.expectKeyword(TokenCREATE); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(TokenINDEX); err != nil {
		return nil, err
	}

	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword(TokenON); err != nil {
		return nil, err
	}
	tableTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	colTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &CreateIndexStmt{
		IndexName: nameTok.Literal,
		TableName: tableTok.Literal,
		Column:    colTok.Literal,
	}, nil
}

// --- REFRESH ---

func (p *Parser) parseRefresh() (*RefreshMatViewStmt, error) {
	if err := p.expectKeyword(TokenREFRESH); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(TokenMATERIALIZED); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(TokenVIEW); err != nil {
		return nil, err
	}

	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}

	skipData, err := p.parseWithNoData()
	if err != nil {
		return nil, err
	}
	return &RefreshMatViewStmt{ViewName: nameTok.Literal, SkipData: skipData}, nil
}

// parseWithNoData consumes an optional trailing WITH NO DATA clause.
func (p *Parser) parseWithNoData() (bool, error) {
	if p.peek().Type != TokenWITH {
		return false, nil
	}
	p.advance()
	if err := p.expectKeyword(TokenNO); err != nil {
		return false, err
	}
	if err := p.expectKeyword(TokenDATA); err != nil {
		return false, err
	}
	return true, nil
}

// --- INSERT ---

func (p *Parser) parseInsert() (*InsertStmt, error) {
	if err := p.expectKeyword(TokenINSERT); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(TokenINTO); err != nil {
		return nil, err
	}

	stmt := &InsertStmt{}
	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	stmt.TableName = nameTok.Literal

	// Optional column list
	if p.peek().Type == TokenLParen {
		p.advance()
		for {
			colTok, err := p.expect(TokenIdentifier)
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, colTok.Literal)
			if !p.match(TokenComma) {
				break
			}
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword(TokenVALUES); err != nil {
		return nil, err
	}

	for {
		if _, err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		var row []Expression
		for {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			row = append(row, expr)
			if !p.match(TokenComma) {
				break
			}
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		stmt.Values = append(stmt.Values, row)
		if !p.match(TokenComma) {
			break
		}
	}
	return stmt, nil
}

// --- SELECT ---

func (p *Parser) parseSelect() (*SelectStmt, error) {
	if err := p.expectKeyword(TokenSELECT); err != nil {
		return nil, err
	}

	stmt := &SelectStmt{}
	for {
		se, err := p.parseSelectExpr()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, se)
		if !p.match(TokenComma) {
			break
		}
	}

	if p.match(TokenFROM) {
		fromTok, err := p.expect(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		stmt.From = fromTok.Literal
	}

	if p.match(TokenWHERE) {
		where, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

func (p *Parser) parseSelectExpr() (SelectExpr, error) {
	if p.peek().Type == TokenStar {
		p.advance()
		return SelectExpr{Expr: &StarExpr{}}, nil
	}
	expr, err := p.parseExpression()
	if err != nil {
		return SelectExpr{}, err
	}
	se := SelectExpr{Expr: expr}
	if p.match(TokenAS) {
		aliasTok, err := p.expect(TokenIdentifier)
		if err != nil {
			return SelectExpr{}, err
		}
		se.Alias = aliasTok.Literal
	}
	return se, nil
}

// --- DROP / SHOW ---

func (p *Parser) parseDrop() (*DropTableStmt, error) {
	if err := p.expectKeyword(TokenDROP); err != nil {
		return nil, err
	}

	stmt := &DropTableStmt{}
	if p.match(TokenMATERIALIZED) {
		if err := p.expectKeyword(TokenVIEW); err != nil {
			return nil, err
		}
		stmt.MatView = true
	} else if err := p.expectKeyword(TokenTABLE); err != nil {
		return nil, err
	}

	if p.peek().Type == TokenIF {
		p.advance()
		if err := p.expectKeyword(TokenEXISTS); err != nil {
			return nil, err
		}
		stmt.IfExists = true
	}

	nameTok, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}
	stmt.TableName = nameTok.Literal
	return stmt, nil
}

func (p *Parser) parseShow() (*ShowTablesStmt, error) {
	if err := p.expectKeyword(TokenSHOW); err != nil {
		return nil, err
	}
	if err := p.expectKeyword(TokenTABLES); err != nil {
		return nil, err
	}
	return &ShowTablesStmt{}, nil
}

// --- Expressions ---
// Precedence (loosest first): OR, AND, NOT, comparison, additive,
// multiplicative, unary, primary.

func (p *Parser) parseExpression() (Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match(TokenOR) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.match(TokenAND) {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expression, error) {
	if p.match(TokenNOT) {
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", Expr: expr}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	var op string
	switch p.peek().Type {
	case TokenEQ:
		op = "="
	case TokenNEQ:
		op = "!="
	case TokenLT:
		op = "<"
	case TokenGT:
		op = ">"
	case TokenLTE:
		op = "<="
	case TokenGTE:
		op = ">="
	default:
		return left, nil
	}
	p.advance()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().Type {
		case TokenPlus:
			op = "+"
		case TokenMinus:
			op = "-"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().Type {
		case TokenStar:
			op = "*"
		case TokenSlash:
			op = "/"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Expression, error) {
	if p.match(TokenMinus) {
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", Expr: expr}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expression, error) {
	tok := p.peek()
	switch tok.Type {
	case TokenNumber:
		p.advance()
		if strings.Contains(tok.Literal, ".") {
			f, err := strconv.ParseFloat(tok.Literal, 64)
			if err != nil {
				return nil, p.errorf("invalid number %q", tok.Literal)
			}
			return &LiteralExpr{Value: f}, nil
		}
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", tok.Literal)
		}
		return &LiteralExpr{Value: n}, nil
	case TokenString:
		p.advance()
		return &LiteralExpr{Value: tok.Literal}, nil
	case TokenTRUE:
		p.advance()
		return &LiteralExpr{Value: true}, nil
	case TokenFALSE:
		p.advance()
		return &LiteralExpr{Value: false}, nil
	case TokenIdentifier:
		p.advance()
		return &ColumnRef{Name: tok.Literal}, nil
	case TokenLParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, p.errorf("unexpected token %q in expression", tok.Literal)
	}
}
