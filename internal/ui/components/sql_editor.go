package components

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/0xataru/dfox/internal/ui/theme"
	"github.com/charmbracelet/lipgloss"
)

// EditorBuffer is the text of the SQL editor and its cursor. It is a value:
// every edit returns a new buffer and never touches the receiver's lines.
// Columns count runes.
type EditorBuffer struct {
	lines []string
	row   int
	col   int
}

// NewEditorBuffer returns a buffer holding text with the cursor at its end
func NewEditorBuffer(text string) EditorBuffer {
	b := EditorBuffer{lines: strings.Split(text, "\n")}
	b.row = len(b.lines) - 1
	b.col = len([]rune(b.lines[b.row]))
	return b
}

func (b EditorBuffer) norm() EditorBuffer {
	if len(b.lines) == 0 {
		b.lines = []string{""}
		b.row, b.col = 0, 0
	}
	return b
}

// Text returns the full content
func (b EditorBuffer) Text() string {
	return strings.Join(b.norm().lines, "\n")
}

// Lines returns the content lines
func (b EditorBuffer) Lines() []string {
	return b.norm().lines
}

// Cursor returns the cursor row and rune column
func (b EditorBuffer) Cursor() (int, int) {
	return b.row, b.col
}

// IsBlank reports whether the buffer holds only whitespace
func (b EditorBuffer) IsBlank() bool {
	return strings.TrimSpace(b.Text()) == ""
}

func (b EditorBuffer) line() []rune {
	return []rune(b.lines[b.row])
}

// cow copies the line slice before an edit
func (b EditorBuffer) cow() EditorBuffer {
	b = b.norm()
	b.lines = append([]string(nil), b.lines...)
	return b
}

// Insert types runes at the cursor. Newlines split the line.
func (b EditorBuffer) Insert(runes []rune) EditorBuffer {
	b = b.cow()
	for _, r := range runes {
		switch r {
		case '\r':
			continue
		case '\n':
			b = b.newline()
		default:
			line := b.line()
			line = append(line[:b.col:b.col], append([]rune{r}, line[b.col:]...)...)
			b.lines[b.row] = string(line)
			b.col++
		}
	}
	return b
}

// Newline splits the line at the cursor
func (b EditorBuffer) Newline() EditorBuffer {
	return b.cow().newline()
}

func (b EditorBuffer) newline() EditorBuffer {
	line := b.line()
	before, after := string(line[:b.col]), string(line[b.col:])

	lines := make([]string, 0, len(b.lines)+1)
	lines = append(lines, b.lines[:b.row]...)
	lines = append(lines, before, after)
	lines = append(lines, b.lines[b.row+1:]...)
	b.lines = lines
	b.row++
	b.col = 0
	return b
}

// Backspace deletes the rune before the cursor, joining lines at column 0
func (b EditorBuffer) Backspace() EditorBuffer {
	b = b.cow()
	if b.col > 0 {
		line := b.line()
		b.lines[b.row] = string(append(line[:b.col-1:b.col-1], line[b.col:]...))
		b.col--
		return b
	}
	if b.row == 0 {
		return b
	}
	prev := b.lines[b.row-1]
	b.col = len([]rune(prev))
	b.lines[b.row-1] = prev + b.lines[b.row]
	b.lines = append(b.lines[:b.row], b.lines[b.row+1:]...)
	b.row--
	return b
}

// Delete deletes the rune under the cursor, joining lines at line end
func (b EditorBuffer) Delete() EditorBuffer {
	b = b.cow()
	line := b.line()
	if b.col < len(line) {
		b.lines[b.row] = string(append(line[:b.col:b.col], line[b.col+1:]...))
		return b
	}
	if b.row < len(b.lines)-1 {
		b.lines[b.row] += b.lines[b.row+1]
		b.lines = append(b.lines[:b.row+1], b.lines[b.row+2:]...)
	}
	return b
}

// Left moves the cursor left, wrapping to the previous line
func (b EditorBuffer) Left() EditorBuffer {
	b = b.norm()
	if b.col > 0 {
		b.col--
	} else if b.row > 0 {
		b.row--
		b.col = len(b.line())
	}
	return b
}

// Right moves the cursor right, wrapping to the next line
func (b EditorBuffer) Right() EditorBuffer {
	b = b.norm()
	if b.col < len(b.line()) {
		b.col++
	} else if b.row < len(b.lines)-1 {
		b.row++
		b.col = 0
	}
	return b
}

// Up moves the cursor up, clamping the column
func (b EditorBuffer) Up() EditorBuffer {
	b = b.norm()
	if b.row > 0 {
		b.row--
		b.col = min(b.col, len(b.line()))
	}
	return b
}

// Down moves the cursor down, clamping the column
func (b EditorBuffer) Down() EditorBuffer {
	b = b.norm()
	if b.row < len(b.lines)-1 {
		b.row++
		b.col = min(b.col, len(b.line()))
	}
	return b
}

// Home moves to the start of the line
func (b EditorBuffer) Home() EditorBuffer {
	b = b.norm()
	b.col = 0
	return b
}

// End moves to the end of the line
func (b EditorBuffer) End() EditorBuffer {
	b = b.norm()
	b.col = len(b.line())
	return b
}

// SQL keywords for syntax highlighting
var sqlKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true,
	"INSERT": true, "INTO": true, "VALUES": true, "UPDATE": true, "SET": true,
	"DELETE": true, "CREATE": true, "TABLE": true, "DROP": true, "ALTER": true,
	"INDEX": true, "VIEW": true, "JOIN": true, "LEFT": true, "RIGHT": true,
	"INNER": true, "OUTER": true, "FULL": true, "ON": true, "AS": true,
	"ORDER": true, "BY": true, "GROUP": true, "HAVING": true, "LIMIT": true,
	"OFFSET": true, "UNION": true, "ALL": true, "DISTINCT": true, "CASE": true,
	"WHEN": true, "THEN": true, "ELSE": true, "END": true, "NULL": true,
	"NOT": true, "IN": true, "EXISTS": true, "BETWEEN": true, "LIKE": true,
	"IS": true, "TRUE": true, "FALSE": true, "ASC": true, "DESC": true,
	"PRIMARY": true, "KEY": true, "FOREIGN": true, "REFERENCES": true,
	"UNIQUE": true, "DEFAULT": true, "WITH": true, "RETURNING": true,
	"SHOW": true, "DESCRIBE": true, "EXPLAIN": true, "PRAGMA": true, "USE": true,
	"BEGIN": true, "COMMIT": true, "ROLLBACK": true, "COUNT": true,
}

// TokenType represents the type of a syntax token
type TokenType int

const (
	TokenText TokenType = iota
	TokenKeyword
	TokenString
	TokenNumber
	TokenComment
	TokenOperator
)

// Token represents a syntax-highlighted token
type Token struct {
	Type  TokenType
	Value string
}

// TokenizeLine splits one line into highlight tokens
func TokenizeLine(line string) []Token {
	var tokens []Token
	runes := []rune(line)
	i := 0

	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			start := i
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			tokens = append(tokens, Token{Type: TokenText, Value: string(runes[start:i])})

		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			tokens = append(tokens, Token{Type: TokenComment, Value: string(runes[i:])})
			i = len(runes)

		case r == '\'':
			start := i
			i++
			for i < len(runes) {
				if runes[i] == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			tokens = append(tokens, Token{Type: TokenString, Value: string(runes[start:i])})

		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, Token{Type: TokenNumber, Value: string(runes[start:i])})

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			word := string(runes[start:i])
			typ := TokenText
			if sqlKeywords[strings.ToUpper(word)] {
				typ = TokenKeyword
			}
			tokens = append(tokens, Token{Type: typ, Value: word})

		case strings.ContainsRune("=<>!+-*/%&|^~", r):
			start := i
			for i < len(runes) && strings.ContainsRune("=<>!+-*/%&|^~", runes[i]) {
				i++
			}
			tokens = append(tokens, Token{Type: TokenOperator, Value: string(runes[start:i])})

		default:
			tokens = append(tokens, Token{Type: TokenText, Value: string(r)})
			i++
		}
	}
	return tokens
}

// SQLEditor renders an EditorBuffer with line numbers and highlighting
type SQLEditor struct {
	Buffer  EditorBuffer
	Width   int
	Height  int
	Focused bool
	Theme   theme.Theme
}

func (e *SQLEditor) tokenStyle(t TokenType) lipgloss.Style {
	switch t {
	case TokenKeyword:
		return lipgloss.NewStyle().Foreground(e.Theme.Keyword).Bold(true)
	case TokenString:
		return lipgloss.NewStyle().Foreground(e.Theme.String)
	case TokenNumber:
		return lipgloss.NewStyle().Foreground(e.Theme.Number)
	case TokenComment:
		return lipgloss.NewStyle().Foreground(e.Theme.Comment).Italic(true)
	case TokenOperator:
		return lipgloss.NewStyle().Foreground(e.Theme.Operator)
	default:
		return lipgloss.NewStyle().Foreground(e.Theme.Foreground)
	}
}

// View renders the visible lines, scrolled to keep the cursor on screen
func (e *SQLEditor) View() string {
	height := e.Height
	if height < 1 {
		height = 1
	}
	lines := e.Buffer.Lines()
	row, _ := e.Buffer.Cursor()
	start, end := Window(row, height, len(lines))

	out := make([]string, 0, height)
	for i := start; i < end; i++ {
		out = append(out, e.renderLine(lines, i, i == row && e.Focused))
	}
	for len(out) < height {
		out = append(out, e.renderGutter(len(lines), "~"))
	}
	return strings.Join(out, "\n")
}

func (e *SQLEditor) renderGutter(total int, label string) string {
	width := len(fmt.Sprintf("%d", max(total, 10)))
	num := e.Theme.Faint().Render(fmt.Sprintf("%*s", width, label))
	return num + lipgloss.NewStyle().Foreground(e.Theme.Border).Render(" │ ")
}

func (e *SQLEditor) renderLine(lines []string, n int, hasCursor bool) string {
	gutter := e.renderGutter(len(lines), fmt.Sprintf("%d", n+1))
	tokens := TokenizeLine(lines[n])

	if !hasCursor {
		var b strings.Builder
		for _, tok := range tokens {
			b.WriteString(e.tokenStyle(tok.Type).Render(tok.Value))
		}
		return gutter + b.String()
	}

	_, col := e.Buffer.Cursor()
	cursorStyle := lipgloss.NewStyle().Foreground(e.Theme.Background).Background(e.Theme.Cursor)

	var b strings.Builder
	idx := 0
	for _, tok := range tokens {
		style := e.tokenStyle(tok.Type)
		for _, r := range tok.Value {
			if idx == col {
				b.WriteString(cursorStyle.Render(string(r)))
			} else {
				b.WriteString(style.Render(string(r)))
			}
			idx++
		}
	}
	if col >= idx {
		b.WriteString(cursorStyle.Render(" "))
	}
	return gutter + b.String()
}
