package migrate

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"user-service/internal/store"
)

var directiveRe = regexp.MustCompile(`(?i)^--\s*\+migrate\b(.*)$`)

// ParseSQL builds a unit from the contents of a unit file. Sections start at
// "-- +migrate Up" and "-- +migrate Down" lines; anything before the first
// directive is ignored. A section with no statements leaves that operation
// nil. Text between "-- +migrate StatementBegin" and "-- +migrate
// StatementEnd" is sent to the database as a single statement.
func ParseSQL(name string, src []byte) (Unit, error) {
	sections := map[Direction]*section{}
	var current *section

	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()

		m := directiveRe.FindStringSubmatch(strings.TrimSpace(text))
		if m == nil {
			if current != nil {
				current.buf.WriteString(text)
				current.buf.WriteByte('\n')
			}
			continue
		}

		fields := strings.Fields(m[1])
		if len(fields) != 1 {
			return Unit{}, fmt.Errorf("line %d: malformed directive %q", line, text)
		}

		switch strings.ToLower(fields[0]) {
		case "statementbegin":
			if current == nil {
				return Unit{}, fmt.Errorf("line %d: StatementBegin outside a section", line)
			}
			if current.inBlock {
				return Unit{}, fmt.Errorf("line %d: StatementBegin inside a statement block", line)
			}
			current.flush()
			current.inBlock = true
			continue
		case "statementend":
			if current == nil || !current.inBlock {
				return Unit{}, fmt.Errorf("line %d: StatementEnd without StatementBegin", line)
			}
			current.flush()
			current.inBlock = false
			continue
		}

		d, err := ParseDirection(strings.ToLower(fields[0]))
		if err != nil {
			return Unit{}, fmt.Errorf("line %d: unknown section %q", line, fields[0])
		}
		if _, dup := sections[d]; dup {
			return Unit{}, fmt.Errorf("line %d: section %s declared twice", line, d)
		}
		if current != nil && current.inBlock {
			return Unit{}, fmt.Errorf("line %d: unterminated StatementBegin", line)
		}
		if current != nil {
			current.flush()
		}
		current = &section{}
		sections[d] = current
	}
	if err := scanner.Err(); err != nil {
		return Unit{}, err
	}
	if current != nil {
		if current.inBlock {
			return Unit{}, fmt.Errorf("line %d: unterminated StatementBegin", line)
		}
		current.flush()
	}

	u := Unit{Name: name}
	if sec, ok := sections[Up]; ok {
		u.Up = statements(sec.stmts)
	}
	if sec, ok := sections[Down]; ok {
		u.Down = statements(sec.stmts)
	}
	return u, nil
}

// section collects the statements of one direction while a file is parsed.
type section struct {
	stmts   []string
	buf     strings.Builder
	inBlock bool
}

func (s *section) flush() {
	text := s.buf.String()
	s.buf.Reset()
	if s.inBlock {
		if stmt := strings.TrimSpace(text); stmt != "" {
			s.stmts = append(s.stmts, stmt)
		}
		return
	}
	s.stmts = append(s.stmts, splitStatements(text)...)
}

// statements returns an operation that executes stmts in order and stops at
// the first failure.
func statements(stmts []string) Operation {
	if len(stmts) == 0 {
		return nil
	}
	return func(ctx context.Context, tx store.Execer) error {
		for i, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return nil
	}
}

// splitStatements cuts src on semicolons that are not inside quotes,
// comments, or the BEGIN ... END body of a CREATE TRIGGER. Comments are
// dropped.
func splitStatements(src string) []string {
	var (
		stmts []string
		cur   strings.Builder
		head  []string
		// open CASE expressions plus an open trigger body
		depth int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
		head = head[:0]
		depth = 0
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				i = len(src)
				continue
			}
			i += end + 3
			cur.WriteByte(' ')
		case c == '\'' || c == '"' || c == '`':
			j := i + 1
			for j < len(src) {
				if src[j] == c {
					// doubled quote is an escaped quote
					if j+1 < len(src) && src[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			end := min(j+1, len(src))
			cur.WriteString(src[i:end])
			i = end - 1
		case isWordByte(c):
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}
			word := strings.ToUpper(src[i:j])
			cur.WriteString(src[i:j])
			i = j - 1

			if len(head) < 3 {
				head = append(head, word)
			}
			switch word {
			case "BEGIN":
				if isTrigger(head) {
					depth++
				}
			case "CASE":
				depth++
			case "END":
				if depth > 0 {
					depth--
				}
			}
		case c == ';':
			if depth > 0 {
				cur.WriteByte(c)
				continue
			}
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return stmts
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// isTrigger reports whether the leading keywords of a statement open a
// CREATE [TEMP|TEMPORARY] TRIGGER.
func isTrigger(head []string) bool {
	if len(head) < 2 || head[0] != "CREATE" {
		return false
	}
	if head[1] == "TRIGGER" {
		return true
	}
	return len(head) > 2 && (head[1] == "TEMP" || head[1] == "TEMPORARY") && head[2] == "TRIGGER"
}
