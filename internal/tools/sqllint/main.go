package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlMarkerPattern  = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}
	os.Exit(run(targets, os.Stderr))
}

// run lints every Go file under targets and reports violations to out.
// It returns the process exit code.
func run(targets []string, out io.Writer) int {
	l := &linter{markers: make(map[string]string)}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			fmt.Fprintf(out, "sqllint: %v\n", err)
			return 1
		}
		if info.IsDir() {
			walkErr := filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					if path != target && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor" || d.Name() == "testdata") {
						return filepath.SkipDir
					}
					return nil
				}
				if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
					return nil
				}
				return l.lintFile(path)
			})
			if walkErr != nil {
				fmt.Fprintf(out, "sqllint: %v\n", walkErr)
				return 1
			}
		} else if filepath.Ext(target) == ".go" {
			if err := l.lintFile(target); err != nil {
				fmt.Fprintf(out, "sqllint: %v\n", err)
				return 1
			}
		}
	}

	if len(l.violations) > 0 {
		fmt.Fprintln(out, "sqllint: SQL audit marker violations")
		for _, v := range l.violations {
			fmt.Fprintf(out, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
		}
		return 1
	}
	return 0
}

type linter struct {
	violations []violation
	// markers maps each marker seen so far to the statement that owns it.
	markers map[string]string
}

func (l *linter) lintFile(path string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			lits := stringLiterals(value)
			if len(lits) == 0 {
				continue
			}
			var text strings.Builder
			for _, lit := range lits {
				text.WriteString(lit.text)
			}
			if !sqlMarkerPattern.MatchString(text.String()) {
				continue
			}
			name := joinNames(vs.Names)
			if i < len(vs.Names) && vs.Names[i] != nil {
				name = vs.Names[i].Name
			}
			pos := fset.Position(value.Pos())
			report := func(msg string) {
				l.violations = append(l.violations, violation{file: path, line: pos.Line, name: name, message: msg})
			}

			// Only the leading literal can carry the marker; fragments
			// concatenated after it are not statements on their own.
			if lits[0].pos != value.Pos() {
				if isFragment(vs) {
					continue
				}
				report("statement must start with a --sql <uuid> literal")
				continue
			}
			marker := firstLine(lits[0].text)
			if !uuidMarkerPattern.MatchString(marker) {
				if isFragment(vs) {
					continue
				}
				report("missing or invalid --sql <uuid> marker")
				continue
			}
			where := fmt.Sprintf("%s:%d %s", path, pos.Line, name)
			if owner, dup := l.markers[marker]; dup {
				report("marker reused from " + owner)
				continue
			}
			l.markers[marker] = where
		}
		return true
	})
	return nil
}

type literal struct {
	pos  token.Pos
	text string
}

// stringLiterals flattens a string constant expression into its literal
// parts in source order. Identifiers in a concatenation are skipped.
func stringLiterals(expr ast.Expr) []literal {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind != token.STRING {
			return nil
		}
		raw, err := unquote(e.Value)
		if err != nil {
			return nil
		}
		return []literal{{pos: e.Pos(), text: raw}}
	case *ast.ParenExpr:
		return stringLiterals(e.X)
	case *ast.BinaryExpr:
		if e.Op != token.ADD {
			return nil
		}
		return append(stringLiterals(e.X), stringLiterals(e.Y)...)
	default:
		return nil
	}
}

// isFragment reports whether the declaration holds only unexported column lists and
// similar pieces that are only used inside full statements.
func isFragment(vs *ast.ValueSpec) bool {
	for _, n := range vs.Names {
		if n != nil && ast.IsExported(n.Name) {
			return false
		}
	}
	return true
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
