package lexer

import (
	"errors"
	"slices"
	"testing"
)

// collect returns every token of src except EOF.
func collect(t *testing.T, src string) ([]Token, []*LexError) {
	t.Helper()
	lx := New([]byte(src))
	return slices.Collect(lx.All()), lx.Errors()
}

// texts returns the text of each token.
func texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Text
	}
	return out
}

func TestLexerTokenizesAssignment(t *testing.T) {
	t.Parallel()

	tokens, errs := collect(t, "Py_TYPE(obj) = t;")
	if len(errs) != 0 {
		t.Fatalf("unexpected lex errors: %v", errs)
	}

	expected := []Token{
		{Kind: Identifier, Text: "Py_TYPE", Line: 1, Col: 1, Offset: 0},
		{Kind: Punct, Text: "(", Line: 1, Col: 8, Offset: 7},
		{Kind: Identifier, Text: "obj", Line: 1, Col: 9, Offset: 8},
		{Kind: Punct, Text: ")", Line: 1, Col: 12, Offset: 11},
		{Kind: Punct, Text: "=", Line: 1, Col: 14, Offset: 13},
		{Kind: Identifier, Text: "t", Line: 1, Col: 16, Offset: 15},
		{Kind: Punct, Text: ";", Line: 1, Col: 17, Offset: 16},
	}
	if !slices.Equal(tokens, expected) {
		t.Errorf("got %v, expected %v", tokens, expected)
	}
}

func TestLexerSkipsCommentsAndLiterals(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		src      string
		expected []string
		kinds    []Kind
	}{
		{
			name:     "line comment",
			src:      "// Py_TYPE(obj) = t;\nz",
			expected: []string{"z"},
			kinds:    []Kind{Identifier},
		},
		{
			name:     "block comment",
			src:      "/* Py_TYPE(obj) = t; */b",
			expected: []string{"b"},
			kinds:    []Kind{Identifier},
		},
		{
			name:     "line comment continued by backslash",
			src:      "// first \\\n Py_TYPE(o) = t;\nx",
			expected: []string{"x"},
			kinds:    []Kind{Identifier},
		},
		{
			name:     "string literal",
			src:      `s = "Py_TYPE(x) = y";`,
			expected: []string{"s", "=", `"Py_TYPE(x) = y"`, ";"},
			kinds:    []Kind{Identifier, Punct, Literal, Punct},
		},
		{
			name:     "escaped quote in string",
			src:      `"a\"b" c`,
			expected: []string{`"a\"b"`, "c"},
			kinds:    []Kind{Literal, Identifier},
		},
		{
			name:     "character literal holding a parenthesis",
			src:      `f(')')`,
			expected: []string{"f", "(", "')'", ")"},
			kinds:    []Kind{Identifier, Punct, Literal, Punct},
		},
		{
			name:     "wide string prefix",
			src:      `L"abc" u8"x" U'c'`,
			expected: []string{`L"abc"`, `u8"x"`, `U'c'`},
			kinds:    []Kind{Literal, Literal, Literal},
		},
		{
			name:     "raw string",
			src:      `R"x(a)" b)x" c`,
			expected: []string{`R"x(a)" b)x"`, "c"},
			kinds:    []Kind{Literal, Identifier},
		},
		{
			name:     "numbers",
			src:      "1.5e+10f 0x1F .5 1'000",
			expected: []string{"1.5e+10f", "0x1F", ".5", "1'000"},
			kinds:    []Kind{Literal, Literal, Literal, Literal},
		},
		{
			name:     "stray characters",
			src:      "a @ b",
			expected: []string{"a", "@", "b"},
			kinds:    []Kind{Identifier, Other, Identifier},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tokens, errs := collect(t, tc.src)
			if len(errs) != 0 {
				t.Fatalf("unexpected lex errors: %v", errs)
			}
			if got := texts(tokens); !slices.Equal(got, tc.expected) {
				t.Fatalf("got %q, expected %q", got, tc.expected)
			}
			for i, tok := range tokens {
				if tok.Kind != tc.kinds[i] {
					t.Errorf("token %d (%q): got kind %s, expected %s", i, tok.Text, tok.Kind, tc.kinds[i])
				}
			}
		})
	}
}

func TestLexerLongestMatchPunctuators(t *testing.T) {
	t.Parallel()

	tokens, _ := collect(t, "a<<=b==c!=d>=e<=f->g++ ... h&=i&&j")
	expected := []string{
		"a", "<<=", "b", "==", "c", "!=", "d", ">=", "e", "<=", "f", "->", "g", "++",
		"...", "h", "&=", "i", "&&", "j",
	}
	if got := texts(tokens); !slices.Equal(got, expected) {
		t.Errorf("got %q, expected %q", got, expected)
	}
}

func TestLexerPositions(t *testing.T) {
	t.Parallel()

	t.Run("line continuation in directive", func(t *testing.T) {
		t.Parallel()

		tokens, _ := collect(t, "#define X \\\n  Py_TYPE(o) = t")
		idx := slices.IndexFunc(tokens, func(tok Token) bool { return tok.Text == "Py_TYPE" })
		if idx < 0 {
			t.Fatal("expected Py_TYPE token")
		}
		if tokens[idx].Line != 2 || tokens[idx].Col != 3 {
			t.Errorf("got %d:%d, expected 2:3", tokens[idx].Line, tokens[idx].Col)
		}
	})

	t.Run("columns count runes", func(t *testing.T) {
		t.Parallel()

		tokens, _ := collect(t, "/* ü */x")
		if len(tokens) != 1 {
			t.Fatalf("expected 1 token, got %d", len(tokens))
		}
		if tokens[0].Col != 8 {
			t.Errorf("expected column 8, got %d", tokens[0].Col)
		}
	})

	t.Run("crlf line endings", func(t *testing.T) {
		t.Parallel()

		tokens, _ := collect(t, "a\r\nb")
		if tokens[1].Line != 2 || tokens[1].Col != 1 {
			t.Errorf("got %d:%d, expected 2:1", tokens[1].Line, tokens[1].Col)
		}
	})
}

func TestLexerRecoversFromErrors(t *testing.T) {
	t.Parallel()

	t.Run("unterminated string resumes on next line", func(t *testing.T) {
		t.Parallel()

		tokens, errs := collect(t, "\"abc\nPy_TYPE(x) = y;")
		if len(errs) != 1 {
			t.Fatalf("expected 1 lex error, got %d", len(errs))
		}
		if !errors.Is(errs[0], ErrUnterminated) {
			t.Errorf("expected ErrUnterminated, got %v", errs[0])
		}
		if errs[0].Line != 1 || errs[0].Col != 1 {
			t.Errorf("got error at %d:%d, expected 1:1", errs[0].Line, errs[0].Col)
		}
		expected := []string{`"abc`, "Py_TYPE", "(", "x", ")", "=", "y", ";"}
		if got := texts(tokens); !slices.Equal(got, expected) {
			t.Errorf("got %q, expected %q", got, expected)
		}
	})

	t.Run("unterminated character literal", func(t *testing.T) {
		t.Parallel()

		_, errs := collect(t, "#error don't\nx")
		if len(errs) != 1 {
			t.Fatalf("expected 1 lex error, got %d", len(errs))
		}
		if errs[0].Msg != "unterminated character literal" {
			t.Errorf("unexpected message %q", errs[0].Msg)
		}
	})

	t.Run("unterminated comment resumes on next line", func(t *testing.T) {
		t.Parallel()

		tokens, errs := collect(t, "a /* oops\nb = c;")
		if len(errs) != 1 {
			t.Fatalf("expected 1 lex error, got %d", len(errs))
		}
		if errs[0].Line != 1 || errs[0].Col != 3 {
			t.Errorf("got error at %d:%d, expected 1:3", errs[0].Line, errs[0].Col)
		}
		expected := []string{"a", "b", "=", "c", ";"}
		if got := texts(tokens); !slices.Equal(got, expected) {
			t.Errorf("got %q, expected %q", got, expected)
		}
	})
}

func TestLexerIsRestartable(t *testing.T) {
	t.Parallel()

	lx := New([]byte("x = Py_SIZE(o); /* c */ \"s\""))
	first := slices.Collect(lx.All())
	second := slices.Collect(lx.All())
	if !slices.Equal(first, second) {
		t.Errorf("restart produced different tokens: %v vs %v", first, second)
	}

	lx.Reset()
	for range len(first) {
		lx.Next()
	}
	for range 3 {
		if tok := lx.Next(); tok.Kind != EOF {
			t.Errorf("expected EOF after exhaustion, got %v", tok)
		}
	}
}

func TestIsKeyword(t *testing.T) {
	t.Parallel()

	if !IsKeyword("return") {
		t.Error("expected return to be a keyword")
	}
	if IsKeyword("Py_TYPE") {
		t.Error("expected Py_TYPE not to be a keyword")
	}
}

func TestModeFor(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		expected Mode
	}{
		{name: "src/obj.c", expected: ModeC},
		{name: "include/obj.h", expected: ModeC},
		{name: "mod.pyx", expected: ModeCython},
		{name: "mod.PXD", expected: ModeCython},
		{name: "defs.pxi", expected: ModeCython},
		{name: "pkg-1.0.tar.gz!pkg/_speedups.pyx", expected: ModeCython},
		{name: "Makefile", expected: ModeC},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ModeFor(tc.name); got != tc.expected {
				t.Errorf("ModeFor(%q) = %v, expected %v", tc.name, got, tc.expected)
			}
		})
	}
}

func TestLexerCythonMode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		src      string
		expected []string
	}{
		{
			name:     "hash comment with apostrophe",
			src:      "# Py_TYPE(obj) = new_type  -- don't do this\nx = 1",
			expected: []string{"x", "=", "1"},
		},
		{
			name:     "trailing hash comment",
			src:      "y = Py_SIZE(o)  # Py_SIZE(o) = 3\n",
			expected: []string{"y", "=", "Py_SIZE", "(", "o", ")"},
		},
		{
			name:     "single quoted string",
			src:      "s = 'Py_TYPE(o) = t'",
			expected: []string{"s", "=", "'Py_TYPE(o) = t'"},
		},
		{
			name:     "triple quoted docstring spans lines",
			src:      "\"\"\"Never write\nPy_TYPE(o) = t\nin C code.\"\"\"\nz",
			expected: []string{"\"\"\"Never write\nPy_TYPE(o) = t\nin C code.\"\"\"", "z"},
		},
		{
			name:     "triple single quotes with embedded quote",
			src:      "'''it's Py_SIZE(o) = 1'''",
			expected: []string{"'''it's Py_SIZE(o) = 1'''"},
		},
		{
			name:     "prefixed strings",
			src:      "a = rb'\\d' + f\"{Py_SIZE}\" + u''",
			expected: []string{"a", "=", "rb'\\d'", "+", "f\"{Py_SIZE}\"", "+", "u''"},
		},
		{
			name:     "floor division is not a comment",
			src:      "n = a // Py_SIZE(o)",
			expected: []string{"n", "=", "a", "/", "/", "Py_SIZE", "(", "o", ")"},
		},
		{
			name:     "address of stays a token",
			src:      "cdef object* p = &PyTuple_GET_ITEM(t, 0)",
			expected: []string{"cdef", "object", "*", "p", "=", "&", "PyTuple_GET_ITEM", "(", "t", ",", "0", ")"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			lx := New([]byte(tc.src), WithMode(ModeCython))
			tokens := slices.Collect(lx.All())
			if errs := lx.Errors(); len(errs) != 0 {
				t.Fatalf("unexpected lex errors: %v", errs)
			}
			if got := texts(tokens); !slices.Equal(got, tc.expected) {
				t.Errorf("got %q, expected %q", got, tc.expected)
			}
		})
	}

	t.Run("unterminated triple quoted string resumes on next line", func(t *testing.T) {
		t.Parallel()

		lx := New([]byte("'''open\nPy_TYPE(o) = t"), WithMode(ModeCython))
		tokens := slices.Collect(lx.All())
		errs := lx.Errors()
		if len(errs) != 1 || !errors.Is(errs[0], ErrUnterminated) {
			t.Fatalf("expected 1 unterminated error, got %v", errs)
		}
		expected := []string{"'''open", "Py_TYPE", "(", "o", ")", "=", "t"}
		if got := texts(tokens); !slices.Equal(got, expected) {
			t.Errorf("got %q, expected %q", got, expected)
		}
	})

	t.Run("C mode still treats hash as a token", func(t *testing.T) {
		t.Parallel()

		tokens, _ := collect(t, "#define X 1")
		if len(tokens) == 0 || tokens[0].Text != "#" {
			t.Errorf("expected leading # token, got %v", tokens)
		}
	})
}
