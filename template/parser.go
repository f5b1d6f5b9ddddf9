package template

import (
	"strings"
)

const (
	// openDelimiter starts a tag.
	openDelimiter = "<#"
	// closeDelimiter ends a tag.
	closeDelimiter = "#>"
)

// span is a raw piece of template text, either inside a tag (with delimiters stripped) or outside of one.
type span struct {
	tagged bool
	text   string
}

// literalEscaper escapes template text so it can be emitted inside a Go interpreted string literal.
var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\f", `\f`,
)

// Escape escapes backslashes, double quotes, line feeds, carriage returns and form feeds in text so it can be
// placed between double quotes in generated source.
func Escape(text string) string {
	return literalEscaper.Replace(text)
}

// Transpile splits the template text into blocks and folds them into a Class with the provided name and namespace.
// Returns an error if a base or model tag is declared more than once.
func Transpile(text string, className string, namespace string) (*Class, error) {
	return buildClass(generateBlocks(splitSpans(text)), className, namespace)
}

// Parse transpiles the template text and returns the rendered Go source of the resulting Class.
func Parse(text string, className string, namespace string) (string, error) {
	class, err := Transpile(text, className, namespace)
	if err != nil {
		return "", err
	}
	return class.Render(), nil
}

// Blocks splits the template text and returns the classified blocks, in order.
func Blocks(text string) []Block {
	return generateBlocks(splitSpans(text))
}

// splitSpans splits text into alternating literal and tagged spans. A tag ends at the first close delimiter after
// its open delimiter. An unterminated tag consumes the rest of the input.
func splitSpans(text string) []span {
	spans := make([]span, 0)
	for len(text) > 0 {
		// Find the next tag. Everything before it is a literal.
		start := strings.Index(text, openDelimiter)
		if start < 0 {
			spans = append(spans, span{text: text})
			break
		}
		if start > 0 {
			spans = append(spans, span{text: text[:start]})
		}

		// Strip the open delimiter and find the matching close delimiter.
		text = text[start+len(openDelimiter):]
		end := strings.Index(text, closeDelimiter)
		if end < 0 {
			spans = append(spans, span{tagged: true, text: text})
			break
		}
		spans = append(spans, span{tagged: true, text: text[:end]})
		text = text[end+len(closeDelimiter):]
	}
	return spans
}

// generateBlocks classifies spans into blocks. A literal made only of a line terminator which directly follows a
// directive is dropped, so directives on their own lines do not produce blank output lines.
func generateBlocks(spans []span) []Block {
	blocks := make([]Block, 0, len(spans))
	previousIsDirective := false
	for _, s := range spans {
		if s.tagged {
			// Empty tags produce nothing and leave the directive state untouched.
			if len(s.text) == 0 {
				continue
			}
			block := classifyTag(s.text)
			blocks = append(blocks, block)
			previousIsDirective = block.Type.IsDirective()
			continue
		}

		if previousIsDirective && isLineTerminator(s.text) {
			previousIsDirective = false
			continue
		}
		previousIsDirective = false
		blocks = append(blocks, Block{Type: BlockTypeLiteral, Content: writeCall(s.text)})
	}
	return blocks
}

// classifyTag determines the block type of a tag's content using the recognized directive prefixes.
func classifyTag(content string) Block {
	for _, directive := range directivePrefixes {
		if strings.HasPrefix(content, directive.prefix) {
			return Block{
				Type:    directive.blockType,
				Content: strings.TrimSpace(content[len(directive.prefix):]),
			}
		}
	}
	return Block{Type: BlockTypeCode, Content: content}
}

// writeCall converts a literal span into the statement writing it to the output.
func writeCall(text string) string {
	return "\nt.Write(\"" + Escape(text) + "\")\n"
}

// isLineTerminator indicates whether text consists solely of a single line terminator.
func isLineTerminator(text string) bool {
	return text == "\n" || text == "\r\n" || text == "\r"
}

// buildClass folds blocks into a Class.
func buildClass(blocks []Block, className string, namespace string) (*Class, error) {
	class := NewClass(className, namespace)
	var body strings.Builder

	for _, block := range blocks {
		switch block.Type {
		case BlockTypeCode, BlockTypeLiteral:
			body.WriteString(block.Content)
		case BlockTypeImport:
			class.Imports = append(class.Imports, block.Content)
		case BlockTypeBase:
			if class.Base != "" {
				return nil, &DuplicateTagError{Tag: BlockTypeBase}
			}
			class.Base = block.Content
		case BlockTypeModel:
			if class.Model != "" {
				return nil, &DuplicateTagError{Tag: BlockTypeModel}
			}
			class.Model = block.Content
		}
	}

	if class.Model == "" {
		class.Model = UntypedModel
	}
	class.Body = body.String()
	return class, nil
}
