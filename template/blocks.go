package template

// BlockType describes the kind of a Block produced while transpiling a template.
type BlockType int

const (
	// BlockTypeCode describes Go code inserted verbatim into the Execute method body.
	BlockTypeCode BlockType = iota
	// BlockTypeLiteral describes text outside of tags, already converted into a write call.
	BlockTypeLiteral
	// BlockTypeImport describes an import directive ("using#" tag).
	BlockTypeImport
	// BlockTypeBase describes the embedded base type directive ("base#" tag).
	BlockTypeBase
	// BlockTypeModel describes the model type directive ("model#" tag).
	BlockTypeModel
)

// String returns a readable name for the BlockType.
func (b BlockType) String() string {
	switch b {
	case BlockTypeCode:
		return "code"
	case BlockTypeLiteral:
		return "literal"
	case BlockTypeImport:
		return "import"
	case BlockTypeBase:
		return "base"
	case BlockTypeModel:
		return "model"
	default:
		return "unknown"
	}
}

// IsDirective indicates whether the block is a directive tag rather than body content.
func (b BlockType) IsDirective() bool {
	return b == BlockTypeImport || b == BlockTypeBase || b == BlockTypeModel
}

// Block is a single classified piece of a template.
type Block struct {
	// Type describes how the block is folded into a Class.
	Type BlockType

	// Content is the block content. For directives it is the trimmed directive argument, for code it is the tag
	// content verbatim and for literals it is the generated write call.
	Content string
}

// directivePrefixes maps the recognized tag prefixes to the block type they produce.
var directivePrefixes = []struct {
	prefix    string
	blockType BlockType
}{
	{"using#", BlockTypeImport},
	{"model#", BlockTypeModel},
	{"base#", BlockTypeBase},
}
