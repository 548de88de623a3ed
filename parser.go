package main

import (
	"path/filepath"
	"strings"

	"github.com/nickwells/location.mod/location"
)

// Markers is the set of delimiters the parser recognizes. All of them are
// configurable so documents can host payloads where the defaults collide.
type Markers struct {
	Special        byte
	Open           string
	Close          string
	ChunkEnd       string
	CommentMarkers []string
}

func DefaultMarkers() Markers {
	return Markers{
		Special:        '%',
		Open:           "<[",
		Close:          "]>",
		ChunkEnd:       "$$",
		CommentMarkers: []string{"#", "//"},
	}
}

// Validate rejects marker sets the parser cannot disambiguate.
func (m Markers) Validate() error {
	if m.Special == 0 || isIdentByte(m.Special) || m.Special == ' ' || m.Special == '\t' {
		return syntaxErrorf(nil, "special character %q must be punctuation", m.Special)
	}
	if m.Open == "" || m.Close == "" || m.ChunkEnd == "" {
		return syntaxErrorf(nil, "chunk delimiters must not be empty")
	}
	if m.Open == m.Close {
		return syntaxErrorf(nil, "chunk open and close delimiters must differ")
	}
	if len(m.CommentMarkers) == 0 {
		return syntaxErrorf(nil, "at least one comment marker is required")
	}
	return nil
}

// BodyElement is one element of a macro body or of the document top level.
type BodyElement interface {
	Pos() *location.L
	bodyElement()
}

// LiteralText is prose between chunk blocks and invocations. Inside a
// macro body it is substituted (validating its placeholders) and
// discarded; at top level it is recognized and skipped at parse time.
type LiteralText struct {
	Text Template
	pos  *location.L
}

func (e *LiteralText) Pos() *location.L { return e.pos }
func (e *LiteralText) bodyElement()     {}

// ChunkBlockNode contributes content lines to a named chunk when
// expanded. The substituted name may carry "@file" and "@replace"
// annotations; those are interpreted at expansion time, after
// substitution, because a name template can assemble them.
type ChunkBlockNode struct {
	Name       Template
	Content    []ContentNode
	BaseIndent string
	pos        *location.L
}

func (e *ChunkBlockNode) Pos() *location.L { return e.pos }
func (e *ChunkBlockNode) bodyElement()     {}

// InvocationNode invokes a macro with argument templates.
type InvocationNode struct {
	Name string
	Args []Template
	pos  *location.L
}

func (e *InvocationNode) Pos() *location.L { return e.pos }
func (e *InvocationNode) bodyElement()     {}

// ContentNode is one chunk content line: either a literal line or a
// whole-line reference to another chunk. Indent is the reference line's
// leading whitespace relative to the block's base indent; literal lines
// keep their relative indent inside Text.
type ContentNode struct {
	Ref    bool
	Text   Template
	Indent string
	Pos    *location.L
}

// Document is the parse result for one input, with included files already
// spliced in place.
type Document struct {
	Name     string
	Elements []BodyElement
	Defs     []*MacroDefinition

	// Includes lists every file pulled in while parsing, with the hash
	// of its content at parse time. Watch mode and the generation log
	// use it as provenance.
	Includes []SourceInput
}

// Parser turns document text into Documents. One Parser may parse several
// documents; include-cycle state is tracked per top-level parse.
type Parser struct {
	markers     Markers
	disk        DiskInterface
	includeDirs []string

	// marker strings derived from the configured special character
	mDef     string
	mInclude string
	mInvoke  string
	mComment string
	mOpen    string
	mClose   string
	mParam   string

	openIncludes map[string]bool
	includeDepth int
	dirStack     []string
}

const maxIncludeDepth = 100

func NewParser(markers Markers, disk DiskInterface, includeDirs []string) *Parser {
	s := string(markers.Special)
	return &Parser{
		markers:      markers,
		disk:         disk,
		includeDirs:  includeDirs,
		mDef:         s + "def(",
		mInclude:     s + "include(",
		mInvoke:      s + s,
		mComment:     s + "//",
		mOpen:        s + "{",
		mClose:       s + "}",
		mParam:       s + "(",
		openIncludes: make(map[string]bool),
	}
}

// Parse parses one document held in memory. name is used in positions and
// as the base directory for relative includes when it looks like a path.
func (p *Parser) Parse(name, text string) (*Document, error) {
	doc := &Document{Name: name}
	dir := "."
	if filepath.Base(name) != name {
		dir = filepath.Dir(name)
	}
	p.dirStack = append(p.dirStack, dir)
	defer func() { p.dirStack = p.dirStack[:len(p.dirStack)-1] }()
	if err := p.parseInto(doc, name, text); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseFile loads path through the disk interface and parses it.
func (p *Parser) ParseFile(path string) (*Document, error) {
	data, err := p.disk.ReadFile(path)
	if err != nil {
		return nil, ioErrorf("read", path, err)
	}
	return p.Parse(path, string(data))
}

func (p *Parser) parseInto(doc *Document, name, text string) error {
	lx := NewLexer(name, text)
	for !lx.EOF() {
		if lx.AtLineStart() {
			line := lx.PeekLine()
			_, rest := leadingIndent(line)
			if _, ok := p.matchChunkOpen(rest); ok {
				cb, err := p.parseChunkBlock(lx)
				if err != nil {
					return err
				}
				doc.Elements = append(doc.Elements, cb)
				continue
			}
		}
		if lx.Peek() != p.markers.Special {
			lx.Advance()
			continue
		}
		switch {
		case lx.LookingAt(p.mDef):
			def, err := p.parseDef(lx)
			if err != nil {
				return err
			}
			doc.Defs = append(doc.Defs, def)
		case lx.LookingAt(p.mInclude):
			if err := p.parseInclude(lx, doc); err != nil {
				return err
			}
		case lx.LookingAt(p.mComment):
			lx.SkipToEOL()
		case p.atInvocation(lx):
			inv, err := p.parseInvocation(lx)
			if err != nil {
				return err
			}
			doc.Elements = append(doc.Elements, inv)
		default:
			// A lone special character in prose is just prose.
			lx.Advance()
		}
	}
	return nil
}

// parseDef parses "%def(name, p1, p2, %{ body %})" with the cursor at the
// leading special character.
func (p *Parser) parseDef(lx *Lexer) (*MacroDefinition, error) {
	pos := lx.Pos()
	lx.Consume(p.mDef)
	lx.SkipSpace()
	name := lx.ScanIdent()
	if name == "" {
		return nil, syntaxErrorf(pos, "macro name expected in definition")
	}
	var params []string
	for {
		lx.SkipSpace()
		if lx.LookingAt(p.mOpen) {
			break
		}
		if !lx.Consume(",") {
			return nil, syntaxErrorf(lx.Pos(), "expected ',' or '%s' in definition of macro '%s'", p.mOpen, name)
		}
		lx.SkipSpace()
		if lx.LookingAt(p.mOpen) {
			break
		}
		param := lx.ScanIdent()
		if param == "" {
			return nil, syntaxErrorf(lx.Pos(), "parameter name expected in definition of macro '%s'", name)
		}
		params = append(params, param)
	}
	lx.Consume(p.mOpen)
	// Bodies conventionally start on the line after the opening brace.
	if lx.Peek() == '\r' && lx.PeekAt(1) == '\n' {
		lx.Advance()
	}
	if lx.Peek() == '\n' {
		lx.Advance()
	}
	body, err := p.parseBody(lx, name, pos)
	if err != nil {
		return nil, err
	}
	lx.SkipHSpace()
	if !lx.Consume(")") {
		return nil, syntaxErrorf(lx.Pos(), "expected ')' after body of macro '%s'", name)
	}
	return &MacroDefinition{Name: name, Params: params, Body: body, Pos: pos}, nil
}

// parseBody parses body elements until the matching body-close marker.
func (p *Parser) parseBody(lx *Lexer, macroName string, defPos *location.L) ([]BodyElement, error) {
	var elems []BodyElement
	lit := &Template{}
	litPos := lx.Pos()
	depth := 0

	flush := func() {
		if !lit.Empty() {
			elems = append(elems, &LiteralText{Text: *lit, pos: litPos})
			lit = &Template{}
		}
	}

	for {
		if lx.EOF() {
			return nil, syntaxErrorf(defPos, "unterminated body of macro '%s'", macroName)
		}
		if lx.AtLineStart() {
			line := lx.PeekLine()
			_, rest := leadingIndent(line)
			if _, ok := p.matchChunkOpen(rest); ok {
				flush()
				cb, err := p.parseChunkBlock(lx)
				if err != nil {
					return nil, err
				}
				elems = append(elems, cb)
				continue
			}
			litPos = lx.Pos()
		}
		c := lx.Peek()
		if c != p.markers.Special {
			lit.AddText(string(lx.Advance()), litPos)
			continue
		}
		switch {
		case lx.LookingAt(p.mClose):
			if depth == 0 {
				flush()
				lx.Consume(p.mClose)
				return elems, nil
			}
			depth--
			lit.AddText(p.mClose, lx.Pos())
			lx.Consume(p.mClose)
		case lx.LookingAt(p.mOpen):
			depth++
			lit.AddText(p.mOpen, lx.Pos())
			lx.Consume(p.mOpen)
		case lx.LookingAt(p.mComment):
			lx.SkipToEOL()
		case lx.LookingAt(p.mDef):
			return nil, syntaxErrorf(lx.Pos(), "macro definitions cannot be nested")
		case lx.LookingAt(p.mInclude):
			return nil, syntaxErrorf(lx.Pos(), "%sinclude is only allowed at top level", string(p.markers.Special))
		case p.atInvocation(lx):
			flush()
			inv, err := p.parseInvocation(lx)
			if err != nil {
				return nil, err
			}
			elems = append(elems, inv)
		case lx.LookingAt(p.mParam):
			name, pos, err := p.parseParamRef(lx)
			if err != nil {
				return nil, err
			}
			lit.AddParam(name, pos)
		default:
			if _, ok := p.atTextFunc(lx); ok {
				fn, args, pos, err := p.parseTextCall(lx)
				if err != nil {
					return nil, err
				}
				lit.AddCall(fn, args, pos)
				continue
			}
			lit.AddText(string(lx.Advance()), litPos)
		}
	}
}

// atInvocation reports whether the cursor sits at a doubled special
// character followed by an identifier and an opening parenthesis.
func (p *Parser) atInvocation(lx *Lexer) bool {
	if !lx.LookingAt(p.mInvoke) {
		return false
	}
	k := len(p.mInvoke)
	if !isIdentStart(lx.PeekAt(k)) {
		return false
	}
	for isIdentByte(lx.PeekAt(k)) {
		k++
	}
	return lx.PeekAt(k) == '('
}

// atTextFunc reports whether the cursor sits at a single special character
// followed by an identifier and an opening parenthesis, returning the
// identifier so callers can decide without consuming anything.
func (p *Parser) atTextFunc(lx *Lexer) (string, bool) {
	if lx.Peek() != p.markers.Special || !isIdentStart(lx.PeekAt(1)) {
		return "", false
	}
	k := 1
	start := k
	for isIdentByte(lx.PeekAt(k)) {
		k++
	}
	if lx.PeekAt(k) != '(' {
		return "", false
	}
	return lx.src[lx.off+start : lx.off+k], true
}

func (p *Parser) parseParamRef(lx *Lexer) (string, *location.L, error) {
	pos := lx.Pos()
	lx.Consume(p.mParam)
	name := lx.ScanIdent()
	if name == "" {
		return "", nil, syntaxErrorf(pos, "placeholder name expected after '%s'", p.mParam)
	}
	if !lx.Consume(")") {
		return "", nil, syntaxErrorf(pos, "unterminated placeholder '%s%s'", p.mParam, name)
	}
	return name, pos, nil
}

// parseTextCall parses "%fn(arg, ...)" for the known text functions. The
// caller has already checked the function name; argument-count mistakes
// are errors regardless of context.
func (p *Parser) parseTextCall(lx *Lexer) (string, []Template, *location.L, error) {
	pos := lx.Pos()
	lx.Advance() // special
	fn := lx.ScanIdent()
	arity := textFuncArity(fn)
	if arity < 0 {
		return "", nil, pos, syntaxErrorf(pos, "unknown text function '%s%s'", string(p.markers.Special), fn)
	}
	lx.Consume("(")
	var args []Template
	lx.SkipSpace()
	if !lx.Consume(")") {
		for {
			arg, stop, err := p.parseTemplateUntil(lx)
			if err != nil {
				return "", nil, pos, err
			}
			arg.trimSpace()
			args = append(args, arg)
			if stop == ')' {
				break
			}
			if stop != ',' {
				return "", nil, pos, syntaxErrorf(pos, "unterminated call of text function '%s'", fn)
			}
		}
	}
	if len(args) != arity {
		return "", nil, pos, syntaxErrorf(pos, "text function '%s' expects %d argument(s), got %d", fn, arity, len(args))
	}
	return fn, args, pos, nil
}

func (p *Parser) parseInvocation(lx *Lexer) (*InvocationNode, error) {
	pos := lx.Pos()
	lx.Consume(p.mInvoke)
	name := lx.ScanIdent()
	lx.Consume("(")
	var args []Template
	lx.SkipSpace()
	if !lx.Consume(")") {
		for {
			arg, stop, err := p.parseTemplateUntil(lx)
			if err != nil {
				return nil, err
			}
			arg.trimSpace()
			args = append(args, arg)
			if stop == ')' {
				break
			}
			if stop != ',' {
				return nil, syntaxErrorf(pos, "unterminated invocation of macro '%s'", name)
			}
		}
	}
	return &InvocationNode{Name: name, Args: args, pos: pos}, nil
}

// parseTemplateUntil scans a template until a top-level ',' or ')', which
// is consumed and returned as stop. stop 0 means the input ran out. Bare
// parentheses nest, so payload text containing them does not split
// arguments.
func (p *Parser) parseTemplateUntil(lx *Lexer) (Template, byte, error) {
	var tpl Template
	depth := 0
	for !lx.EOF() {
		c := lx.Peek()
		if c == ',' && depth == 0 {
			lx.Advance()
			return tpl, ',', nil
		}
		if c == ')' {
			if depth == 0 {
				lx.Advance()
				return tpl, ')', nil
			}
			depth--
			tpl.AddText(string(lx.Advance()), lx.Pos())
			continue
		}
		if c == '(' {
			depth++
			tpl.AddText(string(lx.Advance()), lx.Pos())
			continue
		}
		if c == p.markers.Special {
			if lx.LookingAt(p.mParam) {
				name, pos, err := p.parseParamRef(lx)
				if err != nil {
					return tpl, 0, err
				}
				tpl.AddParam(name, pos)
				continue
			}
			if _, ok := p.atTextFunc(lx); ok {
				fn, args, pos, err := p.parseTextCall(lx)
				if err != nil {
					return tpl, 0, err
				}
				tpl.AddCall(fn, args, pos)
				continue
			}
		}
		tpl.AddText(string(lx.Advance()), lx.Pos())
	}
	return tpl, 0, nil
}

// parseLineTemplate parses one full line of chunk content or a chunk name
// into a template. In lenient mode (chunk content, where the payload
// language has percent patterns of its own) an unknown function name stays
// literal instead of failing.
func (p *Parser) parseLineTemplate(text string, pos *location.L, strict bool) (Template, error) {
	cp := *pos
	lx := &Lexer{src: text, loc: &cp, atStart: true}
	var tpl Template
	for !lx.EOF() {
		c := lx.Peek()
		if c == p.markers.Special {
			if lx.LookingAt(p.mParam) {
				name, ppos, err := p.parseParamRef(lx)
				if err != nil {
					return tpl, err
				}
				tpl.AddParam(name, ppos)
				continue
			}
			if fn, ok := p.atTextFunc(lx); ok {
				if !strict && textFuncArity(fn) < 0 {
					tpl.AddText(string(lx.Advance()), pos)
					continue
				}
				fn, args, fpos, err := p.parseTextCall(lx)
				if err != nil {
					return tpl, err
				}
				tpl.AddCall(fn, args, fpos)
				continue
			}
		}
		tpl.AddText(string(lx.Advance()), pos)
	}
	return tpl, nil
}

// stripCommentMarker removes a leading comment marker and the whitespace
// after it, so markers can hide inside the payload language's comments.
func (p *Parser) stripCommentMarker(rest string) string {
	for _, cm := range p.markers.CommentMarkers {
		if strings.HasPrefix(rest, cm) {
			return strings.TrimLeft(rest[len(cm):], " \t")
		}
	}
	return rest
}

// matchChunkOpen matches "<[name]>=" (optionally comment-prefixed) with
// only trailing whitespace after the equals sign.
func (p *Parser) matchChunkOpen(rest string) (string, bool) {
	r := p.stripCommentMarker(rest)
	if !strings.HasPrefix(r, p.markers.Open) {
		return "", false
	}
	r = r[len(p.markers.Open):]
	idx := strings.Index(r, p.markers.Close)
	if idx < 0 {
		return "", false
	}
	after := r[idx+len(p.markers.Close):]
	if !strings.HasPrefix(after, "=") || strings.TrimSpace(after[1:]) != "" {
		return "", false
	}
	return strings.TrimSpace(r[:idx]), true
}

// matchChunkRef matches a whole-line "<[name]>" reference.
func (p *Parser) matchChunkRef(rest string) (string, bool) {
	r := p.stripCommentMarker(rest)
	if !strings.HasPrefix(r, p.markers.Open) {
		return "", false
	}
	r = r[len(p.markers.Open):]
	idx := strings.Index(r, p.markers.Close)
	if idx < 0 {
		return "", false
	}
	if strings.TrimSpace(r[idx+len(p.markers.Close):]) != "" {
		return "", false
	}
	return strings.TrimSpace(r[:idx]), true
}

// matchChunkEnd matches the block terminator line.
func (p *Parser) matchChunkEnd(rest string) bool {
	r := p.stripCommentMarker(rest)
	return strings.TrimSpace(r) == p.markers.ChunkEnd
}

// parseChunkBlock consumes an entire chunk block: opener line, content
// lines, terminator line. The cursor must sit at the start of the opener.
func (p *Parser) parseChunkBlock(lx *Lexer) (*ChunkBlockNode, error) {
	pos := lx.Pos()
	openLine := lx.PeekLine()
	baseIndent, rest := leadingIndent(openLine)
	nameText, _ := p.matchChunkOpen(rest)
	lx.ConsumeLine()

	nameTpl, err := p.parseLineTemplate(nameText, pos, true)
	if err != nil {
		return nil, err
	}

	var content []ContentNode
	for {
		if lx.EOF() {
			return nil, syntaxErrorf(pos, "unterminated chunk block '%s'", nameText)
		}
		linePos := lx.Pos()
		line := lx.PeekLine()
		lineIndent, lineRest := leadingIndent(line)
		if p.matchChunkEnd(lineRest) {
			lx.ConsumeLine()
			break
		}
		if refName, ok := p.matchChunkRef(lineRest); ok {
			lx.ConsumeLine()
			tpl, err := p.parseLineTemplate(refName, linePos, true)
			if err != nil {
				return nil, err
			}
			content = append(content, ContentNode{
				Ref:    true,
				Text:   tpl,
				Indent: relativeIndent(lineIndent, baseIndent),
				Pos:    linePos,
			})
			continue
		}
		lx.ConsumeLine()
		body := strings.TrimPrefix(line, baseIndent)
		tpl, err := p.parseLineTemplate(body, linePos, false)
		if err != nil {
			return nil, err
		}
		content = append(content, ContentNode{Text: tpl, Pos: linePos})
	}
	return &ChunkBlockNode{Name: nameTpl, Content: content, BaseIndent: baseIndent, pos: pos}, nil
}

// relativeIndent strips the block's base indent from a content line's
// leading whitespace; unprefixed lines keep their own indent.
func relativeIndent(lineIndent, base string) string {
	if strings.HasPrefix(lineIndent, base) {
		return lineIndent[len(base):]
	}
	return lineIndent
}

// parseInclude splices another document's elements and definitions in
// place. Cycles and depth overruns are syntax errors at the include site.
func (p *Parser) parseInclude(lx *Lexer, doc *Document) error {
	pos := lx.Pos()
	lx.Consume(p.mInclude)
	start := lx.Pos()
	var sb strings.Builder
	for {
		if lx.EOF() {
			return syntaxErrorf(start, "unterminated include")
		}
		c := lx.Advance()
		if c == ')' {
			break
		}
		sb.WriteByte(c)
	}
	path := strings.TrimSpace(sb.String())
	if path == "" {
		return syntaxErrorf(pos, "include path is empty")
	}
	resolved, err := p.resolveInclude(path)
	if err != nil {
		return syntaxErrorf(pos, "cannot include '%s': %v", path, err)
	}
	key := filepath.Clean(resolved)
	if p.openIncludes[key] {
		return syntaxErrorf(pos, "circular include of '%s'", path)
	}
	if p.includeDepth >= maxIncludeDepth {
		return syntaxErrorf(pos, "include depth limit exceeded at '%s'", path)
	}
	data, err := p.disk.ReadFile(resolved)
	if err != nil {
		return syntaxErrorf(pos, "cannot include '%s': %v", path, err)
	}
	doc.Includes = append(doc.Includes, SourceInput{Path: resolved, Hash: hashBytes(data)})
	p.openIncludes[key] = true
	p.includeDepth++
	p.dirStack = append(p.dirStack, filepath.Dir(resolved))
	err = p.parseInto(doc, resolved, string(data))
	p.dirStack = p.dirStack[:len(p.dirStack)-1]
	p.includeDepth--
	delete(p.openIncludes, key)
	return err
}

// resolveInclude looks the path up relative to the including file's
// directory first, then the -I search path.
func (p *Parser) resolveInclude(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	dirs := []string{}
	if n := len(p.dirStack); n > 0 {
		dirs = append(dirs, p.dirStack[n-1])
	}
	dirs = append(dirs, p.includeDirs...)
	for _, dir := range dirs {
		cand := filepath.Join(dir, path)
		if _, err := p.disk.StatFile(cand); err == nil {
			return cand, nil
		}
	}
	return "", &IOError{Op: "find", Path: path, Err: errNotFound}
}
