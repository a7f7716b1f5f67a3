// assemble.go - two-pass assembler for the visual novel VM's bytecode
//
// This package intentionally keeps its own copy of the instruction table
// rather than importing the root package: the root binary, this assembler,
// and the disassembler in cmd/vndis are three independent programs that
// happen to agree on the wire format.
//
// License: GPLv3 or later

package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type operandKind int

const (
	regInt operandKind = iota
	regStr
	litInt
	litStr
)

const maxRegisters = 8

type instrSpec struct {
	opcode   byte
	mnemonic string
	operands []operandKind
}

func instrSpecs() []instrSpec {
	return []instrSpec{
		{0x00, "reset", nil},
		{0x01, "loadspr", []operandKind{regStr, regInt}},
		{0x02, "unloadspr", []operandKind{regInt}},
		{0x03, "fork", []operandKind{litInt}},
		{0x04, "ret", nil},
		{0x05, "call", []operandKind{litInt}},
		{0x06, "pushs", []operandKind{regStr}},
		{0x07, "pops", []operandKind{regStr}},
		{0x08, "pushi", []operandKind{regInt}},
		{0x09, "popi", []operandKind{regInt}},
		{0x0A, "wait", []operandKind{regInt}},
		{0x0B, "wait", []operandKind{litStr}},
		{0x0C, "fire", []operandKind{litStr}},
		{0x0D, "say", []operandKind{regInt, regStr}},
		{0x0E, "set", []operandKind{regStr, litStr}},
		{0x0F, "set", []operandKind{regInt, litInt}},
		{0x10, "set", []operandKind{regStr, regStr}},
		{0x11, "set", []operandKind{regInt, regInt}},
		{0x12, "show", []operandKind{regInt, regInt}},
		{0x13, "layer", []operandKind{regInt, regInt}},
		{0x14, "attr", []operandKind{litStr, regInt}},
		{0x15, "attr", []operandKind{litStr, regStr}},
		{0x16, "openbank", []operandKind{regInt}},
		{0x17, "add", []operandKind{regInt, regInt}},
		{0x18, "sub", []operandKind{regInt, regInt}},
		{0x19, "concat", []operandKind{regStr, litStr}},
		{0x1A, "concat", []operandKind{regStr, regStr}},
		{0x1B, "cmp", []operandKind{regInt, litInt}},
		{0x1C, "cmp", []operandKind{regInt, regInt}},
		{0x1D, "jl", []operandKind{litInt}},
		{0x1E, "je", []operandKind{litInt}},
		{0x1F, "jg", []operandKind{litInt}},
		{0x20, "jmp", []operandKind{litInt}},
	}
}

func mnemonicTable() map[string][]instrSpec {
	table := make(map[string][]instrSpec)
	for _, s := range instrSpecs() {
		table[s.mnemonic] = append(table[s.mnemonic], s)
	}
	return table
}

// AssembleFaultKind classifies an assembler failure.
type AssembleFaultKind int

const (
	NoEncoding AssembleFaultKind = iota
	DuplicateLabel
	UnresolvedLabel
	StringNul
)

func (k AssembleFaultKind) String() string {
	switch k {
	case NoEncoding:
		return "no encoding"
	case DuplicateLabel:
		return "duplicate label"
	case UnresolvedLabel:
		return "unresolved label"
	case StringNul:
		return "string nul"
	default:
		return "unknown fault"
	}
}

// AssembleError reports a failure tied to a specific source line.
type AssembleError struct {
	Line    int
	Kind    AssembleFaultKind
	Message string
}

func (e *AssembleError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// errStringNul flags an embedded NUL inside a quoted string literal; it
// short-circuits candidate matching instead of being swallowed as "no
// candidate matched" the way an ordinary encoding mismatch would be.
var errStringNul = errors.New("string literal contains an embedded NUL byte")

type fixup struct {
	offset int // byte offset of the 4-byte LITINT placeholder
	label  string
	line   int
}

type parsedLine struct {
	line    int
	label   string // non-empty if this line only declares a label
	mnem    string
	argToks []string
}

// Assemble runs both passes over src and returns the assembled program.
func Assemble(src string) ([]byte, error) {
	lines, err := parseLines(src)
	if err != nil {
		return nil, err
	}

	mnems := mnemonicTable()

	// Pass 1: emit bytes, recording label offsets and outstanding fixups
	// for any @label operand whose target hasn't been seen yet.
	var out []byte
	labels := make(map[string]int)
	var fixups []fixup

	for _, pl := range lines {
		if pl.label != "" {
			if _, exists := labels[pl.label]; exists {
				return nil, &AssembleError{pl.line, DuplicateLabel, fmt.Sprintf("label %q already defined", pl.label)}
			}
			labels[pl.label] = len(out)
			continue
		}

		candidates, ok := mnems[pl.mnem]
		if !ok {
			return nil, &AssembleError{pl.line, NoEncoding, fmt.Sprintf("unknown mnemonic %q", pl.mnem)}
		}

		var lastErr error
		matched := false
		for _, spec := range candidates {
			encoded, fx, err := tryEncode(spec, pl, len(out))
			if err != nil {
				if errors.Is(err, errStringNul) {
					return nil, &AssembleError{pl.line, StringNul, err.Error()}
				}
				lastErr = err
				continue
			}
			out = append(out, byte(spec.opcode))
			out = append(out, encoded...)
			fixups = append(fixups, fx...)
			matched = true
			break
		}
		if !matched {
			if lastErr == nil {
				lastErr = fmt.Errorf("no encoding of %q matches operands", pl.mnem)
			}
			return nil, &AssembleError{pl.line, NoEncoding, lastErr.Error()}
		}
	}

	// Pass 2: resolve every @label fixup now that all labels are known.
	for _, fx := range fixups {
		target, ok := labels[fx.label]
		if !ok {
			return nil, &AssembleError{fx.line, UnresolvedLabel, fmt.Sprintf("undefined label %q", fx.label)}
		}
		binary.LittleEndian.PutUint32(out[fx.offset:fx.offset+4], uint32(target))
	}

	return out, nil
}

// tryEncode attempts to encode pl's arguments against spec's operand shape.
// baseOffset is the byte offset spec's opcode byte will land at (the opcode
// byte for this instruction has not been appended yet by the caller, so
// fixup offsets are baseOffset+1+consumed-so-far).
func tryEncode(spec instrSpec, pl parsedLine, baseOffset int) ([]byte, []fixup, error) {
	if len(pl.argToks) != len(spec.operands) {
		return nil, nil, fmt.Errorf("%s expects %d operand(s), got %d", spec.mnemonic, len(spec.operands), len(pl.argToks))
	}

	var out []byte
	var fixups []fixup
	// +1 accounts for the opcode byte the caller prepends.
	cursor := baseOffset + 1

	for i, kind := range spec.operands {
		tok := pl.argToks[i]
		switch kind {
		case regInt:
			idx, err := parseRegister(tok, 'i')
			if err != nil {
				return nil, nil, err
			}
			out = append(out, idx)
			cursor++
		case regStr:
			idx, err := parseRegister(tok, 's')
			if err != nil {
				return nil, nil, err
			}
			out = append(out, idx)
			cursor++
		case litStr:
			s, err := parseQuotedString(tok)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, []byte(s)...)
			out = append(out, 0)
			cursor += len(s) + 1
		case litInt:
			if strings.HasPrefix(tok, "@") {
				fixups = append(fixups, fixup{offset: cursor, label: tok[1:], line: pl.line})
				out = append(out, 0, 0, 0, 0)
				cursor += 4
				continue
			}
			v, err := strconv.ParseInt(tok, 0, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid integer literal %q", tok)
			}
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(int32(v)))
			out = append(out, buf[:]...)
			cursor += 4
		}
	}
	return out, fixups, nil
}

// parseRegister accepts the form i<0-7> for want='i' or s<0-7> for want='s'
// — no leading 'r'.
func parseRegister(tok string, want byte) (byte, error) {
	if len(tok) < 2 || tok[0] != want {
		return 0, fmt.Errorf("expected %c<0-7>, got %q", want, tok)
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil || n < 0 || n >= maxRegisters {
		return 0, fmt.Errorf("register index out of range: %q", tok)
	}
	return byte(n), nil
}

func parseQuotedString(tok string) (string, error) {
	if len(tok) < 2 || tok[0] != '"' || tok[len(tok)-1] != '"' {
		return "", fmt.Errorf("expected quoted string, got %q", tok)
	}
	s := tok[1 : len(tok)-1]
	if strings.ContainsRune(s, 0) {
		return "", errStringNul
	}
	return s, nil
}

// parseLines tokenizes src into label declarations and instructions.
// Everything from a ';' outside a quoted string to the end of the line is a
// comment and is ignored; the text before it is kept.
func parseLines(src string) ([]parsedLine, error) {
	var out []parsedLine
	scanner := bufio.NewScanner(strings.NewReader(src))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := stripComment(scanner.Text())
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		toks := tokenize(line)
		if len(toks) == 0 {
			continue
		}
		if len(toks) == 1 && strings.HasSuffix(toks[0], ":") {
			out = append(out, parsedLine{line: lineNo, label: strings.TrimSuffix(toks[0], ":")})
			continue
		}

		out = append(out, parsedLine{line: lineNo, mnem: toks[0], argToks: toks[1:]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// tokenize splits a line into whitespace-separated, shell-like tokens: a
// double-quoted span (including its embedded whitespace) is kept as one
// token.
func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	inQuotes := false
	has := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
			has = true
		case !inQuotes && (r == ' ' || r == '\t'):
			if has {
				toks = append(toks, cur.String())
				cur.Reset()
				has = false
			}
		default:
			cur.WriteRune(r)
			has = true
		}
	}
	if has {
		toks = append(toks, cur.String())
	}
	return toks
}

func stripComment(line string) string {
	inQuotes := false
	for i, r := range line {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ';':
			if !inQuotes {
				return line[:i]
			}
		}
	}
	return line
}

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: vnasm INPUT.vnasm OUTPUT.bin\n")
		os.Exit(1)
	}

	src, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "vnasm: %v\n", err)
		os.Exit(1)
	}

	program, err := Assemble(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vnasm: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(os.Args[2], program, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "vnasm: %v\n", err)
		os.Exit(1)
	}
}
