// License: GPLv3 or later

package main

import "encoding/binary"

// programBuilder assembles raw bytecode by hand for tests, without going
// through the separate assembler command. fixLater reserves a 4-byte slot
// for a forward jump target and returns a function that patches it once the
// target offset is known.
type programBuilder struct {
	buf []byte
}

func (p *programBuilder) op(b byte) *programBuilder {
	p.buf = append(p.buf, b)
	return p
}

func (p *programBuilder) reg(idx byte) *programBuilder {
	p.buf = append(p.buf, idx)
	return p
}

func (p *programBuilder) litInt(v int32) *programBuilder {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	p.buf = append(p.buf, b[:]...)
	return p
}

func (p *programBuilder) litStr(s string) *programBuilder {
	p.buf = append(p.buf, []byte(s)...)
	p.buf = append(p.buf, 0)
	return p
}

func (p *programBuilder) offset() int32 { return int32(len(p.buf)) }

// fixLater appends a placeholder litint and returns a setter to patch it.
func (p *programBuilder) fixLater() func(target int32) {
	at := len(p.buf)
	p.litInt(0)
	return func(target int32) {
		binary.LittleEndian.PutUint32(p.buf[at:at+4], uint32(target))
	}
}

func (p *programBuilder) bytes() Program { return Program(p.buf) }
