// dispatcher.go - the fetch/decode/execute loop
//
// pc tracks the last byte consumed by the current instruction, not the
// first byte of the next one: it starts on the opcode byte itself and is
// advanced as each operand is read, ending on the operand section's final
// byte. The loop then does an unconditional pc++ to reach the next
// instruction. Control-transfer handlers (call, ret, jl, je, jg, jmp)
// exploit this by setting pc to target-1, so that same trailing pc++ lands
// exactly on target instead of needing a special case.
//
// License: GPLv3 or later

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// runThread executes t against rt's program until t is stopped, the program
// runs off the end of the instruction stream, or a handler faults.
func (rt *Runtime) runThread(t *Thread) {
	defer close(t.done)
	defer rt.forget(t.id)

	for t.isRunning() {
		if t.stepCh != nil {
			select {
			case <-t.stepCh:
			case <-t.stopCh:
				return
			}
		}

		if t.pc < 0 || t.pc >= len(rt.program) {
			return
		}

		pc := t.pc
		opcode := rt.program[pc]

		spec := OpcodeTable[opcode]
		if spec == nil {
			rt.reportFault(t, faultf(DecodeFault, "dispatch", "unknown opcode 0x%02x at %d", opcode, pc))
			t.stop()
			return
		}

		ops, err := decodeOperands(rt.program, &pc, spec.Operands)
		if err != nil {
			rt.reportFault(t, err)
			t.stop()
			return
		}

		if err := rt.execute(t, spec, ops, &pc); err != nil {
			rt.reportFault(t, err)
			t.stop()
			return
		}

		t.pc = pc + 1
	}
}

func (rt *Runtime) reportFault(t *Thread, err error) {
	fmt.Fprintf(os.Stderr, "thread %d: %v\n", t.id, err)
}

// ------------------------------------------------------------------------------
// Operand decoding
// ------------------------------------------------------------------------------

type operand struct {
	kind   OperandKind
	reg    byte
	litInt int32
	litStr string
}

func decodeOperands(prog Program, pc *int, kinds []OperandKind) ([]operand, error) {
	ops := make([]operand, 0, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case REGINT, REGSTR:
			idx, err := readByte(prog, pc)
			if err != nil {
				return nil, err
			}
			if idx >= MaxRegisters {
				return nil, faultf(DecodeFault, "decode", "register index %d out of range", idx)
			}
			ops = append(ops, operand{kind: kind, reg: idx})
		case LITINT:
			v, err := readLitInt(prog, pc)
			if err != nil {
				return nil, err
			}
			ops = append(ops, operand{kind: kind, litInt: v})
		case LITSTR:
			v, err := readLitStr(prog, pc)
			if err != nil {
				return nil, err
			}
			ops = append(ops, operand{kind: kind, litStr: v})
		}
	}
	return ops, nil
}

// readByte reads the byte one past *pc and leaves *pc pointing at it.
func readByte(prog Program, pc *int) (byte, error) {
	next := *pc + 1
	if next >= len(prog) {
		return 0, faultf(DecodeFault, "decode", "truncated operand at %d", next)
	}
	*pc = next
	return prog[*pc], nil
}

// readLitInt reads the 4 bytes following *pc and leaves *pc on the last of
// them.
func readLitInt(prog Program, pc *int) (int32, error) {
	if *pc+4 >= len(prog) {
		return 0, faultf(DecodeFault, "decode", "truncated litint at %d", *pc+1)
	}
	start := *pc + 1
	v := binary.LittleEndian.Uint32(prog[start : start+4])
	*pc += 4
	return int32(v), nil
}

// readLitStr reads a NUL-terminated string following *pc and leaves *pc on
// the NUL terminator itself, consuming it.
func readLitStr(prog Program, pc *int) (string, error) {
	start := *pc + 1
	cursor := start
	for cursor < len(prog) && prog[cursor] != 0 {
		cursor++
	}
	if cursor >= len(prog) {
		return "", faultf(DecodeFault, "decode", "unterminated litstr at %d", start)
	}
	*pc = cursor
	return string(prog[start:cursor]), nil
}

// ------------------------------------------------------------------------------
// Execution
// ------------------------------------------------------------------------------

func sign32(v int32) int32 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// applyAttrs applies the staged anim_name attribute, which selects the
// surface's current frame; any other name is ignored. fade is handled by show
// separately since it governs how the alpha operand is reached rather than
// naming a value to set outright.
func applyAttrs(surface *SpriteSurface, attrs map[string]AttrValue) error {
	for name, v := range attrs {
		switch name {
		case "anim_name":
			if err := surface.SetCurrent(v.Str); err != nil {
				return err
			}
		}
	}
	return nil
}

// execute runs one decoded instruction. pc is the thread's in-flight
// program counter: handlers that transfer control set *pc = target-1 so the
// loop's trailing pc++ lands on target.
func (rt *Runtime) execute(t *Thread, spec *InstrSpec, ops []operand, pc *int) error {
	switch spec.Opcode {

	case OpReset:
		rt.resetExcept(t)
		return nil

	case OpLoadSpr:
		path := t.regStr[ops[0].reg]
		bank := int(t.regInt[ops[1].reg])
		if _, err := rt.bank.load(bank, path); err != nil {
			return err
		}
		return nil

	case OpUnloadSpr:
		bank := int(t.regInt[ops[0].reg])
		if err := rt.bank.clear(bank); err != nil {
			return err
		}
		rt.clearVisible(bank)
		return rt.present()

	case OpOpenBank:
		if slot, ok := rt.bank.openFirst(); ok {
			t.regInt[ops[0].reg] = int32(slot)
		}
		return nil

	case OpFork:
		target := int(ops[0].litInt)
		child := rt.forkAt(target)
		go rt.runThread(child)
		return nil

	case OpRet:
		ret, err := t.popCall()
		if err != nil {
			return err
		}
		*pc = ret
		return nil

	case OpCall:
		target := int(ops[0].litInt)
		t.pushCall(*pc) // *pc sits on call's last operand byte; ret's trailing pc++ lands after it
		*pc = target - 1
		return nil

	case OpPushS:
		t.pushStr(t.regStr[ops[0].reg])
		return nil

	case OpPopS:
		v, err := t.popStr()
		if err != nil {
			return err
		}
		t.regStr[ops[0].reg] = v
		return nil

	case OpPushI:
		t.pushInt(t.regInt[ops[0].reg])
		return nil

	case OpPopI:
		v, err := t.popInt()
		if err != nil {
			return err
		}
		t.regInt[ops[0].reg] = v
		return nil

	case OpWaitMs:
		ms := t.regInt[ops[0].reg]
		if ms <= 0 {
			return nil
		}
		select {
		case <-rt.clock.After(time.Duration(ms) * time.Millisecond):
		case <-t.stopCh:
		}
		return nil

	case OpWaitHook:
		rt.hooks.waithook(ops[0].litStr, t.stopCh)
		return nil

	case OpFire:
		rt.hooks.fire(ops[0].litStr)
		return nil

	case OpSay:
		bank := int(t.regInt[ops[0].reg])
		msg := t.regStr[ops[1].reg]
		t.takeAttrs()
		done := rt.say.Say(context.Background(), bank, msg)
		select {
		case <-done:
		case <-t.stopCh:
		}
		return nil

	case OpSetSL:
		t.regStr[ops[0].reg] = ops[1].litStr
		return nil

	case OpSetIL:
		t.regInt[ops[0].reg] = ops[1].litInt
		return nil

	case OpSetSS:
		t.regStr[ops[0].reg] = t.regStr[ops[1].reg]
		return nil

	case OpSetII:
		t.regInt[ops[0].reg] = t.regInt[ops[1].reg]
		return nil

	case OpShow:
		bank := int(t.regInt[ops[0].reg])
		targetAlpha := int(t.regInt[ops[1].reg])
		surface, err := rt.bank.surface(bank)
		if err != nil {
			return err
		}
		if surface == nil {
			return faultf(BankFault, "show", "bank %d is empty", bank)
		}
		attrs := t.takeAttrs()
		fade := attrs["fade"]
		delete(attrs, "fade")
		if err := applyAttrs(surface, attrs); err != nil {
			return err
		}
		if fade.IsInt && fade.Int > 0 {
			rt.fadeAlpha(surface, targetAlpha, time.Duration(fade.Int)*time.Millisecond, t.stopCh)
		} else if err := surface.SetAlpha(targetAlpha); err != nil {
			return err
		}
		return rt.present()

	case OpLayer:
		bank := int(t.regInt[ops[0].reg])
		z := t.regInt[ops[1].reg]
		t.takeAttrs()
		rt.setVisible(bank, z)
		return rt.present()

	case OpAttrI:
		t.setAttr(ops[0].litStr, AttrValue{IsInt: true, Int: t.regInt[ops[1].reg]})
		return nil

	case OpAttrS:
		t.setAttr(ops[0].litStr, AttrValue{IsInt: false, Str: t.regStr[ops[1].reg]})
		return nil

	case OpAdd:
		t.regInt[ops[0].reg] += t.regInt[ops[1].reg]
		return nil

	case OpSub:
		t.regInt[ops[0].reg] -= t.regInt[ops[1].reg]
		return nil

	case OpConcatL:
		t.regStr[ops[0].reg] += ops[1].litStr
		return nil

	case OpConcatR:
		t.regStr[ops[0].reg] += t.regStr[ops[1].reg]
		return nil

	case OpCmpIL:
		t.cmp = sign32(t.regInt[ops[0].reg] - ops[1].litInt)
		return nil

	case OpCmpII:
		t.cmp = sign32(t.regInt[ops[0].reg] - t.regInt[ops[1].reg])
		return nil

	case OpJl:
		if t.cmp < 0 {
			*pc = int(ops[0].litInt) - 1
		}
		return nil

	case OpJe:
		if t.cmp == 0 {
			*pc = int(ops[0].litInt) - 1
		}
		return nil

	case OpJg:
		if t.cmp > 0 {
			*pc = int(ops[0].litInt) - 1
		}
		return nil

	case OpJmp:
		*pc = int(ops[0].litInt) - 1
		return nil
	}

	return faultf(DecodeFault, "dispatch", "opcode %q has no handler", spec.Mnemonic)
}

// resetExcept stops every thread but t, clears shared state, then stops t
// itself. It implements the reset opcode: the whole runtime halts, not just
// the calling thread.
func (rt *Runtime) resetExcept(t *Thread) {
	rt.mu.Lock()
	others := make([]*Thread, 0, len(rt.threads))
	for id, other := range rt.threads {
		if id != t.id {
			others = append(others, other)
		}
	}
	rt.mu.Unlock()

	for _, o := range others {
		o.stop()
	}
	for _, o := range others {
		<-o.done
	}

	rt.mu.Lock()
	rt.threads = map[int]*Thread{t.id: t}
	rt.running = false
	rt.mu.Unlock()

	rt.bank.reset()
	rt.hooks.reset()

	rt.visMu.Lock()
	rt.visible = make(map[int]int32)
	rt.visMu.Unlock()

	t.stop()
}
