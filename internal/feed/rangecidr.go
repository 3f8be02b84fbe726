package feed

import (
	"fmt"
	"math/bits"
	"net/netip"
)

// uint128 is a big-endian 128-bit integer, wide enough for IPv6 math.
// IPv4 addresses ride in the low 32 bits.
type uint128 struct {
	hi, lo uint64
}

func addrToU128(a netip.Addr) uint128 {
	b := a.As16()
	var u uint128
	for i := 0; i < 8; i++ {
		u.hi = u.hi<<8 | uint64(b[i])
		u.lo = u.lo<<8 | uint64(b[i+8])
	}
	return u
}

func u128ToAddr(u uint128, v4 bool) netip.Addr {
	var b [16]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(u.hi >> (8 * (7 - i)))
		b[i+8] = byte(u.lo >> (8 * (7 - i)))
	}
	if v4 {
		var b4 [4]byte
		copy(b4[:], b[12:])
		return netip.AddrFrom4(b4)
	}
	return netip.AddrFrom16(b)
}

func (u uint128) cmp(v uint128) int {
	switch {
	case u.hi < v.hi:
		return -1
	case u.hi > v.hi:
		return 1
	case u.lo < v.lo:
		return -1
	case u.lo > v.lo:
		return 1
	}
	return 0
}

// addPow2 returns u + 2^n and whether the addition wrapped.
func (u uint128) addPow2(n int) (uint128, bool) {
	var v uint128
	if n < 64 {
		var carry uint64
		v.lo, carry = bits.Add64(u.lo, 1<<uint(n), 0)
		v.hi, carry = bits.Add64(u.hi, 0, carry)
		return v, carry != 0
	}
	var carry uint64
	v.lo = u.lo
	v.hi, carry = bits.Add64(u.hi, 1<<uint(n-64), 0)
	return v, carry != 0
}

// sub returns u - v; callers guarantee u >= v.
func (u uint128) sub(v uint128) uint128 {
	lo, borrow := bits.Sub64(u.lo, v.lo, 0)
	hi, _ := bits.Sub64(u.hi, v.hi, borrow)
	return uint128{hi: hi, lo: lo}
}

func (u uint128) trailingZeros() int {
	if u.lo != 0 {
		return bits.TrailingZeros64(u.lo)
	}
	if u.hi != 0 {
		return 64 + bits.TrailingZeros64(u.hi)
	}
	return 128
}

func (u uint128) bitLen() int {
	if u.hi != 0 {
		return 64 + bits.Len64(u.hi)
	}
	return bits.Len64(u.lo)
}

// RangeToPrefixes decomposes an inclusive address range into the minimal
// list of aligned CIDR blocks, largest-first from the low end. Both
// addresses must be the same family and start must not exceed end.
func RangeToPrefixes(start, end netip.Addr) ([]netip.Prefix, error) {
	if !start.IsValid() || !end.IsValid() {
		return nil, fmt.Errorf("invalid address range")
	}
	if start.Is4() != end.Is4() {
		return nil, fmt.Errorf("mixed address families in range %s-%s", start, end)
	}
	s := addrToU128(start)
	e := addrToU128(end)
	if s.cmp(e) > 0 {
		return nil, fmt.Errorf("range start %s after end %s", start, end)
	}

	v4 := start.Is4()
	addrBits := 128
	if v4 {
		addrBits = 32
	}

	var out []netip.Prefix
	for s.cmp(e) <= 0 {
		// Largest aligned block starting at s: limited by the alignment
		// of s and by the span remaining up to e.
		block := s.trailingZeros()
		if block > addrBits {
			block = addrBits
		}
		if spanBits := spanBlock(s, e); spanBits < block {
			block = spanBits
		}

		addr := u128ToAddr(s, v4)
		p := netip.PrefixFrom(addr, addrBits-block)
		out = append(out, p)

		next, wrapped := s.addPow2(block)
		if wrapped {
			break
		}
		s = next
	}
	return out, nil
}

// spanBlock returns the largest n such that 2^n addresses fit in [s, e].
func spanBlock(s, e uint128) int {
	span := e.sub(s) // e - s, so the range holds span+1 addresses
	if span.hi == ^uint64(0) && span.lo == ^uint64(0) {
		return 128
	}
	lo, carry := bits.Add64(span.lo, 1, 0)
	hi, _ := bits.Add64(span.hi, 0, carry)
	return uint128{hi: hi, lo: lo}.bitLen() - 1
}
