package sharing

// Local operations. They need no communication: each party applies them to
// its own share. Operands must have the same length and scheme.

func zip(a, b Share, f func(x, y uint64) uint64) Share {
	res := Share{
		Party:  a.Party,
		Scheme: a.Scheme,
		First:  make([]uint64, a.Len()),
		Second: make([]uint64, a.Len()),
	}
	for i := range a.First {
		res.First[i] = f(a.First[i], b.First[i])
		res.Second[i] = f(a.Second[i], b.Second[i])
	}
	return res
}

func mapShare(a Share, f func(x uint64) uint64) Share {
	res := Share{
		Party:  a.Party,
		Scheme: a.Scheme,
		First:  make([]uint64, a.Len()),
		Second: make([]uint64, a.Len()),
	}
	for i := range a.First {
		res.First[i] = f(a.First[i])
		res.Second[i] = f(a.Second[i])
	}
	return res
}

// Add returns a share of a + b.
func Add(a, b Share) Share {
	return zip(a, b, func(x, y uint64) uint64 { return x + y })
}

// Sub returns a share of a - b.
func Sub(a, b Share) Share {
	return zip(a, b, func(x, y uint64) uint64 { return x - y })
}

// Neg returns a share of -a.
func Neg(a Share) Share {
	return mapShare(a, func(x uint64) uint64 { return -x })
}

// MulPublic returns a share of a * k for a public scalar k.
func MulPublic(a Share, k uint64) Share {
	return mapShare(a, func(x uint64) uint64 { return x * k })
}

// AddPublic returns a share of a + c for a public vector c. The constant is
// folded into component 0, held by parties 0 and 2.
func AddPublic(a Share, c []uint64) Share {
	return public(a, c, func(x, y uint64) uint64 { return x + y })
}

// Xor returns a share of a ^ b.
func Xor(a, b Share) Share {
	return zip(a, b, func(x, y uint64) uint64 { return x ^ y })
}

// XorPublic returns a share of a ^ c for a public vector c.
func XorPublic(a Share, c []uint64) Share {
	return public(a, c, func(x, y uint64) uint64 { return x ^ y })
}

// Not returns a share of the bitwise complement of a.
func Not(a Share) Share {
	ones := make([]uint64, a.Len())
	for i := range ones {
		ones[i] = ^uint64(0)
	}
	return XorPublic(a, ones)
}

// AndPublic returns a share of a & mask for a public mask.
func AndPublic(a Share, mask uint64) Share {
	return mapShare(a, func(x uint64) uint64 { return x & mask })
}

// Shl returns a share of a << k. Valid for binary shares.
func Shl(a Share, k uint) Share {
	return mapShare(a, func(x uint64) uint64 { return x << k })
}

// Shr returns a share of a >> k (logical shift). Valid for binary shares.
func Shr(a Share, k uint) Share {
	return mapShare(a, func(x uint64) uint64 { return x >> k })
}

// Bit returns a share of bit i of a, in the lowest bit. Valid for binary
// shares.
func Bit(a Share, i uint) Share {
	return mapShare(a, func(x uint64) uint64 { return (x >> i) & 1 })
}

// SignMask returns a share of the word whose bits are all equal to the most
// significant bit of a. Valid for binary shares.
func SignMask(a Share) Share {
	return mapShare(a, func(x uint64) uint64 { return uint64(int64(x) >> 63) })
}

// Broadcast returns a share of the word whose bits are all equal to the lowest
// bit of a. Valid for binary shares.
func Broadcast(a Share) Share {
	return mapShare(a, func(x uint64) uint64 { return -(x & 1) })
}

func public(a Share, c []uint64, f func(x, y uint64) uint64) Share {
	res := Share{
		Party:  a.Party,
		Scheme: a.Scheme,
		First:  clone(a.First),
		Second: clone(a.Second),
	}
	switch a.Party {
	case 0:
		for i := range res.First {
			res.First[i] = f(res.First[i], c[i])
		}
	case Prev(0):
		for i := range res.Second {
			res.Second[i] = f(res.Second[i], c[i])
		}
	}
	return res
}

// Isolate returns the share, with the given scheme, of the secret whose
// component k equals component k of a and whose other components are zero.
// It lets the two parties holding x_k share it without communication.
func Isolate(a Share, k int, scheme Scheme) Share {
	res := Share{
		Party:  a.Party,
		Scheme: scheme,
		First:  make([]uint64, a.Len()),
		Second: make([]uint64, a.Len()),
	}
	if k == a.Party {
		copy(res.First, a.First)
	}
	if k == Next(a.Party) {
		copy(res.Second, a.Second)
	}
	return res
}

// Zero returns a share of the zero vector of length n.
func Zero(party int, scheme Scheme, n int) Share {
	return Share{
		Party:  party,
		Scheme: scheme,
		First:  make([]uint64, n),
		Second: make([]uint64, n),
	}
}

// Concat returns the share of the concatenation of the given vectors.
func Concat(shares ...Share) Share {
	res := Share{Party: shares[0].Party, Scheme: shares[0].Scheme}
	for _, s := range shares {
		res.First = append(res.First, s.First...)
		res.Second = append(res.Second, s.Second...)
	}
	return res
}

// Split cuts a into consecutive shares of the given sizes.
func (a Share) Split(sizes ...int) []Share {
	res := make([]Share, len(sizes))
	offset := 0
	for i, n := range sizes {
		res[i] = a.Slice(offset, offset+n)
		offset += n
	}
	return res
}

// Slice returns the share of elements [from, to) of a.
func (a Share) Slice(from, to int) Share {
	return Share{
		Party:  a.Party,
		Scheme: a.Scheme,
		First:  clone(a.First[from:to]),
		Second: clone(a.Second[from:to]),
	}
}
