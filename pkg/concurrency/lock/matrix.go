package lock

// compatible implements the held/requested compatibility matrix:
//
//	held\req  IS  IX  S  SIX  X
//	IS        v   v   v  v    x
//	IX        v   v   x  x    x
//	S         v   x   v  x    x
//	SIX       v   x   x  x    x
//	X         x   x   x  x    x
func compatible(held, req Mode) bool {
	switch held {
	case IS:
		return req != X
	case IX:
		return req == IS || req == IX
	case S:
		return req == IS || req == S
	case SIX:
		return req == IS
	case X:
		return false
	}
	return false
}

// compatibleWithAll reports whether req is compatible with every mode
// in held.
func compatibleWithAll(held []Mode, req Mode) bool {
	for _, h := range held {
		if !compatible(h, req) {
			return false
		}
	}
	return true
}

// combineRecord implements the record-object upgrade lattice, where
// only S and X ever appear: S+X -> X, S+S -> S, X+anything -> X. Any
// other pairing (one without X that involves IS, IX or SIX) is not
// representable on a record object and reports ok=false.
func combineRecord(cur, req Mode) (Mode, bool) {
	if cur == X || req == X {
		return X, true
	}
	if cur == S && req == S {
		return S, true
	}
	return 0, false
}

// combineTable implements the full multi-granularity table-object
// upgrade lattice: X absorbs anything, IS is absorbed by anything,
// and any other pair of distinct modes among {IX, S, SIX} combines to
// SIX (the only mode that dominates both intention-exclusive and
// shared access).
func combineTable(cur, req Mode) (Mode, bool) {
	if cur == req {
		return cur, true
	}
	if cur == X || req == X {
		return X, true
	}
	if cur == IS {
		return req, true
	}
	if req == IS {
		return cur, true
	}
	return SIX, true
}
