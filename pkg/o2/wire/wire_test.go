package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := NewBuilder().
		AddInt32(42).
		AddFloat64(3.5).
		AddString("hello").
		AddTrue().
		Finish(0, "/server/benchmark/0", true)

	raw, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Address != msg.Address {
		t.Fatalf("address mismatch: %q != %q", decoded.Address, msg.Address)
	}
	if decoded.Types != msg.Types {
		t.Fatalf("types mismatch: %q != %q", decoded.Types, msg.Types)
	}
	if !decoded.Reliable() {
		t.Fatalf("expected reliable flag to round-trip")
	}

	r := NewReader(decoded)
	if a, err := r.Next(TypeInt32); err != nil || a.I != 42 {
		t.Fatalf("arg0: %v %v", a, err)
	}
	if a, err := r.Next(TypeFloat64); err != nil || a.D != 3.5 {
		t.Fatalf("arg1: %v %v", a, err)
	}
	if a, err := r.Next(TypeString); err != nil || a.Str != "hello" {
		t.Fatalf("arg2: %v %v", a, err)
	}
	if a, err := r.Next(0); err != nil || a.Type != TypeTrue {
		t.Fatalf("arg3: %v %v", a, err)
	}
}

func TestCoercionFloatToInt(t *testing.T) {
	msg := NewBuilder().AddFloat32(1234.0).Finish(0, "/server/benchmark/0", false)
	raw, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r := NewReader(decoded)
	a, err := r.Next(TypeInt32)
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	if a.I != 1234 {
		t.Fatalf("expected coerced 1234, got %d", a.I)
	}
}

func TestCoercionZeroNonZeroToBool(t *testing.T) {
	zero := NewBuilder().AddInt32(0).Finish(0, "/x", false)
	r := NewReader(zero)
	a, err := r.Next(TypeFalse)
	if err != nil || a.Type != TypeFalse {
		t.Fatalf("expected False for zero, got %v %v", a, err)
	}

	nonzero := NewBuilder().AddInt32(7).Finish(0, "/x", false)
	r2 := NewReader(nonzero)
	a2, err := r2.Next(TypeTrue)
	if err != nil || a2.Type != TypeTrue {
		t.Fatalf("expected True for non-zero, got %v %v", a2, err)
	}
}

func TestArrayRoundTrip(t *testing.T) {
	msg := NewBuilder().
		AddInt32(1).
		StartArray().
		AddFloat32(1.5).
		AddFloat32(2.5).
		End().
		AddString("tail").
		Finish(0, "/x", false)

	raw, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Types != ",i[ff]s" {
		t.Fatalf("unexpected types string: %q", decoded.Types)
	}

	r := NewReader(decoded)
	if _, err := r.Next(0); err != nil {
		t.Fatalf("arg0: %v", err)
	}
	if _, err := r.Next(0); err != ErrArrayStart {
		t.Fatalf("expected array start, got %v", err)
	}
	inner, err := r.NextArray()
	if err != nil {
		t.Fatalf("NextArray: %v", err)
	}
	if inner.Remaining() != 2 {
		t.Fatalf("expected 2 array elements, got %d", inner.Remaining())
	}
	if a, err := r.Next(TypeString); err != nil || a.Str != "tail" {
		t.Fatalf("tail arg: %v %v", a, err)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	msg := NewBuilder().
		AddVector(TypeInt32).
		AddInt32(1).
		AddInt32(2).
		AddInt32(3).
		End().
		Finish(0, "/x", false)

	raw, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Types != ",vi" {
		t.Fatalf("unexpected types string: %q", decoded.Types)
	}
	if len(decoded.Args) != 1 || len(decoded.Args[0].Elems) != 3 {
		t.Fatalf("unexpected vector shape: %#v", decoded.Args)
	}
}

func TestBundleNestedTimestamp(t *testing.T) {
	m1 := NewBuilder().AddInt32(1).Finish(3.0, "/svc/m1", false)
	inner := NewBundle(3.2)
	m2 := NewBuilder().AddInt32(2).Finish(0, "/svc/m2", false)
	m3 := NewBuilder().AddInt32(3).Finish(0, "/svc/m3", false)
	if err := inner.Add(m2); err != nil {
		t.Fatalf("add m2: %v", err)
	}
	if err := inner.Add(m3); err != nil {
		t.Fatalf("add m3: %v", err)
	}
	innerBundle := inner.Finish(false)

	outer := NewBundle(3.0)
	if err := outer.Add(m1); err != nil {
		t.Fatalf("add m1: %v", err)
	}
	if err := outer.Add(innerBundle); err != nil {
		t.Fatalf("add inner bundle: %v", err)
	}
	outerBundle := outer.Finish(false)

	subs, err := Unbundle(outerBundle)
	if err != nil {
		t.Fatalf("unbundle: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 flattened sub-messages, got %d", len(subs))
	}
	if subs[0].Timestamp != 3.0 || subs[0].Address != "/svc/m1" {
		t.Fatalf("m1 mismatch: %+v", subs[0])
	}
	if subs[1].Timestamp != 3.2 || subs[1].Address != "/svc/m2" {
		t.Fatalf("m2 mismatch: %+v", subs[1])
	}
	if subs[2].Timestamp != 3.2 || subs[2].Address != "/svc/m3" {
		t.Fatalf("m3 mismatch: %+v", subs[2])
	}
}
