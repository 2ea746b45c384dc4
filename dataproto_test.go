package dataproto

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type Product struct {
	Name           string
	Price          float32
	QuantityBought int32
}

type BillingDetails struct {
	Number   int64
	FullName string
	Cve      int32
}

type Buyer struct {
	Name    string
	Age     int32
	Bought  []Product
	Details *BillingDetails
	Notes   string `packet:"-"`
	secret  int
}

var testBuyer = &Buyer{
	Name: "Joe",
	Age:  17,
	Bought: []Product{
		{Name: "Ice cream", Price: 1.50, QuantityBought: 4},
		{Name: "Beans", Price: 1.25, QuantityBought: 2},
		{Name: "Peas", Price: 2.00, QuantityBought: 1},
	},
	Details: &BillingDetails{
		Number:   12345678910111213,
		FullName: "Joe Joeson Mama",
		Cve:      420,
	},
}

func TestRoundTripBuyer(t *testing.T) {
	data, err := Marshal(testBuyer)
	if err != nil {
		t.Fatal(err)
	}

	// pointer fields are read through the template
	out := &Buyer{Details: &BillingDetails{}}
	if err := UnmarshalWithOptions(data, out, &Options{Strict: true}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testBuyer, out, cmpopts.IgnoreUnexported(Buyer{})); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestProductWireBytes(t *testing.T) {
	data, err := Marshal(Product{Name: "Peas", Price: 2.0, QuantityBought: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x04, 'P', 'e', 'a', 's',
		0x40, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x01,
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("got % X, want % X", data, want)
	}
}

func TestWriterReaderSequence(t *testing.T) {
	w, err := NewWritablePacket(&Options{InitialCapacity: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteString(testBuyer.Name); err != nil {
		t.Fatal(err)
	}
	w.WriteInt32(testBuyer.Age)
	if err := w.Write(testBuyer.Bought); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(testBuyer.Details); err != nil {
		t.Fatal(err)
	}

	r, err := NewReadablePacket(w.Finalize(), nil)
	if err != nil {
		t.Fatal(err)
	}
	name, err := r.ReadString()
	if err != nil || name != "Joe" {
		t.Fatalf("ReadString() = %q, %v", name, err)
	}
	age, err := r.ReadInt32()
	if err != nil || age != 17 {
		t.Fatalf("ReadInt32() = %d, %v", age, err)
	}
	bought, err := ReadValue[[]Product](r)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testBuyer.Bought, bought); diff != "" {
		t.Fatalf("bought mismatch (-want +got):\n%s", diff)
	}
	details, err := ReadValue[*BillingDetails](r)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testBuyer.Details, details); diff != "" {
		t.Fatalf("details mismatch (-want +got):\n%s", diff)
	}
	if r.Remaining() != 0 {
		t.Fatalf("%d bytes left", r.Remaining())
	}
}

type optionalFields struct {
	A int32
	P *int32
	B int32
}

func TestNilPointerSkipped(t *testing.T) {
	data, err := Marshal(&optionalFields{A: 1, B: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 8 {
		t.Fatalf("nil pointer contributed bytes: % X", data)
	}

	var out optionalFields
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.A != 1 || out.B != 2 || out.P != nil {
		t.Fatalf("unexpected result %+v", out)
	}

	seven := int32(7)
	data, err = Marshal(&optionalFields{A: 1, P: &seven, B: 2})
	if err != nil {
		t.Fatal(err)
	}
	got := int32(0)
	out = optionalFields{P: &got}
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if got != 7 || out.B != 2 {
		t.Fatalf("unexpected result %+v (P=%d)", out, got)
	}
}

func TestSliceCountPrefix(t *testing.T) {
	data, err := Marshal([]int16{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x03, 0, 1, 0, 2, 0, 3}
	if !bytes.Equal(data, want) {
		t.Fatalf("got % X, want % X", data, want)
	}

	var out []int16
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int16{1, 2, 3}, out); diff != "" {
		t.Fatal(diff)
	}

	// a longer template is truncated to the count on the wire
	out = []int16{9, 9, 9, 9, 9}
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int16{1, 2, 3}, out); diff != "" {
		t.Fatal(diff)
	}
}

func TestSliceOfPointersCountsNonNil(t *testing.T) {
	in := []*Product{{Name: "a"}, nil, {Name: "b"}}
	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != 2 {
		t.Fatalf("count = %d, want 2", data[0])
	}
	size, err := Sizeof(in)
	if err != nil || size != len(data) {
		t.Fatalf("Sizeof() = %d, %v, want %d", size, err, len(data))
	}

	var out []*Product
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]*Product{{Name: "a"}, {Name: "b"}}, out); diff != "" {
		t.Fatal(diff)
	}
}

func TestEmptySliceRoundTrip(t *testing.T) {
	data, err := Marshal(Buyer{Name: "Nobody"})
	if err != nil {
		t.Fatal(err)
	}
	var out Buyer
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Buyer{Name: "Nobody"}, out, cmpopts.EquateEmpty(), cmpopts.IgnoreUnexported(Buyer{})); diff != "" {
		t.Fatal(diff)
	}
}

type templateOrder struct {
	Items []Product `packet:"nocount"`
	Raw   []byte    `packet:"nocount"`
	Total float64
}

func TestNoCountSliceUsesTemplateLength(t *testing.T) {
	in := templateOrder{
		Items: []Product{{Name: "Beans", Price: 1.25, QuantityBought: 2}, {Name: "Peas", Price: 2, QuantityBought: 1}},
		Raw:   []byte{0xCA, 0xFE},
		Total: 4.5,
	}
	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	size, err := Sizeof(in)
	if err != nil || size != len(data) {
		t.Fatalf("Sizeof() = %d, %v, want %d", size, err, len(data))
	}
	if data[0] != 5 {
		t.Fatalf("first byte should be the first name length, got %d", data[0])
	}

	out := templateOrder{Items: make([]Product, 2), Raw: make([]byte, 2)}
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	// too short a template desynchronises the stream, too long runs out of data
	out = templateOrder{Items: make([]Product, 3), Raw: make([]byte, 2)}
	if err := Unmarshal(data, &out); !errors.Is(err, ErrUnexpectedEndOfData) {
		t.Fatalf("expected ErrUnexpectedEndOfData, got %v", err)
	}
}

type shelf struct {
	Slots [3]Product
	Tag   [4]byte
}

func TestFixedArrays(t *testing.T) {
	in := shelf{
		Slots: [3]Product{{Name: "Ice cream", Price: 1.5, QuantityBought: 4}, {}, {Name: "Peas", Price: 2, QuantityBought: 1}},
		Tag:   [4]byte{'S', 'H', 'L', 'F'},
	}
	data, err := Marshal(&in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(data, []byte("SHLF")) {
		t.Fatalf("fixed byte array should be raw, got % X", data)
	}

	var out shelf
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

type node struct {
	Value int32
	Next  *node
}

func TestRecursiveType(t *testing.T) {
	in := &node{Value: 1, Next: &node{Value: 2, Next: &node{Value: 3}}}
	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 12 {
		t.Fatalf("unexpected length %d", len(data))
	}

	out := &node{Next: &node{Next: &node{}}}
	if err := Unmarshal(data, out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

type tree struct {
	Label    string
	Children []tree
}

func TestRecursiveSlices(t *testing.T) {
	in := tree{Label: "root", Children: []tree{{Label: "a"}, {Label: "b", Children: []tree{{Label: "c"}}}}}
	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out tree
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

type platformInts struct {
	N int
	U uint
}

func TestPlatformIntRange(t *testing.T) {
	data, err := Marshal(platformInts{N: -5, U: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 8 {
		t.Fatalf("int and uint should travel as 32 bits, got %d bytes", len(data))
	}

	if strconv.IntSize == 32 {
		t.Skip("int is 32 bits wide")
	}
	big := int64(1) << 40
	_, err = Marshal(platformInts{N: int(big)})
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if !strings.Contains(err.Error(), "field N") {
		t.Fatalf("error does not name the field: %v", err)
	}

	// Sizeof refuses what Marshal refuses
	if _, err := Sizeof(platformInts{N: int(big)}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Sizeof: expected ErrOutOfRange, got %v", err)
	}
	if _, err := Sizeof([]int{1, int(big)}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Sizeof of slice: expected ErrOutOfRange, got %v", err)
	}
}

type maybeValue struct {
	P *int32
}

func TestHugeSliceCount(t *testing.T) {
	data := []byte{0xFF, 0xFF, 0xFF, 0xFF} // count 2147483647, no elements
	tests := []struct {
		name   string
		target interface{}
	}{
		{"int32", &[]int32{}},
		{"pointer", &[]*int32{}},
		{"pointer to pointer", &[]**int32{}},
		{"struct", &[]Product{}},
		{"struct of pointers", &[]maybeValue{}},
		{"custom", &[]Float16{}},
		{"pointer to custom", &[]*Float16{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Unmarshal(data, tt.target); !errors.Is(err, ErrUnexpectedEndOfData) {
				t.Fatalf("expected ErrUnexpectedEndOfData, got %v", err)
			}
		})
	}
}

func TestZeroWidthSliceElements(t *testing.T) {
	// struct{} occupies neither wire bytes nor memory, so any count is valid
	var empties []struct{}
	if err := Unmarshal([]byte{0xFF, 0xFF, 0xFF, 0xFF}, &empties); err != nil {
		t.Fatal(err)
	}
	if len(empties) != FlexIntMax {
		t.Fatalf("len = %d, want %d", len(empties), FlexIntMax)
	}

	// elements that may write nothing still round trip
	in := []maybeValue{{}, {}, {}}
	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0x03}) {
		t.Fatalf("got % X", data)
	}
	var out []maybeValue
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

type pointerChain struct {
	Items []**int32
	Tail  int32
}

func TestNestedNilPointerElements(t *testing.T) {
	var inner *int32
	five := int32(5)
	outer := &five
	in := pointerChain{Items: []**int32{&inner, &outer}, Tail: 7}

	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0, 0, 0, 5, 0, 0, 0, 7}
	if !bytes.Equal(data, want) {
		t.Fatalf("got % X, want % X", data, want)
	}
	size, err := Sizeof(in)
	if err != nil || size != len(data) {
		t.Fatalf("Sizeof() = %d, %v, want %d", size, err, len(data))
	}

	var out pointerChain
	if err := UnmarshalWithOptions(data, &out, &Options{Strict: true}); err != nil {
		t.Fatal(err)
	}
	if len(out.Items) != 1 || **out.Items[0] != 5 || out.Tail != 7 {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestUnsupportedTypes(t *testing.T) {
	tests := []interface{}{
		struct{ M map[string]int }{},
		struct{ C chan int }{},
		struct{ I interface{} }{},
		struct{ F func() }{},
		complex64(1),
	}
	for _, v := range tests {
		t.Run(fmt.Sprintf("%T", v), func(t *testing.T) {
			if _, err := Marshal(v); !errors.Is(err, ErrUnsupportedType) {
				t.Fatalf("expected ErrUnsupportedType, got %v", err)
			}
		})
	}
	if _, err := Marshal(nil); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType for nil, got %v", err)
	}
}

func TestErrorPath(t *testing.T) {
	data, err := Marshal(testBuyer.Bought)
	if err != nil {
		t.Fatal(err)
	}
	var out []Product
	// drop the last product's price and quantity
	err = Unmarshal(data[:len(data)-10], &out)
	if !errors.Is(err, ErrUnexpectedEndOfData) {
		t.Fatalf("expected ErrUnexpectedEndOfData, got %v", err)
	}
	if !strings.Contains(err.Error(), "[2].Price") {
		t.Fatalf("error does not name the field: %v", err)
	}
}

func TestSizeofMatchesMarshal(t *testing.T) {
	values := []interface{}{
		testBuyer,
		*testBuyer,
		int8(1),
		"Ice cream",
		[]byte{1, 2, 3},
		shelf{},
		&node{Value: 1, Next: &node{}},
		tree{Label: "x", Children: []tree{{Label: "y"}}},
		Float16(1.5),
		[]string{strings.Repeat("a", 70), ""},
	}
	for _, v := range values {
		data, err := Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%T): %v", v, err)
		}
		size, err := Sizeof(v)
		if err != nil {
			t.Fatalf("Sizeof(%T): %v", v, err)
		}
		if size != len(data) {
			t.Errorf("Sizeof(%T) = %d, Marshal produced %d bytes", v, size, len(data))
		}
	}
}

func TestStrictTrailingData(t *testing.T) {
	data := []byte{0, 0, 0, 1, 0xFF}
	var v int32
	if err := Unmarshal(data, &v); err != nil || v != 1 {
		t.Fatalf("Unmarshal() = %d, %v", v, err)
	}
	if err := UnmarshalWithOptions(data, &v, &Options{Strict: true}); !errors.Is(err, ErrTrailingData) {
		t.Fatalf("expected ErrTrailingData, got %v", err)
	}
}

func TestInvalidOptions(t *testing.T) {
	if _, err := MarshalWithOptions(1, &Options{MaxByteRun: -1}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
	if err := UnmarshalWithOptions(nil, new(int32), &Options{InitialCapacity: -1}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestMarshalReusesPooledWriters(t *testing.T) {
	first, err := Marshal(testBuyer)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Marshal(Product{Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	again, err := Marshal(testBuyer)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, again) {
		t.Fatal("pooled writer leaked state between calls")
	}
	if len(second) != 1+1+4+4 {
		t.Fatalf("unexpected length %d", len(second))
	}
}
