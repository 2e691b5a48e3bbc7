package expr

import "fmt"

// ElementType is the element type of a PackedArray or NumericArray. The
// constant values are the WXF wire bytes.
type ElementType uint8

const (
	Integer8          ElementType = 0x00
	Integer16         ElementType = 0x01
	Integer32         ElementType = 0x02
	Integer64         ElementType = 0x03
	UnsignedInteger8  ElementType = 0x10
	UnsignedInteger16 ElementType = 0x11
	UnsignedInteger32 ElementType = 0x12
	UnsignedInteger64 ElementType = 0x13
	Real32            ElementType = 0x22
	Real64            ElementType = 0x23
	ComplexReal32     ElementType = 0x33
	ComplexReal64     ElementType = 0x34
)

// elementInfo holds the static properties of one element type.
type elementInfo struct {
	name   string
	size   int
	packed bool // allowed in PackedArray
}

var elementTypes = map[ElementType]elementInfo{
	Integer8:          {"Integer8", 1, true},
	Integer16:         {"Integer16", 2, true},
	Integer32:         {"Integer32", 4, true},
	Integer64:         {"Integer64", 8, true},
	UnsignedInteger8:  {"UnsignedInteger8", 1, false},
	UnsignedInteger16: {"UnsignedInteger16", 2, false},
	UnsignedInteger32: {"UnsignedInteger32", 4, false},
	UnsignedInteger64: {"UnsignedInteger64", 8, false},
	Real32:            {"Real32", 4, true},
	Real64:            {"Real64", 8, true},
	ComplexReal32:     {"ComplexReal32", 8, true},
	ComplexReal64:     {"ComplexReal64", 16, true},
}

var elementTypesByName = func() map[string]ElementType {
	m := make(map[string]ElementType, len(elementTypes))
	for t, info := range elementTypes {
		m[info.name] = t
	}
	return m
}()

// ElementTypes returns all element types in wire-byte order.
func ElementTypes() []ElementType {
	return []ElementType{
		Integer8, Integer16, Integer32, Integer64,
		UnsignedInteger8, UnsignedInteger16, UnsignedInteger32, UnsignedInteger64,
		Real32, Real64, ComplexReal32, ComplexReal64,
	}
}

// ElementTypeByName looks up an element type by its name, e.g. "Real64".
func ElementTypeByName(name string) (ElementType, bool) {
	t, ok := elementTypesByName[name]
	return t, ok
}

// Valid reports whether t is one of the twelve element types.
func (t ElementType) Valid() bool {
	_, ok := elementTypes[t]
	return ok
}

// ValidForPacked reports whether t may be used in a PackedArray.
func (t ElementType) ValidForPacked() bool {
	return elementTypes[t].packed
}

// Size returns the width of one element in bytes, or 0 for an invalid type.
func (t ElementType) Size() int {
	return elementTypes[t].size
}

// IsComplex reports whether elements are (real, imaginary) pairs.
func (t ElementType) IsComplex() bool {
	return t == ComplexReal32 || t == ComplexReal64
}

// String returns the element type name.
func (t ElementType) String() string {
	if info, ok := elementTypes[t]; ok {
		return info.name
	}
	return fmt.Sprintf("ElementType(0x%02x)", uint8(t))
}
