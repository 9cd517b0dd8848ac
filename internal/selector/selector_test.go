package selector

import (
	"testing"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/testing/require"
)

// TestComputeMatchesKnownSolidityExample checks against a well-known
// selector: transfer(address,uint256) = 0xa9059cbb.
func TestComputeMatchesKnownSolidityExample(t *testing.T) {
	got := Compute("transfer", []string{"address", "uint256"})
	require.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, got)
}

func TestCanonicalSignature(t *testing.T) {
	require.Equal(t, "noop()", CanonicalSignature("noop", nil))
	require.Equal(t, "transfer(address,uint256)", CanonicalSignature("transfer", []string{"address", "uint256"}))
}

type fakeResolver struct{ name string }

func (f fakeResolver) StructTupleName(ir.DatatypeHandle, []ir.Type) string { return f.name }

func TestSolidityTypeName(t *testing.T) {
	require.Equal(t, "uint128", SolidityTypeName(ir.U128(), nil))
	require.Equal(t, "uint8[]", SolidityTypeName(ir.Vector(ir.U8()), nil))
	require.Equal(t, "address", SolidityTypeName(ir.Address(), nil))

	h := ir.DatatypeHandle{Module: "0x1::coin", Index: 0}
	got := SolidityTypeName(ir.Struct(h), fakeResolver{name: "(uint64,address)"})
	require.Equal(t, "(uint64,address)", got)
}
