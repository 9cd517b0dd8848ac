package runtime

// Canonical helper names. Names are stored verbatim in the
// registry's cache map; generic helpers additionally mangle their type
// arguments onto the base name (see Registry.GetGeneric).
const (
	NameByteSwap32  = "byteswap32"
	NameByteSwap64  = "byteswap64"
	NameByteSwap128 = "byteswap128"
	NameByteSwap256 = "byteswap256"

	NameU128Add    = "u128_add"
	NameU128Sub    = "u128_sub"
	NameU128Mul    = "u128_mul"
	NameU128Lt     = "u128_lt"
	NameU128DivMod = "u128_divmod"
	NameU256Add    = "u256_add"
	NameU256Sub    = "u256_sub"
	NameU256Mul    = "u256_mul"
	NameU256Lt     = "u256_lt"
	NameU256DivMod = "u256_divmod"

	NameShl128 = "shl128"
	NameShr128 = "shr128"
	NameShl256 = "shl256"
	NameShr256 = "shr256"

	NameI32AddChecked = "i32_add_checked"
	NameI64AddChecked = "i64_add_checked"
	NameI32SubChecked = "i32_sub_checked"
	NameI64SubChecked = "i64_sub_checked"
	NameI32MulChecked = "i32_mul_checked"
	NameI64MulChecked = "i64_mul_checked"

	NameU8RangeCheck  = "u8_range_check"
	NameU16RangeCheck = "u16_range_check"

	NameDowncastU64ToU32  = "downcast_u64_u32"
	NameDowncastU128ToU32 = "downcast_u128_u32"
	NameDowncastU128ToU64 = "downcast_u128_u64"
	NameDowncastU256ToU32  = "downcast_u256_u32"
	NameDowncastU256ToU64  = "downcast_u256_u64"
	NameDowncastU256ToU128 = "downcast_u256_u128"

	NameAllBytesZero32  = "all_bytes_zero32"
	NameAllBytesZero256 = "all_bytes_zero256"

	NameHeapEqual = "heap_eq"
	NameVecHeapEq = "vec_heap_eq"

	NameVecLenInc  = "vec_len_inc"
	NameVecLenDec  = "vec_len_dec"
	NameVecSwap    = "vec_swap"
	NameVecBorrow  = "vec_borrow"
	NameVecPopBack = "vec_pop_back"

	NameStorageNextSlot   = "storage_next_slot"
	NameStorageObjectSlot = "storage_object_slot"
)
