// Package codec implements the self-describing, forward-compatible binary
// serialization spec.md §4.3 requires for the outer envelope and the inner
// plaintext tagged union.
//
// Both wire formats use github.com/fxamacker/cbor/v2 with small-integer map
// keys: CBOR's canonical map decoding already ignores unrecognized keys, so
// adding a field to a future version cannot break older decoders. The
// tagged-union discriminator (InnerMessage.Kind) is handled explicitly so an
// unrecognized kind value decodes to a domain.UnknownInner instead of
// failing, per spec.md's "unknown variants surface as Unknown" requirement.
package codec
