// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"encoding/binary"
)

// Serializer converts values of type T to and from a fixed-size binary form.
// All values of a type must encode to exactly Size() bytes.
type Serializer[T any] interface {
	// ToBytes returns the encoded form of the given value.
	ToBytes(T) []byte
	// CopyBytes encodes the given value into the given slice of Size() bytes.
	CopyBytes(T, []byte)
	// FromBytes decodes a value from the given slice of Size() bytes.
	FromBytes([]byte) T
	// Size is the number of bytes of an encoded value.
	Size() int
}

// Validator is an optional extension of a Serializer checking the encoded
// form of a value loaded from disk before it is decoded.
type Validator interface {
	Validate([]byte) error
}

type Uint16Serializer struct{}

func (Uint16Serializer) ToBytes(value uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, value)
}
func (Uint16Serializer) CopyBytes(value uint16, out []byte) {
	binary.LittleEndian.PutUint16(out, value)
}
func (Uint16Serializer) FromBytes(bytes []byte) uint16 {
	return binary.LittleEndian.Uint16(bytes)
}
func (Uint16Serializer) Size() int {
	return 2
}

type Uint32Serializer struct{}

func (Uint32Serializer) ToBytes(value uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, value)
}
func (Uint32Serializer) CopyBytes(value uint32, out []byte) {
	binary.LittleEndian.PutUint32(out, value)
}
func (Uint32Serializer) FromBytes(bytes []byte) uint32 {
	return binary.LittleEndian.Uint32(bytes)
}
func (Uint32Serializer) Size() int {
	return 4
}

type Uint64Serializer struct{}

func (Uint64Serializer) ToBytes(value uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, value)
}
func (Uint64Serializer) CopyBytes(value uint64, out []byte) {
	binary.LittleEndian.PutUint64(out, value)
}
func (Uint64Serializer) FromBytes(bytes []byte) uint64 {
	return binary.LittleEndian.Uint64(bytes)
}
func (Uint64Serializer) Size() int {
	return 8
}

type Int64Serializer struct{}

func (Int64Serializer) ToBytes(value int64) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(value))
}
func (Int64Serializer) CopyBytes(value int64, out []byte) {
	binary.LittleEndian.PutUint64(out, uint64(value))
}
func (Int64Serializer) FromBytes(bytes []byte) int64 {
	return int64(binary.LittleEndian.Uint64(bytes))
}
func (Int64Serializer) Size() int {
	return 8
}

// RawSerializer passes fixed-size byte slices through unchanged. It is used
// by tooling operating on arrays without knowledge of their element type.
type RawSerializer struct {
	ElementSize int
}

func (s RawSerializer) ToBytes(value []byte) []byte {
	res := make([]byte, s.ElementSize)
	copy(res, value)
	return res
}
func (s RawSerializer) CopyBytes(value []byte, out []byte) {
	n := copy(out, value)
	for i := n; i < s.ElementSize; i++ {
		out[i] = 0
	}
}
func (s RawSerializer) FromBytes(bytes []byte) []byte {
	res := make([]byte, s.ElementSize)
	copy(res, bytes)
	return res
}
func (s RawSerializer) Size() int {
	return s.ElementSize
}
