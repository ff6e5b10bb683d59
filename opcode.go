// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package f2d

// DataTag is the leading varint of every record and fixes the payload
// shape.
type DataTag uint32

const (
	// No payload.
	DataTagVoid DataTag = 0

	// One byte.
	DataTagByte DataTag = 1

	// Little-endian u32.
	DataTagInt DataTag = 2

	// Little-endian f32.
	DataTagFloat DataTag = 3

	// Little-endian f64.
	DataTagDouble DataTag = 4

	// Unsigned varint.
	DataTagVarint DataTag = 5

	// Two sign-in-LSB varint deltas against the running offset.
	DataTagPoint DataTag = 6

	// Compound object marker. A begin marker carries the object type.
	DataTagObject DataTag = 7

	// Varint length + UTF-8 bytes.
	DataTagString DataTag = 8

	// The eight counted array variants.
	DataTagByteArray   DataTag = 9
	DataTagIntArray    DataTag = 10
	DataTagFloatArray  DataTag = 11
	DataTagDoubleArray DataTag = 12
	DataTagVarintArray DataTag = 13
	DataTagPointArray  DataTag = 14
	DataTagStringArray DataTag = 15
	DataTagIndexArray  DataTag = 16

	// Fixed-layout records. Their leading semantic tag must equal
	// SemTagArc.
	DataTagArc         DataTag = 17
	DataTagCircle      DataTag = 18
	DataTagCircularArc DataTag = 19
)

// SemTag is the second varint of a record and fixes its destination.
type SemTag uint32

const (
	// The value belongs to the next expected field of the open compound
	// object.
	SemTagObjectMember SemTag = 0

	// Fixed-purpose decoder state updates.
	SemTagColor      SemTag = 1
	SemTagFill       SemTag = 2
	SemTagFillOff    SemTag = 3
	SemTagLineWeight SemTag = 4
	SemTagLayer      SemTag = 5
	SemTagLink       SemTag = 6
	SemTagFontRef    SemTag = 7
	SemTagObjectID   SemTag = 8

	// Directly drawable payloads.
	SemTagPolyline SemTag = 9
	SemTagDot      SemTag = 10
	SemTagArc      SemTag = 11

	// Compound object lifecycle.
	SemTagBeginObject SemTag = 12
	SemTagEndObject   SemTag = 13
)

// ObjTag identifies the type of a compound object.
type ObjTag uint32

const (
	ObjTagSheet        ObjTag = 0
	ObjTagViewport     ObjTag = 1
	ObjTagClip         ObjTag = 2
	ObjTagPolyTriangle ObjTag = 3
	ObjTagRaster       ObjTag = 4
	ObjTagText         ObjTag = 5
	ObjTagFontDef      ObjTag = 6

	// objTagUnknown is pushed for unrecognized begin markers so the stack
	// stays balanced while the error is reported.
	objTagUnknown ObjTag = 0xFFFF
)
