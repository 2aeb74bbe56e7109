/*
Copyright 2025 Intel Corporation

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package hal

import (
	"encoding/binary"
	"fmt"
)

// MPAM MSC access over PCC uses SCMI-style messages of the MPAM firmware
// protocol.
const (
	MpamFbProtocolID  = 0x1a
	MpamMsgTypeCmd    = 0x0
	MpamMscReadCmdID  = 0x4
	MpamMscWriteCmdID = 0x5
	MpamPccCmdSuccess = 0x0

	// PccReadFailure is returned by reads whose PCC command failed.
	PccReadFailure = 0xffffffff
)

// PCCChannel performs one command/response exchange on a PCC subspace.
type PCCChannel interface {
	Transact(subspace uint32, msg []byte) ([]byte, error)
}

// ScmiHeader is the 32-bit SCMI protocol message header.
type ScmiHeader struct {
	MessageID   uint8
	MessageType uint8
	ProtocolID  uint8
	Token       uint16
}

// Encode packs the header: token [27:18], protocol [17:10], type [9:8],
// message id [7:0].
func (h ScmiHeader) Encode() uint32 {
	return uint32(h.Token&0x3ff)<<18 |
		uint32(h.ProtocolID)<<10 |
		uint32(h.MessageType&0x3)<<8 |
		uint32(h.MessageID)
}

// DecodeScmiHeader unpacks a 32-bit SCMI header.
func DecodeScmiHeader(v uint32) ScmiHeader {
	return ScmiHeader{
		MessageID:   uint8(v),
		MessageType: uint8(v>>8) & 0x3,
		ProtocolID:  uint8(v >> 10),
		Token:       uint16(v>>18) & 0x3ff,
	}
}

// MscReadCmd is the parameter block of an MSC register read.
type MscReadCmd struct {
	MscID  uint32
	Flags  uint32
	Offset uint32
}

// MscWriteCmd is the parameter block of an MSC register write.
type MscWriteCmd struct {
	MscID  uint32
	Flags  uint32
	Value  uint32
	Offset uint32
}

// EncodeMscReadCmd builds a complete read command message.
func EncodeMscReadCmd(token uint16, cmd MscReadCmd) []byte {
	b := make([]byte, 16)
	hdr := ScmiHeader{MessageID: MpamMscReadCmdID, MessageType: MpamMsgTypeCmd, ProtocolID: MpamFbProtocolID, Token: token}
	binary.LittleEndian.PutUint32(b[0:], hdr.Encode())
	binary.LittleEndian.PutUint32(b[4:], cmd.MscID)
	binary.LittleEndian.PutUint32(b[8:], cmd.Flags)
	binary.LittleEndian.PutUint32(b[12:], cmd.Offset)
	return b
}

// EncodeMscWriteCmd builds a complete write command message.
func EncodeMscWriteCmd(token uint16, cmd MscWriteCmd) []byte {
	b := make([]byte, 20)
	hdr := ScmiHeader{MessageID: MpamMscWriteCmdID, MessageType: MpamMsgTypeCmd, ProtocolID: MpamFbProtocolID, Token: token}
	binary.LittleEndian.PutUint32(b[0:], hdr.Encode())
	binary.LittleEndian.PutUint32(b[4:], cmd.MscID)
	binary.LittleEndian.PutUint32(b[8:], cmd.Flags)
	binary.LittleEndian.PutUint32(b[12:], cmd.Value)
	binary.LittleEndian.PutUint32(b[16:], cmd.Offset)
	return b
}

// DecodeMscCmd parses a command message. Exactly one of the returned
// commands is non-nil.
func DecodeMscCmd(msg []byte) (ScmiHeader, *MscReadCmd, *MscWriteCmd, error) {
	if len(msg) < 4 {
		return ScmiHeader{}, nil, nil, fmt.Errorf("pcc message too short (%d bytes)", len(msg))
	}
	hdr := DecodeScmiHeader(binary.LittleEndian.Uint32(msg))
	if hdr.ProtocolID != MpamFbProtocolID {
		return hdr, nil, nil, fmt.Errorf("unexpected protocol id %#x", hdr.ProtocolID)
	}

	switch hdr.MessageID {
	case MpamMscReadCmdID:
		if len(msg) < 16 {
			return hdr, nil, nil, fmt.Errorf("short msc read command (%d bytes)", len(msg))
		}
		return hdr, &MscReadCmd{
			MscID:  binary.LittleEndian.Uint32(msg[4:]),
			Flags:  binary.LittleEndian.Uint32(msg[8:]),
			Offset: binary.LittleEndian.Uint32(msg[12:]),
		}, nil, nil
	case MpamMscWriteCmdID:
		if len(msg) < 20 {
			return hdr, nil, nil, fmt.Errorf("short msc write command (%d bytes)", len(msg))
		}
		return hdr, nil, &MscWriteCmd{
			MscID:  binary.LittleEndian.Uint32(msg[4:]),
			Flags:  binary.LittleEndian.Uint32(msg[8:]),
			Value:  binary.LittleEndian.Uint32(msg[12:]),
			Offset: binary.LittleEndian.Uint32(msg[16:]),
		}, nil
	}
	return hdr, nil, nil, fmt.Errorf("unsupported message id %#x", hdr.MessageID)
}

// EncodeMscReadResp builds a read response: status, value.
func EncodeMscReadResp(status int32, value uint32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:], uint32(status))
	binary.LittleEndian.PutUint32(b[4:], value)
	return b
}

// EncodeMscWriteResp builds a write response: status.
func EncodeMscWriteResp(status int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(status))
	return b
}

// DecodeMscReadResp parses a read response.
func DecodeMscReadResp(resp []byte) (int32, uint32, error) {
	if len(resp) < 8 {
		return 0, 0, fmt.Errorf("short msc read response (%d bytes)", len(resp))
	}
	return int32(binary.LittleEndian.Uint32(resp)), binary.LittleEndian.Uint32(resp[4:]), nil
}

// DecodeMscWriteResp parses a write response.
func DecodeMscWriteResp(resp []byte) (int32, error) {
	if len(resp) < 4 {
		return 0, fmt.Errorf("short msc write response (%d bytes)", len(resp))
	}
	return int32(binary.LittleEndian.Uint32(resp)), nil
}
