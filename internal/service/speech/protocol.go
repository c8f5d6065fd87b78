package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolVersion 火山引擎 WebSocket 二进制协议版本
const ProtocolVersion = 0b0001

// MessageType 消息类型
type MessageType uint8

const (
	FullClientRequest       MessageType = 0b0001
	AudioOnlyRequest        MessageType = 0b0010
	FullServerResponse      MessageType = 0b1001
	AudioOnlyServerResponse MessageType = 0b1011
	ErrorMessage            MessageType = 0b1111
)

// MessageFlags 决定 header 之后是否跟随 sequence 与 event 字段。
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	// NegativeSequenceNumber 负数 sequence，表示最后一包
	NegativeSequenceNumber MessageFlags = 0b0011
	WithEvent              MessageFlags = 0b0100

	sequenceMask MessageFlags = 0b0011
)

// EventType 服务端事件类型
type EventType int32

const (
	EventTypeNone               EventType = 0
	EventTypeStartConnection    EventType = 1
	EventTypeFinishConnection   EventType = 2
	EventTypeConnectionStarted  EventType = 50
	EventTypeConnectionFailed   EventType = 51
	EventTypeConnectionFinished EventType = 52
	EventTypeSessionStarted     EventType = 150
	EventTypeSessionFinished    EventType = 152
	EventTypeSessionFailed      EventType = 153
)

// SerializationMethod 序列化方法
type SerializationMethod uint8

const (
	NoSerialization   SerializationMethod = 0b0000
	JSONSerialization SerializationMethod = 0b0001
)

// CompressionMethod 压缩方法
type CompressionMethod uint8

const (
	NoCompression   CompressionMethod = 0b0000
	GzipCompression CompressionMethod = 0b0001
)

// Header 4 字节消息头，每个字段占半字节（Reserved 占一字节）。
type Header struct {
	ProtocolVersion     uint8
	HeaderSize          uint8 // 以 4 字节为单位
	MessageType         MessageType
	MessageFlags        MessageFlags
	SerializationMethod SerializationMethod
	CompressionMethod   CompressionMethod
	Reserved            uint8
}

// Message 一帧完整的协议消息
type Message struct {
	Header      Header
	Sequence    int32
	EventType   EventType
	SessionID   string
	ConnectID   string
	ErrorCode   uint32
	PayloadSize uint32
	Payload     []byte
}

// NewHeader 创建新的消息头
func NewHeader(msgType MessageType, flags MessageFlags, serialization SerializationMethod, compression CompressionMethod) Header {
	return Header{
		ProtocolVersion:     ProtocolVersion,
		HeaderSize:          1,
		MessageType:         msgType,
		MessageFlags:        flags,
		SerializationMethod: serialization,
		CompressionMethod:   compression,
	}
}

// Encode 编码消息头为4字节
func (h *Header) Encode() []byte {
	return []byte{
		h.ProtocolVersion<<4 | h.HeaderSize&0x0F,
		uint8(h.MessageType)<<4 | uint8(h.MessageFlags)&0x0F,
		uint8(h.SerializationMethod)<<4 | uint8(h.CompressionMethod)&0x0F,
		h.Reserved,
	}
}

// DecodeHeader 从4字节解码消息头
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("header data too short: got %d, need 4", len(data))
	}

	h := &Header{
		ProtocolVersion:     data[0] >> 4,
		HeaderSize:          data[0] & 0x0F,
		MessageType:         MessageType(data[1] >> 4),
		MessageFlags:        MessageFlags(data[1] & 0x0F),
		SerializationMethod: SerializationMethod(data[2] >> 4),
		CompressionMethod:   CompressionMethod(data[2] & 0x0F),
		Reserved:            data[3],
	}
	if h.ProtocolVersion != ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.ProtocolVersion)
	}
	return h, nil
}

func (m *Message) hasSequence() bool {
	switch m.Header.MessageFlags & sequenceMask {
	case PositiveSequenceNumber, NegativeSequenceNumber:
		return true
	}
	return false
}

func (m *Message) hasEvent() bool {
	return m.Header.MessageFlags&WithEvent == WithEvent
}

// IsLastPacket 判断是否为最后一包
func (m *Message) IsLastPacket() bool {
	switch m.Header.MessageFlags & sequenceMask {
	case LastPacketNoSequence, NegativeSequenceNumber:
		return true
	}
	return false
}

// IsErrorMessage 判断是否为错误消息
func (m *Message) IsErrorMessage() bool {
	return m.Header.MessageType == ErrorMessage
}

// 连接级事件不携带 session id，连接建立/失败/结束事件额外携带 connect id。
func eventSkipsSessionID(event EventType) bool {
	switch event {
	case EventTypeStartConnection, EventTypeFinishConnection,
		EventTypeConnectionStarted, EventTypeConnectionFailed, EventTypeConnectionFinished:
		return true
	}
	return false
}

func eventHasConnectID(event EventType) bool {
	switch event {
	case EventTypeConnectionStarted, EventTypeConnectionFailed, EventTypeConnectionFinished:
		return true
	}
	return false
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeSized(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readUint32(r io.Reader, field string) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", field, err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readSized(r io.Reader, field string) (string, error) {
	size, err := readUint32(r, field+" size")
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", field, err)
	}
	return string(data), nil
}

// EncodeMessage 编码完整消息：header、可选 sequence、可选事件字段、payload 长度与 payload。
func EncodeMessage(msg *Message) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 16+len(msg.Payload)))
	buf.Write(msg.Header.Encode())

	if msg.hasSequence() {
		writeUint32(buf, uint32(msg.Sequence))
	}

	if msg.hasEvent() {
		writeUint32(buf, uint32(msg.EventType))
		if !eventSkipsSessionID(msg.EventType) {
			writeSized(buf, msg.SessionID)
		}
		if eventHasConnectID(msg.EventType) {
			writeSized(buf, msg.ConnectID)
		}
	}

	if msg.Header.MessageType == ErrorMessage {
		writeUint32(buf, msg.ErrorCode)
	}
	writeUint32(buf, msg.PayloadSize)
	buf.Write(msg.Payload)

	return buf.Bytes(), nil
}

// DecodeMessage 解码完整消息
func DecodeMessage(reader io.Reader) (*Message, error) {
	var raw [4]byte
	if _, err := io.ReadFull(reader, raw[:]); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	header, err := DecodeHeader(raw[:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	msg := &Message{Header: *header}

	// 跳过扩展 header
	if extra := int(header.HeaderSize)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, reader, int64(extra)); err != nil {
			return nil, fmt.Errorf("failed to read extended header: %w", err)
		}
	}

	if msg.hasSequence() {
		seq, err := readUint32(reader, "sequence")
		if err != nil {
			return nil, err
		}
		msg.Sequence = int32(seq)
	}

	if msg.hasEvent() {
		event, err := readUint32(reader, "event type")
		if err != nil {
			return nil, err
		}
		msg.EventType = EventType(int32(event))

		if !eventSkipsSessionID(msg.EventType) {
			if msg.SessionID, err = readSized(reader, "session id"); err != nil {
				return nil, err
			}
		}
		if eventHasConnectID(msg.EventType) {
			if msg.ConnectID, err = readSized(reader, "connect id"); err != nil {
				return nil, err
			}
		}
	}

	if header.MessageType == ErrorMessage {
		if msg.ErrorCode, err = readUint32(reader, "error code"); err != nil {
			return nil, err
		}
	}
	if msg.PayloadSize, err = readUint32(reader, "payload size"); err != nil {
		return nil, err
	}

	if msg.PayloadSize > 0 {
		msg.Payload = make([]byte, msg.PayloadSize)
		if _, err := io.ReadFull(reader, msg.Payload); err != nil {
			return nil, fmt.Errorf("failed to read payload (expected %d bytes): %w", msg.PayloadSize, err)
		}
	}

	return msg, nil
}

// CreateFullClientRequest 创建携带 JSON 参数的首包
func CreateFullClientRequest(payload []byte, compression CompressionMethod) *Message {
	return &Message{
		Header:      NewHeader(FullClientRequest, NoSequenceNumber, JSONSerialization, compression),
		PayloadSize: uint32(len(payload)),
		Payload:     payload,
	}
}

// CreateAudioOnlyRequest 创建音频包，最后一包使用负数 sequence。
func CreateAudioOnlyRequest(audioData []byte, sequence int32, isLast bool, compression CompressionMethod) *Message {
	flags := NoSequenceNumber
	switch {
	case isLast && sequence != 0:
		flags = NegativeSequenceNumber
		sequence = -sequence
	case isLast:
		flags = LastPacketNoSequence
	case sequence > 0:
		flags = PositiveSequenceNumber
	}

	return &Message{
		Header:      NewHeader(AudioOnlyRequest, flags, NoSerialization, compression),
		Sequence:    sequence,
		PayloadSize: uint32(len(audioData)),
		Payload:     audioData,
	}
}
