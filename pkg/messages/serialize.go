package messages

import (
	"bytes"
	"fmt"
	"io"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

// vtable slots of the Message table, see message.fbs
const (
	messageSlotType = iota
	messageSlotTimestamp
	messageSlotPayload
	messageNumSlots
)

func SerializeMessage(m *Message) ([]byte, error) {
	b := SerializeMessageFlatbuffer(m)

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress message: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

func DeserializeMessage(data []byte) (*Message, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()

	b, err := io.ReadAll(compReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed message: %v", err)
	}

	message, err := DeserializeMessageFlatbuffer(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return message, nil
}

func SerializeMessageFlatbuffer(m *Message) []byte {
	builder := flatbuffers.NewBuilder(0)

	payload := builder.CreateByteVector(m.Payload)
	messageType := builder.CreateString(string(m.Type))

	builder.StartObject(messageNumSlots)
	builder.PrependUOffsetTSlot(messageSlotType, messageType, 0)
	builder.PrependInt64Slot(messageSlotTimestamp, m.Timestamp, 0)
	builder.PrependUOffsetTSlot(messageSlotPayload, payload, 0)
	messageOffset := builder.EndObject()
	builder.Finish(messageOffset)

	return builder.FinishedBytes()
}

func DeserializeMessageFlatbuffer(b []byte) (message *Message, err error) {
	if len(b) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("buffer too short: %d bytes", len(b))
	}
	// the flatbuffers accessors panic on out of range offsets
	defer func() {
		if r := recover(); r != nil {
			message = nil
			err = fmt.Errorf("malformed message buffer: %v", r)
		}
	}()

	table := &flatbuffers.Table{
		Bytes: b,
		Pos:   flatbuffers.GetUOffsetT(b),
	}

	message = &Message{}
	if o := fieldOffset(table, messageSlotType); o != 0 {
		message.Type = MessageType(table.String(o + table.Pos))
	}
	if o := fieldOffset(table, messageSlotTimestamp); o != 0 {
		message.Timestamp = table.GetInt64(o + table.Pos)
	}
	if o := fieldOffset(table, messageSlotPayload); o != 0 {
		message.Payload = append([]byte(nil), table.ByteVector(o+table.Pos)...)
	}

	return message, nil
}

func fieldOffset(table *flatbuffers.Table, slot int) flatbuffers.UOffsetT {
	return flatbuffers.UOffsetT(table.Offset(flatbuffers.VOffsetT(4 + 2*slot)))
}
