package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tomasstrnad1997/sweeper/history"
	"github.com/tomasstrnad1997/sweeper/mines"
)

type MessageType byte

const (
	MoveCommand MessageType = 0x01
	TextMessage MessageType = 0x02
	StartGame   MessageType = 0x04
	CellUpdate  MessageType = 0x05
	GameEnd     MessageType = 0x07
	ReplayStep  MessageType = 0x09
)

type GameEndType byte

const (
	Win     GameEndType = 0x01
	Loss    GameEndType = 0x02
	Aborted GameEndType = 0x03
)

const (
	HeaderLength         = 6
	UpdateCellByteLength = 9
	replayStepHeader     = 3*4 + 1
	movePayloadLength    = 1 + 2*4
)

var (
	ErrInvalidPayloadSize = errors.New("invalid payload size")
	ErrUnknownMessage     = errors.New("unknown message type")
)

type GameParams struct {
	Size  int
	Mines int
}

type Step struct {
	MoveNumber int
	X          int
	Y          int
	Result     mines.MoveResultType
	Updates    []mines.UpdatedCell
}

// GameEndFor maps a finished game outcome to its wire value.
func GameEndFor(outcome history.Outcome) GameEndType {
	switch outcome {
	case history.Won:
		return Win
	case history.Lost:
		return Loss
	default:
		return Aborted
	}
}

func PeekType(data []byte) (MessageType, error) {
	if len(data) < HeaderLength {
		return 0, fmt.Errorf("Data too short to decode")
	}
	return MessageType(data[0]), nil
}

func checkAndDecodeLength(data []byte, message MessageType) (int, error) {
	if len(data) < HeaderLength {
		return 0, fmt.Errorf("Data too short to decode")
	}
	if MessageType(data[0]) != message {
		return 0, fmt.Errorf("Invalid message type for command E:%d R:%d", message, data[0])
	}
	payloadLength := int(binary.BigEndian.Uint32(data[2:6]))
	if payloadLength != len(data)-HeaderLength {
		return payloadLength, fmt.Errorf("%w: header says %d, got %d", ErrInvalidPayloadSize, payloadLength, len(data)-HeaderLength)
	}
	return payloadLength, nil
}

func intToBytes(i int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(int32(i)))
	return buf
}

func bytesToInt(bytes []byte) int {
	return int(int32(binary.BigEndian.Uint32(bytes)))
}

func writeHeader(buf *bytes.Buffer, tp MessageType, length int) error {
	buf.WriteByte(byte(tp))
	// Reserved byte for future use
	buf.WriteByte(byte(0x00))
	err := binary.Write(buf, binary.BigEndian, uint32(length))
	if err != nil {
		return fmt.Errorf("Failed to write length (%d)", length)
	}
	return nil
}

func EncodeTextMessage(message string) ([]byte, error) {
	var buf bytes.Buffer
	payload := []byte(message)
	if err := writeHeader(&buf, TextMessage, len(payload)); err != nil {
		return nil, err
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

func DecodeTextMessage(data []byte) (string, error) {
	if _, err := checkAndDecodeLength(data, TextMessage); err != nil {
		return "", err
	}
	return string(data[HeaderLength:]), nil
}

func EncodeGameStart(params GameParams) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, StartGame, 2*4); err != nil {
		return nil, err
	}
	buf.Write(intToBytes(params.Size))
	buf.Write(intToBytes(params.Mines))
	return buf.Bytes(), nil
}

func DecodeGameStart(data []byte) (*GameParams, error) {
	payloadLength, err := checkAndDecodeLength(data, StartGame)
	if err != nil {
		return nil, err
	}
	if payloadLength != 2*4 {
		return nil, fmt.Errorf("decode game start payload incorrect length (%d)", payloadLength)
	}
	payload := data[HeaderLength:]
	return &GameParams{Size: bytesToInt(payload[0:4]), Mines: bytesToInt(payload[4:8])}, nil
}

func EncodeGameEnd(endType GameEndType) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, GameEnd, 1); err != nil {
		return nil, err
	}
	buf.WriteByte(byte(endType))
	return buf.Bytes(), nil
}

func DecodeGameEnd(data []byte) (GameEndType, error) {
	payloadLength, err := checkAndDecodeLength(data, GameEnd)
	if err != nil {
		return 0, err
	}
	if payloadLength != 1 {
		return 0, ErrInvalidPayloadSize
	}
	return GameEndType(data[HeaderLength]), nil
}

func encodeCellUpdate(cell mines.UpdatedCell) []byte {
	data := make([]byte, UpdateCellByteLength)
	copy(data[0:4], intToBytes(cell.X))
	copy(data[4:8], intToBytes(cell.Y))
	data[8] = cell.Value
	return data
}

func decodeCellUpdate(data []byte) (*mines.UpdatedCell, error) {
	if len(data) != UpdateCellByteLength {
		return nil, fmt.Errorf("incorrect byte length to decode cell update (%d)", len(data))
	}
	cell := &mines.UpdatedCell{
		X:     bytesToInt(data[0:4]),
		Y:     bytesToInt(data[4:8]),
		Value: data[8]}
	return cell, nil
}

func decodeCellUpdates(payload []byte) ([]mines.UpdatedCell, error) {
	if len(payload)%UpdateCellByteLength != 0 {
		return nil, fmt.Errorf("update cells payload length mismatch %d", len(payload))
	}
	cells := make([]mines.UpdatedCell, len(payload)/UpdateCellByteLength)
	for i := range cells {
		cell, err := decodeCellUpdate(payload[i*UpdateCellByteLength : (i+1)*UpdateCellByteLength])
		if err != nil {
			return nil, err
		}
		cells[i] = *cell
	}
	return cells, nil
}

func EncodeCellUpdates(cells []mines.UpdatedCell) ([]byte, error) {
	var buf bytes.Buffer
	payloadLength := len(cells) * UpdateCellByteLength
	if err := writeHeader(&buf, CellUpdate, payloadLength); err != nil {
		return nil, err
	}
	for _, cell := range cells {
		buf.Write(encodeCellUpdate(cell))
	}
	if payloadLength+HeaderLength != buf.Len() {
		return nil, fmt.Errorf("Incorrect payload length while encoding cell updates")
	}
	return buf.Bytes(), nil
}

func DecodeCellUpdates(data []byte) ([]mines.UpdatedCell, error) {
	if _, err := checkAndDecodeLength(data, CellUpdate); err != nil {
		return nil, err
	}
	return decodeCellUpdates(data[HeaderLength:])
}

func EncodeReplayStep(step Step) ([]byte, error) {
	var buf bytes.Buffer
	payloadLength := replayStepHeader + len(step.Updates)*UpdateCellByteLength
	if err := writeHeader(&buf, ReplayStep, payloadLength); err != nil {
		return nil, err
	}
	buf.Write(intToBytes(step.MoveNumber))
	buf.Write(intToBytes(step.X))
	buf.Write(intToBytes(step.Y))
	buf.WriteByte(byte(step.Result))
	for _, cell := range step.Updates {
		buf.Write(encodeCellUpdate(cell))
	}
	return buf.Bytes(), nil
}

func DecodeReplayStep(data []byte) (*Step, error) {
	payloadLength, err := checkAndDecodeLength(data, ReplayStep)
	if err != nil {
		return nil, err
	}
	if payloadLength < replayStepHeader {
		return nil, fmt.Errorf("%w: replay step of %d bytes", ErrInvalidPayloadSize, payloadLength)
	}
	payload := data[HeaderLength:]
	step := &Step{
		MoveNumber: bytesToInt(payload[0:4]),
		X:          bytesToInt(payload[4:8]),
		Y:          bytesToInt(payload[8:12]),
		Result:     mines.MoveResultType(payload[12]),
	}
	if step.Updates, err = decodeCellUpdates(payload[replayStepHeader:]); err != nil {
		return nil, err
	}
	return step, nil
}

func EncodeMove(move mines.Move) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, MoveCommand, movePayloadLength); err != nil {
		return nil, err
	}
	buf.WriteByte(byte(move.Type))
	buf.Write(intToBytes(move.X))
	buf.Write(intToBytes(move.Y))
	return buf.Bytes(), nil
}

func DecodeMove(data []byte) (*mines.Move, error) {
	payloadLength, err := checkAndDecodeLength(data, MoveCommand)
	if err != nil {
		return nil, err
	}
	if payloadLength != movePayloadLength {
		return nil, fmt.Errorf("%w: move of %d bytes", ErrInvalidPayloadSize, payloadLength)
	}
	payload := data[HeaderLength:]
	return &mines.Move{
		Type: mines.MoveType(payload[0]),
		X:    bytesToInt(payload[1:5]),
		Y:    bytesToInt(payload[5:9]),
	}, nil
}
