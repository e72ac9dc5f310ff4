package protocol

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var ErrUnknownMessage = errors.New("unknown message code")

// Every frame on the wire is a CBOR envelope with the message code in front
// of the encoded message body.
type Envelope struct {
	Code    MessageCode
	Payload cbor.RawMessage
}

func Encode(message Message) ([]byte, error) {
	payload, err := cbor.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s: %w", message.Type(), err)
	}

	return cbor.Marshal(Envelope{
		Code:    message.Type(),
		Payload: payload,
	})
}

func decodeAs[T Message](payload []byte) (Message, error) {
	var message T
	if err := cbor.Unmarshal(payload, &message); err != nil {
		return nil, err
	}
	return message, nil
}

func Decode(data []byte) (Message, error) {
	var envelope Envelope
	if err := cbor.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	var (
		message Message
		err     error
	)
	switch envelope.Code {
	case N_REGISTER:
		message, err = decodeAs[Register](envelope.Payload)
	case N_LOADEDMAP:
		message, err = decodeAs[LoadedMap](envelope.Payload)
	case N_PLAYERUPDATE:
		message, err = decodeAs[PlayerUpdate](envelope.Payload)
	case N_USEITEM:
		message, err = decodeAs[UseItem](envelope.Payload)
	case N_PICKUP:
		message, err = decodeAs[PickUp](envelope.Payload)
	case N_FINISHROUND:
		message, err = decodeAs[FinishRound](envelope.Payload)
	case N_PREPAREROUND:
		message, err = decodeAs[PrepareRound](envelope.Payload)
	case N_PLAYERCOUNT:
		message, err = decodeAs[PlayerCountChanged](envelope.Payload)
	case N_LOADEDTOOSLOW:
		message, err = decodeAs[LoadedTooSlow](envelope.Payload)
	case N_STARTROUND:
		message, err = decodeAs[StartRound](envelope.Payload)
	case N_STARTRACE:
		message, err = decodeAs[StartRace](envelope.Payload)
	case N_RACEUPDATE:
		message, err = decodeAs[RaceUpdate](envelope.Payload)
	case N_PICKUPSTATE:
		message, err = decodeAs[PickUpStateChange](envelope.Payload)
	case N_HITBYITEM:
		message, err = decodeAs[HitByItem](envelope.Payload)
	case N_ENDROUND:
		message, err = decodeAs[EndRound](envelope.Payload)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, envelope.Code)
	}
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", envelope.Code, err)
	}

	return message, nil
}

// DecodeClient decodes a frame sent by a client, rejecting server-only
// messages.
func DecodeClient(data []byte) (ClientMessage, error) {
	message, err := Decode(data)
	if err != nil {
		return nil, err
	}

	clientMessage, ok := message.(ClientMessage)
	if !ok {
		return nil, fmt.Errorf("%s is not a client message", message.Type())
	}
	return clientMessage, nil
}
