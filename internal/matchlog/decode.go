package matchlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// rawFrame mirrors the wire shape before tuples are validated.
type rawFrame struct {
	Left  []json.RawMessage `json:"left"`
	Right []json.RawMessage `json:"right"`
	Ball  json.RawMessage   `json:"ball"`
}

type rawDocument struct {
	GameLog []rawFrame `json:"game_log"`
}

// decodeDocument is the single place where tuple-shaped records are turned
// into named samples.
func decodeDocument(r io.Reader) ([]Frame, error) {
	var doc rawDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	frames := make([]Frame, 0, len(doc.GameLog))
	for i, rf := range doc.GameLog {
		left, err := decodePlayers(rf.Left)
		if err != nil {
			return nil, fmt.Errorf("frame %d left: %w", i, err)
		}
		right, err := decodePlayers(rf.Right)
		if err != nil {
			return nil, fmt.Errorf("frame %d right: %w", i, err)
		}
		ball, err := decodeBall(rf.Ball)
		if err != nil {
			return nil, fmt.Errorf("frame %d ball: %w", i, err)
		}
		frames = append(frames, Frame{Left: left, Right: right, Ball: ball})
	}
	return frames, nil
}

func decodePlayers(raws []json.RawMessage) ([]PlayerSample, error) {
	samples := make([]PlayerSample, 0, len(raws))
	for j, raw := range raws {
		fields, err := decodeTuple(raw, 4)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", j, err)
		}
		id, err := decodeNumber(fields[0])
		if err != nil {
			return nil, fmt.Errorf("sample %d id: %w", j, err)
		}
		x, err := decodeNumber(fields[2])
		if err != nil {
			return nil, fmt.Errorf("sample %d x: %w", j, err)
		}
		z, err := decodeNumber(fields[3])
		if err != nil {
			return nil, fmt.Errorf("sample %d z: %w", j, err)
		}
		samples = append(samples, PlayerSample{ID: int(id), X: x, Z: z})
	}
	return samples, nil
}

func decodeBall(raw json.RawMessage) (BallSample, error) {
	fields, err := decodeTuple(raw, 2)
	if err != nil {
		return BallSample{}, err
	}
	x, err := decodeNumber(fields[0])
	if err != nil {
		return BallSample{}, fmt.Errorf("x: %w", err)
	}
	z, err := decodeNumber(fields[1])
	if err != nil {
		return BallSample{}, fmt.Errorf("z: %w", err)
	}
	return BallSample{X: x, Z: z}, nil
}

// decodeTuple unmarshals a JSON array and checks its arity.
func decodeTuple(raw json.RawMessage, arity int) ([]json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: missing", ErrMalformedSample)
	}
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: not an array", ErrMalformedSample)
	}
	if len(fields) != arity {
		return nil, fmt.Errorf("%w: want %d elements, got %d", ErrMalformedSample, arity, len(fields))
	}
	return fields, nil
}

// decodeNumber accepts a JSON number or a string holding one.
func decodeNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%w: %s is not numeric", ErrMalformedSample, string(raw))
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrMalformedSample, s)
	}
	return f, nil
}
