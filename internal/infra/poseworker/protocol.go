package poseworker

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/port"
)

type request struct {
	Seq    uint64 `json:"seq"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  string `json:"image"`
}

type landmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Visibility *float64 `json:"visibility,omitempty"`
}

type response struct {
	Seq   uint64       `json:"seq"`
	Poses [][]landmark `json:"poses"`
	Error string       `json:"error,omitempty"`
}

// encodeRequest renders one newline-terminated request line.
func encodeRequest(seq uint64, img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	b := img.Bounds()
	line, err := json.Marshal(request{
		Seq:    seq,
		Width:  b.Dx(),
		Height: b.Dy(),
		Image:  base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

func decodeResponse(line []byte, seq uint64) ([][]port.RawLandmark, error) {
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse worker response: %w", err)
	}
	if resp.Seq != seq {
		return nil, fmt.Errorf("worker answered seq %d, want %d", resp.Seq, seq)
	}
	if resp.Error != "" {
		return nil, errors.New("worker: " + resp.Error)
	}

	poses := make([][]port.RawLandmark, len(resp.Poses))
	for i, pose := range resp.Poses {
		poses[i] = make([]port.RawLandmark, len(pose))
		for j, l := range pose {
			poses[i][j] = port.RawLandmark{X: l.X, Y: l.Y, Visibility: l.Visibility}
		}
	}
	return poses, nil
}
