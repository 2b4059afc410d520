package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/croppath"
)

// AxisExpression renders axis as an ffmpeg expression of the frame number n.
// frameScale converts output frame numbers to knot frame indices
// (sample fps / source fps); 1 evaluates the knots on n directly.
//
// Before the first knot and after the last the value is flat. Between knots
// it is the linear segment rounded to the nearest pixel.
func AxisExpression(axis croppath.Axis, frameScale float64) string {
	knots := axis.Knots()
	if len(knots) == 0 {
		return "0"
	}

	frame := "n"
	if frameScale > 0 && frameScale != 1 {
		frame = "(n*" + strconv.FormatFloat(frameScale, 'f', -1, 64) + ")"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "if(lt(%s,%d),%d,", frame, knots[0].Frame, knots[0].Value)
	for i := 1; i < len(knots); i++ {
		lo, hi := knots[i-1], knots[i]
		fmt.Fprintf(&b, "if(lt(%s,%d),", frame, hi.Frame)
		if lo.Value == hi.Value {
			fmt.Fprintf(&b, "%d,", lo.Value)
		} else {
			fmt.Fprintf(&b, "floor(%d+%d*(%s-%d)/%d+0.5),",
				lo.Value, hi.Value-lo.Value, frame, lo.Frame, hi.Frame-lo.Frame)
		}
	}
	b.WriteString(strconv.Itoa(knots[len(knots)-1].Value))
	b.WriteString(strings.Repeat(")", len(knots)))
	return b.String()
}

// FilterGraph builds the filtergraph that crops input video 0 into label [v].
func FilterGraph(path *croppath.CropPath, frameScale float64) string {
	return fmt.Sprintf("[0:v]crop=w=%d:h=%d:x='%s':y='%s'[v]",
		path.Size, path.Size,
		AxisExpression(path.X, frameScale),
		AxisExpression(path.Y, frameScale),
	)
}
