package entity

type ChannelOrder uint8

const (
	ChannelOrderBGR ChannelOrder = iota
	ChannelOrderRGB
)

func (o ChannelOrder) String() string {
	switch o {
	case ChannelOrderBGR:
		return "BGR"
	case ChannelOrderRGB:
		return "RGB"
	default:
		return "unknown"
	}
}

// Frame is a decoded image with interleaved 8-bit samples, row-major.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Order    ChannelOrder
	Pix      []byte
}

func (f *Frame) Empty() bool {
	return f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pix) == 0
}

// IsColor reports whether the frame is a well-formed 3-channel image.
func (f *Frame) IsColor() bool {
	if f.Empty() {
		return false
	}
	return f.Channels == 3 && len(f.Pix) == f.Width*f.Height*3
}

// WithOrder returns a copy of f with samples reordered to order. Only
// 3-channel frames are reordered.
func (f Frame) WithOrder(order ChannelOrder) Frame {
	out := f
	out.Pix = make([]byte, len(f.Pix))
	copy(out.Pix, f.Pix)
	if f.Order == order || f.Channels != 3 {
		out.Order = order
		return out
	}
	for i := 0; i+2 < len(out.Pix); i += 3 {
		out.Pix[i], out.Pix[i+2] = out.Pix[i+2], out.Pix[i]
	}
	out.Order = order
	return out
}
