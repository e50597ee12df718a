package wire

import (
	"encoding/json"
	"fmt"
)

// DrawingCommandType discriminates the DrawingCommand sum type.
type DrawingCommandType string

const (
	CmdClear        DrawingCommandType = "Clear"
	CmdFillRect     DrawingCommandType = "FillRect"
	CmdStrokeRect   DrawingCommandType = "StrokeRect"
	CmdFillCircle   DrawingCommandType = "FillCircle"
	CmdStrokeCircle DrawingCommandType = "StrokeCircle"
	CmdLine         DrawingCommandType = "Line"
	CmdText         DrawingCommandType = "Text"
	CmdImage        DrawingCommandType = "Image"
)

// TextAlign is the horizontal alignment of a Text drawing command.
type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

// DrawingCommand is one of the fixed set of drawing primitives the wire
// protocol allows. Exactly one of the typed fields is populated, selected
// by Type.
type DrawingCommand struct {
	Type DrawingCommandType

	Clear        *ClearCmd
	FillRect     *FillRectCmd
	StrokeRect   *StrokeRectCmd
	FillCircle   *FillCircleCmd
	StrokeCircle *StrokeCircleCmd
	Line         *LineCmd
	Text         *TextCmd
	Image        *ImageCmd
}

type ClearCmd struct {
	Color string `json:"color"`
}

type FillRectCmd struct {
	X     int32  `json:"x"`
	Y     int32  `json:"y"`
	W     uint32 `json:"w"`
	H     uint32 `json:"h"`
	Color string `json:"color"`
}

type StrokeRectCmd struct {
	X     int32  `json:"x"`
	Y     int32  `json:"y"`
	W     uint32 `json:"w"`
	H     uint32 `json:"h"`
	Color string `json:"color"`
	Width uint32 `json:"width"`
}

type FillCircleCmd struct {
	CX    int32  `json:"cx"`
	CY    int32  `json:"cy"`
	R     uint32 `json:"r"`
	Color string `json:"color"`
}

type StrokeCircleCmd struct {
	CX    int32  `json:"cx"`
	CY    int32  `json:"cy"`
	R     uint32 `json:"r"`
	Color string `json:"color"`
	Width uint32 `json:"width"`
}

type LineCmd struct {
	X1    int32  `json:"x1"`
	Y1    int32  `json:"y1"`
	X2    int32  `json:"x2"`
	Y2    int32  `json:"y2"`
	Color string `json:"color"`
	Width uint32 `json:"width"`
}

type TextCmd struct {
	Text  string    `json:"text"`
	X     int32     `json:"x"`
	Y     int32     `json:"y"`
	Size  uint32    `json:"size"`
	Color string    `json:"color"`
	Align TextAlign `json:"align"`
}

type ImageCmd struct {
	Path string `json:"path"`
	X    int32  `json:"x"`
	Y    int32  `json:"y"`
	W    uint32 `json:"w"`
	H    uint32 `json:"h"`
}

// Constructors, mostly useful from tests and from the session fallback
// renderer.

func Clear(color string) DrawingCommand {
	return DrawingCommand{Type: CmdClear, Clear: &ClearCmd{Color: color}}
}

func FillRect(x, y int32, w, h uint32, color string) DrawingCommand {
	return DrawingCommand{Type: CmdFillRect, FillRect: &FillRectCmd{X: x, Y: y, W: w, H: h, Color: color}}
}

func (d DrawingCommand) MarshalJSON() ([]byte, error) {
	switch d.Type {
	case CmdClear:
		return taggedMarshal(d.Type, d.Clear)
	case CmdFillRect:
		return taggedMarshal(d.Type, d.FillRect)
	case CmdStrokeRect:
		return taggedMarshal(d.Type, d.StrokeRect)
	case CmdFillCircle:
		return taggedMarshal(d.Type, d.FillCircle)
	case CmdStrokeCircle:
		return taggedMarshal(d.Type, d.StrokeCircle)
	case CmdLine:
		return taggedMarshal(d.Type, d.Line)
	case CmdText:
		return taggedMarshal(d.Type, d.Text)
	case CmdImage:
		return taggedMarshal(d.Type, d.Image)
	default:
		return nil, fmt.Errorf("wire: unknown drawing command type %q", d.Type)
	}
}

func (d *DrawingCommand) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type DrawingCommandType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	d.Type = tag.Type
	switch tag.Type {
	case CmdClear:
		d.Clear = &ClearCmd{}
		return decodeInto(data, d.Clear)
	case CmdFillRect:
		d.FillRect = &FillRectCmd{}
		return decodeInto(data, d.FillRect)
	case CmdStrokeRect:
		d.StrokeRect = &StrokeRectCmd{}
		return decodeInto(data, d.StrokeRect)
	case CmdFillCircle:
		d.FillCircle = &FillCircleCmd{}
		return decodeInto(data, d.FillCircle)
	case CmdStrokeCircle:
		d.StrokeCircle = &StrokeCircleCmd{}
		return decodeInto(data, d.StrokeCircle)
	case CmdLine:
		d.Line = &LineCmd{}
		return decodeInto(data, d.Line)
	case CmdText:
		d.Text = &TextCmd{}
		return decodeInto(data, d.Text)
	case CmdImage:
		d.Image = &ImageCmd{}
		return decodeInto(data, d.Image)
	default:
		return fmt.Errorf("%w: unknown drawing command type %q", ErrDecode, tag.Type)
	}
}

func decodeInto(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
