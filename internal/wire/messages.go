package wire

import (
	"encoding/json"
	"fmt"
)

// RequestType discriminates the Request sum type (daemon -> child).
type RequestType string

const (
	ReqHandshake RequestType = "Handshake"
	ReqRender    RequestType = "Render"
	ReqEvent     RequestType = "Event"
	ReqPosition  RequestType = "Position"
	ReqShutdown  RequestType = "Shutdown"
)

// Request is a message sent from the daemon to a child.
type Request struct {
	Type RequestType

	Handshake *HandshakeReq
	Render    *RenderReq
	Event     *EventReq
	Position  *PositionReq
}

type HandshakeReq struct {
	Version int `json:"version"`
}

type RenderReq struct {
	Metadata Metadata      `json:"metadata"`
	Context  RenderContext `json:"context"`
}

type EventReq struct {
	Event Event `json:"event"`
}

type PositionReq struct {
	Input PositionInput `json:"input"`
}

func NewHandshake() Request {
	return Request{Type: ReqHandshake, Handshake: &HandshakeReq{Version: ProtocolVersion}}
}

func NewRender(md Metadata, rc RenderContext) Request {
	return Request{Type: ReqRender, Render: &RenderReq{Metadata: md, Context: rc}}
}

func NewEvent(ev Event) Request {
	return Request{Type: ReqEvent, Event: &EventReq{Event: ev}}
}

func NewPosition(in PositionInput) Request {
	return Request{Type: ReqPosition, Position: &PositionReq{Input: in}}
}

func NewShutdown() Request {
	return Request{Type: ReqShutdown}
}

func (r Request) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case ReqHandshake:
		return taggedMarshal(r.Type, r.Handshake)
	case ReqRender:
		return taggedMarshal(r.Type, r.Render)
	case ReqEvent:
		return taggedMarshal(r.Type, r.Event)
	case ReqPosition:
		return taggedMarshal(r.Type, r.Position)
	case ReqShutdown:
		return taggedMarshal(r.Type, struct{}{})
	default:
		return nil, fmt.Errorf("wire: unknown request type %q", r.Type)
	}
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type RequestType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	r.Type = tag.Type
	switch tag.Type {
	case ReqHandshake:
		r.Handshake = &HandshakeReq{}
		return decodeInto(data, r.Handshake)
	case ReqRender:
		r.Render = &RenderReq{}
		return decodeInto(data, r.Render)
	case ReqEvent:
		r.Event = &EventReq{}
		return decodeInto(data, r.Event)
	case ReqPosition:
		r.Position = &PositionReq{}
		return decodeInto(data, r.Position)
	case ReqShutdown:
		return nil
	default:
		return fmt.Errorf("%w: unknown request type %q", ErrDecode, tag.Type)
	}
}

// ResponseType discriminates the Response sum type (child -> daemon).
type ResponseType string

const (
	RespHandshakeAck ResponseType = "HandshakeAck"
	RespRender       ResponseType = "Render"
	RespEvent        ResponseType = "Event"
	RespPosition     ResponseType = "Position"
	RespError        ResponseType = "Error"
	RespShutdownAck  ResponseType = "ShutdownAck"
)

// Response is a message sent from a child back to the daemon.
type Response struct {
	Type ResponseType

	HandshakeAck *HandshakeAckResp
	Render       *RenderResp
	Event        *EventResp
	Position     *PositionResp
	Error        *ErrorResp
}

type HandshakeAckResp struct {
	Version int  `json:"version"`
	Success bool `json:"success"`
}

type RenderResp struct {
	Commands []DrawingCommand `json:"commands"`
}

type EventResp struct {
	Handled bool         `json:"handled"`
	Action  *EventAction `json:"action,omitempty"`
}

type PositionResp struct {
	Position Position `json:"position"`
}

type ErrorResp struct {
	Message string `json:"message"`
}

func NewHandshakeAck(version int, success bool) Response {
	return Response{Type: RespHandshakeAck, HandshakeAck: &HandshakeAckResp{Version: version, Success: success}}
}

func NewRenderResp(commands []DrawingCommand) Response {
	return Response{Type: RespRender, Render: &RenderResp{Commands: commands}}
}

func NewEventResp(handled bool, action *EventAction) Response {
	return Response{Type: RespEvent, Event: &EventResp{Handled: handled, Action: action}}
}

func NewPositionResp(pos Position) Response {
	return Response{Type: RespPosition, Position: &PositionResp{Position: pos}}
}

func NewErrorResp(message string) Response {
	return Response{Type: RespError, Error: &ErrorResp{Message: message}}
}

func NewShutdownAck() Response {
	return Response{Type: RespShutdownAck}
}

func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case RespHandshakeAck:
		return taggedMarshal(r.Type, r.HandshakeAck)
	case RespRender:
		return taggedMarshal(r.Type, r.Render)
	case RespEvent:
		return taggedMarshal(r.Type, r.Event)
	case RespPosition:
		return taggedMarshal(r.Type, r.Position)
	case RespError:
		return taggedMarshal(r.Type, r.Error)
	case RespShutdownAck:
		return taggedMarshal(r.Type, struct{}{})
	default:
		return nil, fmt.Errorf("wire: unknown response type %q", r.Type)
	}
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type ResponseType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	r.Type = tag.Type
	switch tag.Type {
	case RespHandshakeAck:
		r.HandshakeAck = &HandshakeAckResp{}
		return decodeInto(data, r.HandshakeAck)
	case RespRender:
		r.Render = &RenderResp{}
		return decodeInto(data, r.Render)
	case RespEvent:
		r.Event = &EventResp{}
		return decodeInto(data, r.Event)
	case RespPosition:
		r.Position = &PositionResp{}
		return decodeInto(data, r.Position)
	case RespError:
		r.Error = &ErrorResp{}
		return decodeInto(data, r.Error)
	case RespShutdownAck:
		return nil
	default:
		return fmt.Errorf("%w: unknown response type %q", ErrDecode, tag.Type)
	}
}

// EncodeRequest serializes a Request to its tagged JSON body, for the
// caller to frame and write.
func EncodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest parses a tagged JSON body into a Request.
func DecodeRequest(body []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return req, nil
}

// EncodeResponse serializes a Response to its tagged JSON body.
func EncodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse parses a tagged JSON body into a Response.
func DecodeResponse(body []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return resp, nil
}
