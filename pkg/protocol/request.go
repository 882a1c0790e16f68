package protocol

// Request is one outbound packet. Implementations know their command byte
// and produce their body; the body may be empty.
type Request interface {
	// Cmd returns the command byte placed in the packet header
	Cmd() byte

	// EncodeBody serializes the request body
	EncodeBody() ([]byte, error)
}

// Response decodes the body of a successful reply. DecodeBody is only
// invoked when the response status is success; error responses never
// reach it.
type Response interface {
	DecodeBody(body []byte) error
}

// EncodePacket frames a request into its full wire form: header followed
// by body.
func EncodePacket(req Request) ([]byte, error) {
	body, err := req.EncodeBody()
	if err != nil {
		return nil, err
	}

	header := Header{
		BodyLength: int64(len(body)),
		Command:    req.Cmd(),
		Status:     StatusOK,
	}

	return append(header.Encode(), body...), nil
}

// DecodePacket interprets a parsed header plus exactly header.BodyLength
// body bytes into resp.
//
// On a nonzero status the body is not meaningful and is not decoded; the
// numeric code is surfaced as a ProtocolError instead.
func DecodePacket(header Header, body []byte, resp Response) error {
	if !header.OK() {
		return NewStatusError(header.Status)
	}

	if int64(len(body)) != header.BodyLength {
		return NewFramingError("body length mismatch: header declares %d, have %d", header.BodyLength, len(body))
	}

	return resp.DecodeBody(body)
}
