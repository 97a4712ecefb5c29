// Package wire implements the length-framed message codec shared by host and guests
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"io"

	"github.com/NVIDIA/wasmgate/cmn/cos"
)

// Status is a 16-bit response code with named bands. Decoding rounds an
// unrecognized in-band value down to the band's canonical code; a value
// outside [0, 599] fails decoding.
type Status uint16

const (
	StatusNoResponse Status = 0
	StatusContinue   Status = 100

	StatusOK      Status = 200
	StatusCreated Status = 201

	StatusMultipleChoices Status = 300

	StatusBadRequest          Status = 400
	StatusUnauthorized        Status = 401
	StatusPaymentRequired     Status = 402
	StatusForbidden           Status = 403
	StatusNotFound            Status = 404
	StatusMethodNotAllowed    Status = 405
	StatusNotAcceptable       Status = 406
	StatusProxyAuthRequired   Status = 407
	StatusRequestTimeout      Status = 408
	StatusConflict            Status = 409
	StatusGone                Status = 410
	StatusLengthRequired      Status = 411
	StatusPreconditionFailed  Status = 412
	StatusPayloadTooLarge     Status = 413
	StatusURITooLong          Status = 414
	StatusInternalServerError Status = 500
	StatusGatewayTimeout      Status = 504
)

// StatusFromCode normalizes an arbitrary 16-bit code to a named status.
func StatusFromCode(code uint16) (Status, error) {
	switch {
	case code == 0:
		return StatusNoResponse, nil
	case code < 100:
		// fall through to decode failure
	case code < 200:
		return StatusContinue, nil
	case code < 300:
		switch code {
		case 200:
			return StatusOK, nil
		case 201:
			return StatusCreated, nil
		}
		return StatusOK, nil
	case code < 400:
		return StatusMultipleChoices, nil
	case code < 500:
		if code <= uint16(StatusURITooLong) {
			return Status(code), nil
		}
		return StatusBadRequest, nil
	case code < 600:
		if code == uint16(StatusGatewayTimeout) {
			return StatusGatewayTimeout, nil
		}
		return StatusInternalServerError, nil
	}
	return 0, cos.NewErrInvalidData("status code %d", code)
}

func WriteStatus(w io.Writer, s Status) error { return WriteU16(w, uint16(s)) }

func ReadStatus(r io.Reader) (Status, error) {
	code, err := ReadU16(r)
	if err != nil {
		return 0, err
	}
	return StatusFromCode(code)
}
