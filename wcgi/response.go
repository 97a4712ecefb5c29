// Package wcgi executes filesystem-resident scripts as short-lived child
// processes behind a CGI/1.1 gateway
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package wcgi

import (
	"bufio"
	"bytes"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
)

const (
	hdrContentType = "Content-Type"
	hdrLocation    = "Location"
	hdrStatus      = "Status"
)

// Response is the parsed output of a CGI child: an optional header block
// terminated by a blank line, then the document.
type Response struct {
	Header textproto.MIMEHeader
	Body   []byte
	Status int
}

// parseOutput splits the child's stdout into headers and body. Output with
// no recognizable header block is served whole with status 200 and is
// classified "raw".
func parseOutput(out []byte) *Response {
	resp := &Response{Status: fasthttp.StatusOK, Body: out, Header: textproto.MIMEHeader{}}

	idx := bytes.Index(out, []byte("\n\n"))
	sep := 2
	if j := bytes.Index(out, []byte("\r\n\r\n")); j >= 0 && (idx < 0 || j < idx) {
		idx, sep = j, 4
	}
	if idx < 0 {
		return resp
	}
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(out[:idx+sep])))
	header, err := tp.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return resp
	}
	resp.Header = header
	resp.Body = out[idx+sep:]
	if fields := strings.Fields(header.Get(hdrStatus)); len(fields) > 0 {
		if code, err := strconv.Atoi(fields[0]); err == nil {
			resp.Status = code
		}
	}
	return resp
}

// Classification per CGI/1.1: a response is a document, a local redirect, a
// client redirect, or a client redirect with document.

func (r *Response) IsDocument() bool {
	return (r.Status >= 200 && r.Status < 300 || r.Status >= 400 && r.Status < 500) &&
		r.Header.Get(hdrContentType) != ""
}

func (r *Response) isRedirect() bool {
	return r.Status == fasthttp.StatusOK && len(r.Body) == 0 &&
		len(r.Header) == 1 && len(r.Header.Values(hdrLocation)) > 0
}

func (r *Response) IsLocalRedirect() bool {
	if !r.isRedirect() {
		return false
	}
	l := r.Header.Get(hdrLocation)
	return l == "" || l[0] == '/' || l[0] == '?'
}

func (r *Response) IsClientRedirect() bool {
	if !r.isRedirect() {
		return false
	}
	l := r.Header.Get(hdrLocation)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func (r *Response) IsClientRedirectWithDocument() bool {
	return r.Status >= 300 && r.Status < 400 &&
		r.Header.Get(hdrLocation) != "" && r.Header.Get(hdrContentType) != ""
}

func (r *Response) Class() string {
	switch {
	case r.IsLocalRedirect():
		return "local-redirect"
	case r.IsClientRedirect():
		return "client-redirect"
	case r.IsClientRedirectWithDocument():
		return "client-redirect-document"
	case r.IsDocument():
		return "document"
	}
	return "raw"
}

func (r *Response) render(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(r.Status)
	for key, vals := range r.Header {
		if key == hdrStatus {
			continue
		}
		for _, v := range vals {
			ctx.Response.Header.Add(key, v)
		}
	}
	ctx.SetBody(r.Body)
}
