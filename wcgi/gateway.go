// Package wcgi executes filesystem-resident scripts as short-lived child
// processes behind a CGI/1.1 gateway
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package wcgi

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/NVIDIA/wasmgate/cmn"
	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/cmn/nlog"
	"github.com/NVIDIA/wasmgate/stats"
	"github.com/valyala/fasthttp"
)

type Gateway struct {
	server *fasthttp.Server
	stopCh *cos.StopCh
	script string // canonicalized
	name   string // as configured
	bind   string
	addr   string // SERVER_ADDR
	port   string // SERVER_PORT
}

// interface guard
var _ cos.Runner = (*Gateway)(nil)

func New(script string) (*Gateway, error) {
	fqn, err := filepath.Abs(script)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(fqn); err != nil {
		return nil, cos.NewErrNotFound("script %q", script)
	}
	conf := cmn.GCO.Get().Gateway
	addr, port, err := net.SplitHostPort(conf.Bind)
	if err != nil {
		return nil, err
	}
	g := &Gateway{
		stopCh: cos.NewStopCh(),
		script: fqn,
		name:   script,
		bind:   conf.Bind,
		addr:   addr,
		port:   port,
	}
	g.server = &fasthttp.Server{
		Handler: g.handle,
		Name:    cmn.Software,
	}
	return g, nil
}

func (*Gateway) Name() string { return "wcgi_gateway" }

func (g *Gateway) Run() error {
	nlog.Infof("%s: serving %s on %s", g.Name(), g.script, g.bind)
	err := g.server.ListenAndServe(g.bind)
	select {
	case <-g.stopCh.Listen():
		return nil
	default:
		return err
	}
}

func (g *Gateway) Stop(err error) {
	nlog.Infof("stopping %s, err: %v", g.Name(), err)
	g.stopCh.Close()
	g.server.Shutdown()
}

func (g *Gateway) handle(ctx *fasthttp.RequestCtx) {
	conf := cmn.GCO.Get().Gateway

	body := ctx.PostBody()
	if int64(len(body)) > conf.MaxBody {
		ctx.SetStatusCode(fasthttp.StatusRequestEntityTooLarge)
		ctx.SetBodyString("request body exceeds the gateway limit")
		stats.GatewayRequest("too-large")
		return
	}

	cctx, cancel := context.WithTimeout(context.Background(), conf.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, g.script)
	cmd.Env = g.environ(ctx)
	cmd.Stdin = bytes.NewReader(body)
	cmd.Stderr = os.Stderr // inherited
	// processes the script spawned may keep stdout open after the kill;
	// stop waiting for them shortly after the child itself is gone
	cmd.WaitDelay = 100 * time.Millisecond

	out, err := cmd.Output()
	switch {
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		// the child was killed at the wall-clock limit
		ctx.SetStatusCode(fasthttp.StatusGatewayTimeout)
		ctx.SetBodyString("request timed out")
		stats.GatewayRequest("timeout")
		return
	case err != nil:
		nlog.Errorf("%s: %s: %v", g.Name(), g.script, err)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString("unable to wait for child process")
		stats.GatewayRequest("error")
		return
	}

	resp := parseOutput(out)
	stats.GatewayRequest(resp.Class())
	resp.render(ctx)
}

// environ builds the child's environment from scratch: the inherited set is
// cleared, then exactly the CGI/1.1 subset is installed.
func (g *Gateway) environ(ctx *fasthttp.RequestCtx) []string {
	remoteAddr, remotePort, _ := net.SplitHostPort(ctx.RemoteAddr().String())
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"SERVER_SOFTWARE=" + cmn.Software,
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=" + string(ctx.Request.Header.Protocol()),
		"SCRIPT_FILENAME=" + g.script,
		"SCRIPT_NAME=" + g.name,
		"SERVER_ADDR=" + g.addr,
		"SERVER_PORT=" + g.port,
		"REMOTE_ADDR=" + remoteAddr,
		"REMOTE_PORT=" + remotePort,
		"PATH_INFO=" + string(ctx.Path()),
		"REQUEST_METHOD=" + string(ctx.Method()),
	}
	if qs := ctx.URI().QueryString(); len(qs) > 0 {
		env = append(env, "QUERY_STRING="+string(qs))
	}
	return env
}
