// Package main is the wasmgate command-line entry point
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/NVIDIA/wasmgate/cmn"
	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/cmn/nlog"
	"github.com/NVIDIA/wasmgate/hk"
	"github.com/NVIDIA/wasmgate/runtime"
	"github.com/NVIDIA/wasmgate/stats"
	"github.com/NVIDIA/wasmgate/transport"
	"github.com/NVIDIA/wasmgate/wcgi"
	"github.com/NVIDIA/wasmgate/wire"
	"github.com/urfave/cli"
)

const rescanIval = 30 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = "wasmgate"
	app.Usage = "host sandboxed guest modules behind a request/response boundary"
	app.Version = cmn.Version
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "v", Usage: "verbose"},
		cli.BoolFlag{Name: "d", Usage: "debug verbosity"},
		cli.BoolFlag{Name: "t", Usage: "trace verbosity"},
		cli.StringFlag{Name: "config", Usage: "configuration file"},
	}
	app.Before = setup
	app.Commands = []cli.Command{
		{
			Name:      "serve",
			Usage:     "run the guest-hosting daemon",
			ArgsUsage: "[MODULE_ROOT]",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "bind", Usage: "network acceptor address"},
				cli.StringFlag{Name: "metrics", Value: "127.0.0.1:9090", Usage: "prometheus endpoint address"},
				cli.BoolFlag{Name: "prefix-match", Usage: "route URIs by longest prefix"},
			},
			Action: serveHandler,
		},
		{
			Name:      "wcgi",
			Usage:     "run the CGI gateway for a filesystem-resident script",
			ArgsUsage: "SCRIPT",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "bind", Usage: "gateway address"},
			},
			Action: wcgiHandler,
		},
		{
			Name:      "scan",
			Usage:     "warm the module cache from a directory tree",
			ArgsUsage: "MODULE_ROOT",
			Action:    scanHandler,
		},
		{
			Name:      "run",
			Usage:     "invoke a guest module once and print the response body",
			ArgsUsage: "MODULE_FILE",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "method", Value: "GET", Usage: "request method"},
				cli.StringFlag{Name: "uri", Value: "/", Usage: "request URI"},
				cli.StringFlag{Name: "body", Usage: "request body"},
			},
			Action: runHandler,
		},
	}

	if err := app.Run(os.Args); err != nil {
		if errors.Is(err, syscall.EPIPE) {
			os.Exit(0) // broken pipe on stdout is not an error
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) error {
	nlog.SetTitle("wasmgate")
	nlog.SetVerbose(c.Bool("v") || c.Bool("d") || c.Bool("t"))
	if fqn := c.String("config"); fqn != "" {
		conf, err := cmn.LoadConfig(fqn)
		if err != nil {
			return err
		}
		cmn.GCO.Put(conf)
	}
	cos.InitShortID(uint64(os.Getpid()))
	return nil
}

func serveHandler(c *cli.Context) error {
	conf := cmn.GCO.Get()
	if root := c.Args().First(); root != "" {
		conf.Cache.Root = root
	}
	if bind := c.String("bind"); bind != "" {
		conf.Bind = bind
	}

	rt := runtime.New(c.Bool("prefix-match"))
	if conf.Cache.Root != "" {
		if err := rt.Cache().Scan(); err != nil {
			return err
		}
		if err := defineScanned(rt); err != nil {
			return err
		}
		hk.Reg("modcache-rescan", func() time.Duration {
			if err := rt.Cache().Scan(); err != nil {
				nlog.Warningln(err)
			}
			return rescanIval
		}, rescanIval)
	}

	tcp, err := transport.NewTCPAcceptor(conf.Bind)
	if err != nil {
		return err
	}
	rt.AddAcceptor(tcp)
	nlog.Infof("accepting on %s", tcp.Addr())

	go hk.DefaultHK.Run()
	go func() {
		http.Handle("/metrics", stats.Handler())
		if err := http.ListenAndServe(c.String("metrics"), nil); err != nil {
			nlog.Errorln(err)
		}
	}()

	handleSignals(rt)
	err = rt.Run()
	hk.DefaultHK.Stop(nil)
	runtime.ShutdownEngine()
	return err
}

// defineScanned routes every cached module at /<stem> for GET and POST.
func defineScanned(rt *runtime.Runtime) error {
	for _, path := range rt.Cache().Paths() {
		id, err := rt.WelcomeFile(path)
		if err != nil {
			return err
		}
		stem := strings.TrimSuffix(filepath.Base(path), cmn.ModuleExt)
		rt.Define(wire.MethodGet, "/"+stem, id)
		rt.Define(wire.MethodPost, "/"+stem, id)
		nlog.Infof("defined /%s -> %s", stem, id.Short())
	}
	return nil
}

func wcgiHandler(c *cli.Context) error {
	script := c.Args().First()
	if script == "" {
		return errors.New("missing SCRIPT argument")
	}
	conf := cmn.GCO.Get()
	if bind := c.String("bind"); bind != "" {
		conf.Gateway.Bind = bind
	}
	g, err := wcgi.New(script)
	if err != nil {
		return err
	}
	handleSignals(g)
	return g.Run()
}

func scanHandler(c *cli.Context) error {
	root := c.Args().First()
	if root == "" {
		return errors.New("missing MODULE_ROOT argument")
	}
	cache := runtime.NewModCache(root, true)
	if err := cache.Scan(); err != nil {
		return err
	}
	for _, path := range cache.Paths() {
		fmt.Println(path)
	}
	return nil
}

func runHandler(c *cli.Context) error {
	file := c.Args().First()
	if file == "" {
		return errors.New("missing MODULE_FILE argument")
	}
	var method wire.Method
	switch strings.ToUpper(c.String("method")) {
	case "GET":
		method = wire.MethodGet
	case "HEAD":
		method = wire.MethodHead
	case "POST":
		method = wire.MethodPost
	case "PUT":
		method = wire.MethodPut
	case "DELETE":
		method = wire.MethodDelete
	case "OPTIONS":
		method = wire.MethodOptions
	case "PATCH":
		method = wire.MethodPatch
	default:
		return fmt.Errorf("unknown method %q", c.String("method"))
	}

	rt := runtime.New(false)
	id, err := rt.WelcomeFile(file)
	if err != nil {
		return err
	}
	go rt.Run()
	defer rt.Stop(nil)

	req := wire.NewRequest(method, c.String("uri"), []byte(c.String("body")))
	resp, err := rt.ExecuteTo(id, req)
	if err != nil {
		return err
	}
	nlog.Infof("status %d, %d bytes", resp.Status, resp.ContentLength)
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		return err
	}
	return nil
}

func handleSignals(runner cos.Runner) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-ch
		runner.Stop(fmt.Errorf("signal %v", s))
	}()
}
