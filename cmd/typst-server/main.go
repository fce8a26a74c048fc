// Command typst-server renders Typst templates to PDF over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/zeptools/gw-typst/conf"
)

func main() {
	var (
		appRoot  string
		listen   string
		backend  string
		typstBin string
		socket   string
		check    bool
		genKey   string
		issuer   string
		keyPath  string
		subject  string
		ttl      time.Duration
	)
	flags := pflag.NewFlagSet("typst-server", pflag.ExitOnError)
	flags.StringVarP(&appRoot, "root", "r", ".", "App root holding config/.core.json and templates/")
	flags.StringVarP(&listen, "listen", "l", "", "HTTP listen address (overrides config)")
	flags.StringVarP(&backend, "backend", "b", "", "Render backend: builtin|typst (overrides config)")
	flags.StringVar(&typstBin, "typst-bin", "", "typst executable for the typst backend (overrides config)")
	flags.StringVar(&socket, "socket", "", "Operator unix socket path (overrides config)")
	flags.BoolVar(&check, "check", false, "Load config, prepare every component and exit")
	flags.StringVar(&genKey, "gen-key", "", "Write a new RSA key pair for bearer auth into this directory and exit")
	flags.StringVar(&keyPath, "issue-token", "", "Sign a bearer token with this <kid>_private.pem and exit")
	flags.StringVar(&subject, "subject", "client", "Token subject for --issue-token")
	flags.StringVar(&issuer, "issuer", "typst-server", "Token issuer for --issue-token")
	flags.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime for --issue-token")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: typst-server [flags]\n\nFlags:\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	switch {
	case genKey != "":
		kid, err := generateKeyPair(genKey)
		if err != nil {
			log.Fatalf("[ERROR] gen-key: %v", err)
		}
		fmt.Println(kid)
		return
	case keyPath != "":
		token, err := issueToken(keyPath, issuer, subject, ttl)
		if err != nil {
			log.Fatalf("[ERROR] issue-token: %v", err)
		}
		fmt.Println(token)
		return
	}

	root, err := filepath.Abs(appRoot)
	if err != nil {
		log.Fatalf("[ERROR] app root: %v", err)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	core := &conf.Core{}
	if err := core.BaseInit(root, rootCtx, rootCancel); err != nil {
		log.Fatalf("[ERROR] init: %v", err)
	}
	if listen != "" {
		core.Listen = listen
	}
	if backend != "" {
		core.Render.Backend = backend
	}
	if typstBin != "" {
		core.Render.TypstBin = typstBin
	}
	if socket != "" {
		core.UDSSocket = socket
	}

	os.Exit(run(core, check))
}

func run(core *conf.Core, check bool) int {
	defer core.ResourceCleanUp()
	if err := core.PrepareAll(); err != nil {
		log.Printf("[ERROR] prepare: %v", err)
		return 1
	}
	if check {
		log.Printf("[INFO] config OK: %d font faces, backend %s", core.FontRegistry.Catalog().Len(), core.Backend.Name())
		return 0
	}
	if err := core.StartServices(); err != nil {
		log.Printf("[ERROR] start: %v", err)
		core.RootCancel()
		return 1
	}
	log.Printf("[INFO] %s ready on %s", core.AppName, core.WebService.Addr())
	err := core.WaitServicesDone()
	core.RootCancel()
	if err != nil {
		log.Printf("[ERROR] service: %v", err)
		return 1
	}
	log.Printf("[INFO] %s stopped", core.AppName)
	return 0
}
